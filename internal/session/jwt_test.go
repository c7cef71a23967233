package session

import (
	"context"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-at-least-32-bytes-long")

// signToken builds and signs an HS256 token for tests.
func signToken(t *testing.T, secret []byte, modify func(b *jwt.Builder)) string {
	t.Helper()

	b := jwt.NewBuilder().
		Subject("u1").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	if modify != nil {
		modify(b)
	}

	token, err := b.Build()
	require.NoError(t, err)

	key, err := jwk.FromRaw(secret)
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, key))
	require.NoError(t, err)

	return string(signed)
}

func TestNewJWTProviderRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewJWTProvider(nil)
	assert.Error(t, err)
}

func TestJWTProviderResolve(t *testing.T) {
	t.Parallel()

	provider, err := NewJWTProvider(testSecret)
	require.NoError(t, err)

	token := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Claim("name", "Ada Lovelace").
			Claim("email", "ada@example.com").
			Claim("role", "ADMIN")
	})

	principal, err := provider.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.ID)
	assert.Equal(t, "Ada Lovelace", principal.Name)
	assert.Equal(t, "ada@example.com", principal.Email)
	assert.Equal(t, RoleAdmin, principal.Role)
}

func TestJWTProviderDefaultsToUserRole(t *testing.T) {
	t.Parallel()

	provider, err := NewJWTProvider(testSecret)
	require.NoError(t, err)

	token := signToken(t, testSecret, nil)

	principal, err := provider.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, principal.Role)
}

func TestJWTProviderUnknownRoleFallsBack(t *testing.T) {
	t.Parallel()

	provider, err := NewJWTProvider(testSecret)
	require.NoError(t, err)

	token := signToken(t, testSecret, func(b *jwt.Builder) {
		b.Claim("role", "superuser")
	})

	principal, err := provider.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, principal.Role)
}

func TestJWTProviderRejectsInvalidTokens(t *testing.T) {
	t.Parallel()

	provider, err := NewJWTProvider(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{
			name:  "wrong key",
			token: signToken(t, []byte("another-secret-also-32-bytes-ok!"), nil),
		},
		{
			name: "expired",
			token: signToken(t, testSecret, func(b *jwt.Builder) {
				b.IssuedAt(time.Now().Add(-2 * time.Hour)).
					Expiration(time.Now().Add(-time.Hour))
			}),
		},
		{
			name: "missing subject",
			token: signToken(t, testSecret, func(b *jwt.Builder) {
				b.Subject("")
			}),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := provider.Resolve(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestJWTProviderContextCancelled(t *testing.T) {
	t.Parallel()

	provider, err := NewJWTProvider(testSecret)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = provider.Resolve(ctx, signToken(t, testSecret, nil))
	assert.ErrorIs(t, err, context.Canceled)
}
