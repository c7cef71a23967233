package session

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// Claim names carried in session tokens.
const (
	claimName  = "name"
	claimEmail = "email"
	claimRole  = "role"
)

// JWTProvider resolves HS256-signed session tokens. The platform signs a
// token at login; the pipeline only ever verifies.
type JWTProvider struct {
	key    jwk.Key
	logger *zap.Logger
}

// JWTProviderOption is a functional option for the provider.
type JWTProviderOption func(*JWTProvider)

// WithJWTProviderLogger sets the logger.
func WithJWTProviderLogger(logger *zap.Logger) JWTProviderOption {
	return func(p *JWTProvider) {
		p.logger = logger
	}
}

// NewJWTProvider creates a provider verifying tokens with the given
// shared secret.
func NewJWTProvider(secret []byte, opts ...JWTProviderOption) (*JWTProvider, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt provider: secret is required")
	}

	key, err := jwk.FromRaw(secret)
	if err != nil {
		return nil, fmt.Errorf("jwt provider: %w", err)
	}

	p := &JWTProvider{
		key:    key,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Resolve implements Provider. Expired, malformed, or mis-signed tokens
// all resolve to ErrNoSession; token problems are an anonymous caller,
// not a server fault.
func (p *JWTProvider) Resolve(ctx context.Context, token string) (*Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNoSession
	}

	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, p.key),
		jwt.WithValidate(true),
	)
	if err != nil {
		p.logger.Debug("session token rejected", zap.Error(err))
		return nil, ErrNoSession
	}

	principal := &Principal{
		ID:   parsed.Subject(),
		Role: RoleUser,
	}
	if principal.ID == "" {
		return nil, ErrNoSession
	}

	if v, ok := parsed.Get(claimName); ok {
		if name, ok := v.(string); ok {
			principal.Name = name
		}
	}
	if v, ok := parsed.Get(claimEmail); ok {
		if email, ok := v.(string); ok {
			principal.Email = email
		}
	}
	if v, ok := parsed.Get(claimRole); ok {
		if raw, ok := v.(string); ok {
			if role, err := ParseRole(raw); err == nil {
				principal.Role = role
			}
		}
	}

	return principal, nil
}
