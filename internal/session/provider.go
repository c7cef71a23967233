package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrNoSession reports that the presented credentials do not map to a
// valid session. Callers treat it as "anonymous", not as a failure.
var ErrNoSession = errors.New("no valid session")

// DefaultCookieName is the cookie carrying the session token.
const DefaultCookieName = "session"

// Provider resolves a session token into a Principal. A nil-principal
// outcome is expressed as ErrNoSession; any other error means the
// session backend itself failed.
type Provider interface {
	Resolve(ctx context.Context, token string) (*Principal, error)
}

// TokenFromRequest extracts the session token from the request: the
// session cookie first, then an Authorization bearer token. Returns ""
// when no credentials are present.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authorization := r.Header.Get("Authorization")
	const bearerPrefix = "Bearer "
	if len(authorization) > len(bearerPrefix) && strings.EqualFold(authorization[:len(bearerPrefix)], bearerPrefix) {
		return authorization[len(bearerPrefix):]
	}

	return ""
}

// StaticProvider resolves tokens from a fixed map. It backs tests and
// local development.
type StaticProvider struct {
	sessions map[string]*Principal
}

// NewStaticProvider creates a provider over a fixed token-to-principal map.
func NewStaticProvider(sessions map[string]*Principal) *StaticProvider {
	if sessions == nil {
		sessions = make(map[string]*Principal)
	}
	return &StaticProvider{sessions: sessions}
}

// Resolve implements Provider.
func (p *StaticProvider) Resolve(ctx context.Context, token string) (*Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	principal, ok := p.sessions[token]
	if !ok {
		return nil, ErrNoSession
	}
	return principal, nil
}
