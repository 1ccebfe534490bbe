package gateway

import (
	"crypto/subtle"

	"noelle/internal/domain"
	"noelle/internal/infra/config"
)

// ClientInfo holds metadata about an authenticated renderer connection.
type ClientInfo struct {
	Name string
	// ContentID binds the connection to the window hosting the renderer.
	ContentID string
}

// Authenticator validates incoming gateway connections.
type Authenticator interface {
	Authenticate(token string) (*ClientInfo, error)
}

type authEntry struct {
	token []byte
	name  string
}

// StaticTokenAuth authenticates clients against a static token list
// using constant-time comparison to prevent timing attacks.
type StaticTokenAuth struct {
	entries []authEntry
}

// NewStaticTokenAuth builds an authenticator from configured tokens.
func NewStaticTokenAuth(tokens []config.TokenConfig) *StaticTokenAuth {
	a := &StaticTokenAuth{entries: make([]authEntry, 0, len(tokens))}
	for _, t := range tokens {
		if t.Token == "" {
			continue
		}
		a.entries = append(a.entries, authEntry{token: []byte(t.Token), name: t.Name})
	}
	return a
}

// Authenticate returns a fresh client info if the token is valid.
func (s *StaticTokenAuth) Authenticate(token string) (*ClientInfo, error) {
	tokenBytes := []byte(token)
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			return &ClientInfo{Name: e.name}, nil
		}
	}
	return nil, domain.ErrGatewayAuthFailed
}
