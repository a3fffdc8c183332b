package gateway

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"camsession/internal/domain"
	"camsession/internal/infra/config"
)

// ClientInfo holds metadata about an authenticated gateway client.
type ClientInfo struct {
	Name  string
	Roles []string
}

// Authenticator validates incoming gateway connections.
type Authenticator interface {
	Authenticate(token string) (*ClientInfo, error)
}

// NewAuthenticator builds the authenticator selected by cfg. An empty type
// accepts every client.
func NewAuthenticator(cfg config.AuthConfig) (Authenticator, error) {
	if cfg.Type != "static" {
		return openAuth{}, nil
	}
	a, err := NewStaticTokenAuth(cfg.Tokens)
	if err != nil {
		return nil, err
	}
	return a, nil
}

type openAuth struct{}

func (openAuth) Authenticate(string) (*ClientInfo, error) {
	return &ClientInfo{Name: "anonymous"}, nil
}

type authEntry struct {
	token []byte
	hash  *tokenHash
	info  *ClientInfo
}

// StaticTokenAuth authenticates clients against a static token list
// using constant-time comparison to prevent timing attacks. Hashed entries
// cost one argon2 derivation per attempt, so accepted tokens are cached.
type StaticTokenAuth struct {
	entries []authEntry
	known   sync.Map // token -> *ClientInfo
}

// NewStaticTokenAuth builds an authenticator from configured tokens.
func NewStaticTokenAuth(tokens []config.TokenConfig) (*StaticTokenAuth, error) {
	a := &StaticTokenAuth{
		entries: make([]authEntry, len(tokens)),
	}
	for i, e := range tokens {
		entry := authEntry{info: &ClientInfo{Name: e.Name, Roles: e.Roles}}
		if e.TokenHash != "" {
			h, err := parseTokenHash(e.TokenHash)
			if err != nil {
				return nil, fmt.Errorf("token %q: %w", e.Name, err)
			}
			entry.hash = &h
		} else {
			entry.token = []byte(e.Token)
		}
		a.entries[i] = entry
	}
	return a, nil
}

// Authenticate returns client info if the token is valid.
func (s *StaticTokenAuth) Authenticate(token string) (*ClientInfo, error) {
	if token == "" {
		return nil, domain.ErrAuthInvalid
	}
	if info, ok := s.known.Load(token); ok {
		return info.(*ClientInfo), nil
	}
	tokenBytes := []byte(token)
	for _, e := range s.entries {
		if e.hash != nil {
			if e.hash.matches(token) {
				s.known.Store(token, e.info)
				return e.info, nil
			}
			continue
		}
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			return e.info, nil
		}
	}
	return nil, domain.ErrAuthInvalid
}
