// Package auth is the connection gate. Every websocket handshake passes
// through Verify before any handler is registered; it is the only place the
// identity token is examined.
package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/domain"
)

var (
	ErrMissingToken = errors.New("Authentication required")
	ErrInvalidToken = errors.New("Invalid or expired token")
	ErrNoSecret     = errors.New("auth secret not configured")
)

type claims struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Premium bool   `json:"premium"`
	jwt.RegisteredClaims
}

type Gate struct {
	secret []byte
}

func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// Verify resolves a bearer token into the connection's Identity. Tokens are
// HS256 JWTs minted by the identity provider; any parse or signature failure
// maps to the same user-facing rejection.
func (g *Gate) Verify(token string) (*domain.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if len(g.secret) == 0 {
		log.Error().Str("module", "auth").Msg("auth secret is not configured")
		return nil, ErrNoSecret
	}
	token = strings.TrimPrefix(token, "Bearer ")

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return g.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		log.Warn().Err(err).Str("module", "auth").Msg("token verification failed")
		return nil, ErrInvalidToken
	}

	id := c.ID
	if id == "" {
		id = c.Subject
	}
	if id == "" {
		log.Warn().Str("module", "auth").Msg("token payload missing user id")
		return nil, ErrInvalidToken
	}
	name := c.Name
	if name == "" {
		name = "User"
	}
	return &domain.Identity{ID: domain.UserID(id), DisplayName: name, Premium: c.Premium}, nil
}
