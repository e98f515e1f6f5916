// Package token issues and verifies the bearer tokens handed out at login and
// signup. A deployment runs in exactly one mode, signed or plain, chosen once
// by New.
package token

import (
	"errors"

	"travel-booking/internal/config"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrConfiguration = errors.New("invalid token configuration")
)

// Codec turns a username into a bearer token and back. The tenant scopes
// the token: Verify must be given the tenant the token was issued for.
type Codec interface {
	Issue(tenant, username string) (string, error)
	Verify(tenant, token string) (string, error)
}

// New builds the codec selected by cfg.Signed. The signing secret is decoded
// here so a bad key fails at startup rather than per request.
func New(cfg config.TokenConfig) (Codec, error) {
	if !cfg.Signed {
		return PlainCodec{}, nil
	}
	c, err := NewSigned(cfg.Secret)
	if err != nil {
		return nil, err
	}
	return c, nil
}
