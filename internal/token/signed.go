package token

import (
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// MinKeyBytes is the shortest decoded HMAC key accepted for signing.
const MinKeyBytes = 32

// Claims is the whole payload of a signed token: the username and nothing
// else. The tenant is bound through the signing key instead, so the same
// user in the same tenant always gets the same token.
type Claims struct {
	jwt.RegisteredClaims

	User string `json:"user"`
}

// SignedCodec issues HS512 JWTs. Each tenant signs with its own key derived
// from the master secret, so a token minted in one tenant never verifies in
// another.
type SignedCodec struct {
	key    []byte
	parser *jwt.Parser
}

var _ Codec = (*SignedCodec)(nil)

// NewSigned decodes a standard base64 secret into the HMAC key.
func NewSigned(secret string) (*SignedCodec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is required in signed mode", ErrConfiguration)
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: secret is not base64: %v", ErrConfiguration, err)
	}
	if len(key) < MinKeyBytes {
		return nil, fmt.Errorf("%w: secret decodes to %d bytes, need at least %d", ErrConfiguration, len(key), MinKeyBytes)
	}

	return &SignedCodec{
		key:    key,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()})),
	}, nil
}

func (c *SignedCodec) Issue(tenant, username string) (string, error) {
	if username == "" {
		return "", errors.New("username is required")
	}
	key, err := c.tenantKey(tenant)
	if err != nil {
		return "", err
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{User: username})
	return t.SignedString(key)
}

func (c *SignedCodec) Verify(tenant, token string) (string, error) {
	key, err := c.tenantKey(tenant)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims Claims
	_, err = c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.User == "" {
		return "", fmt.Errorf("%w: user claim missing", ErrInvalidToken)
	}
	return claims.User, nil
}

// tenantKey expands the master secret into the HS512 key for one tenant.
func (c *SignedCodec) tenantKey(tenant string) ([]byte, error) {
	if tenant == "" {
		return nil, errors.New("tenant is required")
	}
	key := make([]byte, sha512.Size)
	r := hkdf.New(sha512.New, c.key, nil, []byte("tenant:"+tenant))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive tenant key: %w", err)
	}
	return key, nil
}
