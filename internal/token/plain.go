package token

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// PlainCodec base64-encodes the username and ignores the tenant. Anyone can
// mint a token for any user in any tenant; it exists for deployments that
// still hand out legacy tokens.
type PlainCodec struct{}

var _ Codec = PlainCodec{}

func (PlainCodec) Issue(_, username string) (string, error) {
	if username == "" {
		return "", errors.New("username is required")
	}
	return base64.StdEncoding.EncodeToString([]byte(username)), nil
}

func (PlainCodec) Verify(_, token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty username", ErrInvalidToken)
	}
	return string(raw), nil
}
