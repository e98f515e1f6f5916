package auth

import "errors"

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnauthenticated  = errors.New("bad username or password")
	ErrConflict         = errors.New("username already exists")
	ErrIdentityMismatch = errors.New("token does not match requested user")
)
