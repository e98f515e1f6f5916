// Package store holds the tenant-scoped user and booking documents.
//
// Every operation is scoped by tenant. Writes carry a Durability and return
// only once the backend has acknowledged that level, or fail. Nothing here
// retries; a failed write is reported as-is.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrDurabilityUnsatisfied = errors.New("durability requirement not satisfied")
	ErrInvalidDurability     = errors.New("invalid durability")
)

// Store is the document contract shared by all backends.
type Store interface {
	// CreateUser inserts u unless (tenant, username) exists, in which case it
	// returns ErrAlreadyExists and leaves the stored document untouched.
	CreateUser(ctx context.Context, u User, d Durability) error
	GetUser(ctx context.Context, tenant, username string) (User, error)
	// ReplaceUser overwrites an existing user document. Last write wins.
	ReplaceUser(ctx context.Context, u User, d Durability) error

	PutBooking(ctx context.Context, b Booking, d Durability) error
	GetBooking(ctx context.Context, tenant, id string) (Booking, error)
}

func validateWrite(tenant, key string, d Durability) error {
	if !d.Valid() {
		return ErrInvalidDurability
	}
	if tenant == "" || key == "" {
		return errors.New("store: tenant and key are required")
	}
	return nil
}
