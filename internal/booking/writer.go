// Package booking appends flights to a user's booking collection and reads
// it back. Every call acts for an authenticated auth.Caller and touches only
// that caller's tenant and user document.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"travel-booking/internal/audit"
	"travel-booking/internal/auth"
	"travel-booking/internal/store"
	"travel-booking/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrWriteFailed   = errors.New("booking write failed")
	ErrInvalidFlight = errors.New("invalid flight")
)

// Store is the slice of the document store the writer needs.
type Store interface {
	GetUser(ctx context.Context, tenant, username string) (store.User, error)
	ReplaceUser(ctx context.Context, u store.User, d store.Durability) error
	PutBooking(ctx context.Context, b store.Booking, d store.Durability) error
	GetBooking(ctx context.Context, tenant, id string) (store.Booking, error)
}

// Registration is the outcome of RegisterFlights.
type Registration struct {
	Added []store.Booking
	// Collection is every booking id of the user after the append, oldest
	// first.
	Collection []string
}

type Writer struct {
	store Store
	audit *audit.Service
	log   *slog.Logger
	clock func() time.Time
	newID func() string
}

// NewWriter wires the writer. trail may be nil.
func NewWriter(st Store, trail *audit.Service, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		store: st,
		audit: trail,
		log:   log,
		clock: time.Now,
		newID: uuid.NewString,
	}
}

// RegisterFlights appends flights, in order and without de-duplication, to
// the caller's collection. Each flight is written as its own booking
// document before the user document is replaced with the extended id list;
// all writes use d. A failed write is not retried and earlier writes are not
// undone.
func (w *Writer) RegisterFlights(ctx context.Context, caller auth.Caller, flights []store.Flight, d store.Durability) (Registration, error) {
	if caller.IsZero() {
		return Registration{}, auth.ErrIdentityMismatch
	}
	if !d.Valid() {
		return Registration{}, store.ErrInvalidDurability
	}
	for i, f := range flights {
		if strings.TrimSpace(f.Number) == "" {
			return Registration{}, fmt.Errorf("%w: entry %d has no flight number", ErrInvalidFlight, i)
		}
	}

	u, err := w.loadUser(ctx, caller)
	if err != nil {
		return Registration{}, err
	}
	if len(flights) == 0 {
		return Registration{Added: []store.Booking{}, Collection: u.Flights}, nil
	}

	now := w.clock().UTC()
	added := make([]store.Booking, 0, len(flights))
	for _, f := range flights {
		b := store.Booking{
			ID:       w.newID(),
			Tenant:   caller.Tenant(),
			Username: caller.Username(),
			BookedAt: now,
			Flight:   f,
		}
		if err := w.store.PutBooking(ctx, b, d); err != nil {
			return Registration{}, fmt.Errorf("%w: put booking: %w", ErrWriteFailed, err)
		}
		added = append(added, b)
		u.Flights = append(u.Flights, b.ID)
	}

	u.UpdatedAt = now
	if err := w.store.ReplaceUser(ctx, u, d); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Registration{}, ErrNotFound
		}
		return Registration{}, fmt.Errorf("%w: replace user: %w", ErrWriteFailed, err)
	}

	if w.audit != nil {
		ids := u.Flights[len(u.Flights)-len(added):]
		if err := w.audit.LogFlightsBooked(ctx, caller.Tenant(), caller.Username(), ids); err != nil {
			logger.From(ctx, w.log).Warn("audit append failed", "err", err)
		}
	}
	logger.From(ctx, w.log).Info("flights booked",
		"tenant", caller.Tenant(),
		"username", caller.Username(),
		"added", len(added),
		"total", len(u.Flights),
		"durability", d.String(),
	)

	return Registration{Added: added, Collection: u.Flights}, nil
}

// ListFlights returns the caller's bookings, oldest first. Ids whose booking
// document is gone are skipped.
func (w *Writer) ListFlights(ctx context.Context, caller auth.Caller) ([]store.Booking, error) {
	if caller.IsZero() {
		return nil, auth.ErrIdentityMismatch
	}
	u, err := w.loadUser(ctx, caller)
	if err != nil {
		return nil, err
	}

	out := make([]store.Booking, 0, len(u.Flights))
	for _, id := range u.Flights {
		b, err := w.store.GetBooking(ctx, caller.Tenant(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.From(ctx, w.log).Warn("booking document missing", "tenant", caller.Tenant(), "booking_id", id)
				continue
			}
			return nil, fmt.Errorf("get booking %s: %w", id, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (w *Writer) loadUser(ctx context.Context, caller auth.Caller) (store.User, error) {
	u, err := w.store.GetUser(ctx, caller.Tenant(), caller.Username())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, ErrNotFound
		}
		return store.User{}, fmt.Errorf("load user: %w", err)
	}
	if u.Flights == nil {
		u.Flights = []string{}
	}
	return u, nil
}
