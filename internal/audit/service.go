package audit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. Append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records audit events. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Tenant == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.IPAddress == "" {
		e.IPAddress = ClientIPFromContext(ctx)
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) LogSignup(ctx context.Context, tenant, username string) error {
	return s.Append(ctx, Event{
		Tenant:   tenant,
		Type:     EventTypeSignup,
		Username: username,
		Message:  "user created",
	})
}

// LogLoginFailed does not distinguish unknown users from wrong passwords.
func (s *Service) LogLoginFailed(ctx context.Context, tenant, username string) error {
	return s.Append(ctx, Event{
		Tenant:   tenant,
		Type:     EventTypeLoginFailed,
		Username: username,
		Message:  "bad credentials",
	})
}

func (s *Service) LogFlightsBooked(ctx context.Context, tenant, username string, bookingIDs []string) error {
	return s.Append(ctx, Event{
		Tenant:   tenant,
		Type:     EventTypeFlightsBooked,
		Username: username,
		Message:  "flights booked",
		Metadata: map[string]string{
			"count":       strconv.Itoa(len(bookingIDs)),
			"booking_ids": strings.Join(bookingIDs, ","),
		},
	})
}
