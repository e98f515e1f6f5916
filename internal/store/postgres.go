package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const defaultCommitTimeout = 2 * time.Second

// PostgresStore keeps user and booking documents in two tables keyed by
// (tenant, id). See migrations for the schema.
type PostgresStore struct {
	db            *sql.DB
	commitTimeout time.Duration
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore bounds every durable write by commitTimeout, so a commit
// waiting on standbys that never answer fails instead of hanging.
func NewPostgresStore(db *sql.DB, commitTimeout time.Duration) *PostgresStore {
	if commitTimeout <= 0 {
		commitTimeout = defaultCommitTimeout
	}
	return &PostgresStore{db: db, commitTimeout: commitTimeout}
}

func (s *PostgresStore) CreateUser(ctx context.Context, u User, d Durability) error {
	if err := validateWrite(u.Tenant, u.Username, d); err != nil {
		return err
	}
	flights, err := encodeFlights(u.Flights)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO users (tenant, username, password_hash, flights, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (tenant, username) DO NOTHING
`
	return withDurableTx(ctx, s.db, d, s.commitTimeout, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, q, u.Tenant, u.Username, u.PasswordHash, flights, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			return ErrAlreadyExists
		}
		return nil
	})
}

func (s *PostgresStore) GetUser(ctx context.Context, tenant, username string) (User, error) {
	const q = `
SELECT tenant, username, password_hash, flights, created_at, updated_at
FROM users
WHERE tenant = $1 AND username = $2
`
	var (
		u       User
		flights []byte
	)
	if err := s.db.QueryRowContext(ctx, q, tenant, username).Scan(
		&u.Tenant,
		&u.Username,
		&u.PasswordHash,
		&flights,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(flights, &u.Flights); err != nil {
		return User{}, fmt.Errorf("decode flights: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ReplaceUser(ctx context.Context, u User, d Durability) error {
	if err := validateWrite(u.Tenant, u.Username, d); err != nil {
		return err
	}
	flights, err := encodeFlights(u.Flights)
	if err != nil {
		return err
	}

	const q = `
UPDATE users
SET password_hash = $3, flights = $4, updated_at = $5
WHERE tenant = $1 AND username = $2
`
	return withDurableTx(ctx, s.db, d, s.commitTimeout, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, q, u.Tenant, u.Username, u.PasswordHash, flights, u.UpdatedAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) PutBooking(ctx context.Context, b Booking, d Durability) error {
	if err := validateWrite(b.Tenant, b.ID, d); err != nil {
		return err
	}
	flight, err := json.Marshal(b.Flight)
	if err != nil {
		return fmt.Errorf("encode flight: %w", err)
	}

	const q = `
INSERT INTO bookings (tenant, id, username, flight, booked_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tenant, id)
DO UPDATE SET username = EXCLUDED.username, flight = EXCLUDED.flight, booked_at = EXCLUDED.booked_at
`
	return withDurableTx(ctx, s.db, d, s.commitTimeout, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, q, b.Tenant, b.ID, b.Username, string(flight), b.BookedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetBooking(ctx context.Context, tenant, id string) (Booking, error) {
	const q = `
SELECT tenant, id, username, flight, booked_at
FROM bookings
WHERE tenant = $1 AND id = $2
`
	var (
		b      Booking
		flight []byte
	)
	if err := s.db.QueryRowContext(ctx, q, tenant, id).Scan(
		&b.Tenant,
		&b.ID,
		&b.Username,
		&flight,
		&b.BookedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(flight, &b.Flight); err != nil {
		return Booking{}, fmt.Errorf("decode flight: %w", err)
	}
	return b, nil
}

func encodeFlights(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode flights: %w", err)
	}
	return string(b), nil
}
