package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"travel-booking/internal/store/migrations"

	"github.com/pressly/goose/v3"
)

// PostgresPoolConfig controls database/sql pool behavior.
// Zero values fall back to conservative defaults.
type PostgresPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

func (c PostgresPoolConfig) withDefaults() PostgresPoolConfig {
	out := c
	if out.MaxOpenConns <= 0 {
		out.MaxOpenConns = 25
	}
	if out.MaxIdleConns <= 0 {
		out.MaxIdleConns = 25
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 5 * time.Second
	}
	return out
}

// OpenPostgres opens a pool through the pgx stdlib driver (registered by the
// caller as "pgx") and checks connectivity. dsn contains secrets; never log it.
func OpenPostgres(ctx context.Context, driverName, dsn string, pool PostgresPoolConfig) (*sql.DB, error) {
	pool = pool.withDefaults()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pool.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return db, nil
}

// gooseUp is swapped out in tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// withDurableTx runs fn in a transaction whose commit waits for the
// synchronous_commit level matching d. Above DurabilityNone the whole
// transaction, commit included, is bounded by timeout; a commit that runs out
// of time reports ErrDurabilityUnsatisfied. fn errors roll back; panics roll
// back and are re-thrown.
func withDurableTx(ctx context.Context, db *sql.DB, d Durability, timeout time.Duration, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	level, err := synchronousCommit(d)
	if err != nil {
		return err
	}

	// The pgx stdlib driver commits with the context given to BeginTx, so
	// the deadline reaches a COMMIT blocked on standby acks.
	if d != DurabilityNone && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("%w: commit at %s: %v", ErrDurabilityUnsatisfied, d, cerr)
		}
	}()

	// SET cannot take bind parameters; level comes from a fixed table.
	if _, err = tx.ExecContext(ctx, "SET LOCAL synchronous_commit TO "+level); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	err = fn(ctx, tx)
	return err
}

func synchronousCommit(d Durability) (string, error) {
	switch d {
	case DurabilityNone:
		return "off", nil
	case DurabilityMajority:
		return "remote_write", nil
	case DurabilityMajorityAndPersistToActive:
		return "on", nil
	case DurabilityPersistToMajority:
		return "remote_apply", nil
	default:
		return "", ErrInvalidDurability
	}
}
