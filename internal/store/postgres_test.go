package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	return newStoreWithTimeout(t, 0)
}

func newStoreWithTimeout(t *testing.T, commitTimeout time.Duration) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db, commitTimeout), mock
}

func expectSyncCommit(mock sqlmock.Sqlmock, level string) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL synchronous_commit TO " + level)).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

const (
	insertUserQ    = `(?s)^\s*INSERT\s+INTO\s+users\s*\(tenant,\s*username,\s*password_hash,\s*flights,\s*created_at,\s*updated_at\).*ON\s+CONFLICT\s*\(tenant,\s*username\)\s+DO\s+NOTHING\s*$`
	selectUserQ    = `(?s)^\s*SELECT\s+tenant,\s*username,\s*password_hash,\s*flights,\s*created_at,\s*updated_at\s+FROM\s+users\s+WHERE\s+tenant\s*=\s*\$1\s+AND\s+username\s*=\s*\$2\s*$`
	updateUserQ    = `(?s)^\s*UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$3,\s*flights\s*=\s*\$4,\s*updated_at\s*=\s*\$5\s+WHERE\s+tenant\s*=\s*\$1\s+AND\s+username\s*=\s*\$2\s*$`
	upsertBookingQ = `(?s)^\s*INSERT\s+INTO\s+bookings\s*\(tenant,\s*id,\s*username,\s*flight,\s*booked_at\).*ON\s+CONFLICT\s*\(tenant,\s*id\)\s+DO\s+UPDATE`
	selectBookingQ = `(?s)^\s*SELECT\s+tenant,\s*id,\s*username,\s*flight,\s*booked_at\s+FROM\s+bookings\s+WHERE\s+tenant\s*=\s*\$1\s+AND\s+id\s*=\s*\$2\s*$`
)

func TestPostgresCreateUser_Success(t *testing.T) {
	s, mock := newStoreWithMock(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	expectSyncCommit(mock, "remote_write")
	mock.ExpectExec(insertUserQ).
		WithArgs("t", "alice", "hash", "[]", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.CreateUser(context.Background(), User{Tenant: "t", Username: "alice", PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}, DurabilityMajority)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUser_Conflict(t *testing.T) {
	s, mock := newStoreWithMock(t)

	expectSyncCommit(mock, "off")
	mock.ExpectExec(insertUserQ).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.CreateUser(context.Background(), User{Tenant: "t", Username: "alice"}, DurabilityNone)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUser_CommitFailsDurability(t *testing.T) {
	s, mock := newStoreWithMock(t)

	expectSyncCommit(mock, "remote_apply")
	mock.ExpectExec(insertUserQ).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("canceling wait for synchronous replication"))

	err := s.CreateUser(context.Background(), User{Tenant: "t", Username: "alice"}, DurabilityPersistToMajority)
	assert.ErrorIs(t, err, ErrDurabilityUnsatisfied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUser_InvalidDurabilityTouchesNothing(t *testing.T) {
	s, mock := newStoreWithMock(t)

	err := s.CreateUser(context.Background(), User{Tenant: "t", Username: "alice"}, Durability(8))
	assert.ErrorIs(t, err, ErrInvalidDurability)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetUser(t *testing.T) {
	s, mock := newStoreWithMock(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"tenant", "username", "password_hash", "flights", "created_at", "updated_at"}).
		AddRow("t", "alice", "hash", []byte(`["b1","b2"]`), now, now)
	mock.ExpectQuery(selectUserQ).WithArgs("t", "alice").WillReturnRows(rows)

	u, err := s.GetUser(context.Background(), "t", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, u.Flights)
	assert.Equal(t, "hash", u.PasswordHash)
}

func TestPostgresGetUser_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(selectUserQ).WithArgs("t", "ghost").WillReturnError(sql.ErrNoRows)

	_, err := s.GetUser(context.Background(), "t", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresGetUser_DBError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(selectUserQ).WithArgs("t", "alice").WillReturnError(errors.New("db down"))

	_, err := s.GetUser(context.Background(), "t", "alice")
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgresReplaceUser(t *testing.T) {
	s, mock := newStoreWithMock(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	expectSyncCommit(mock, "on")
	mock.ExpectExec(updateUserQ).
		WithArgs("t", "alice", "hash", `["b1"]`, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.ReplaceUser(context.Background(), User{Tenant: "t", Username: "alice", PasswordHash: "hash", Flights: []string{"b1"}, UpdatedAt: now}, DurabilityMajorityAndPersistToActive)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceUser_Missing(t *testing.T) {
	s, mock := newStoreWithMock(t)

	expectSyncCommit(mock, "off")
	mock.ExpectExec(updateUserQ).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.ReplaceUser(context.Background(), User{Tenant: "t", Username: "ghost"}, DurabilityNone)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutAndGetBooking(t *testing.T) {
	s, mock := newStoreWithMock(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	expectSyncCommit(mock, "remote_write")
	mock.ExpectExec(upsertBookingQ).
		WithArgs("t", "b1", "alice", `{"flight":"AA1","sourceairport":"SFO"}`, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b := Booking{ID: "b1", Tenant: "t", Username: "alice", BookedAt: now, Flight: Flight{Number: "AA1", SourceAirport: "SFO"}}
	require.NoError(t, s.PutBooking(context.Background(), b, DurabilityMajority))

	rows := sqlmock.NewRows([]string{"tenant", "id", "username", "flight", "booked_at"}).
		AddRow("t", "b1", "alice", []byte(`{"flight":"AA1","sourceairport":"SFO"}`), now)
	mock.ExpectQuery(selectBookingQ).WithArgs("t", "b1").WillReturnRows(rows)

	got, err := s.GetBooking(context.Background(), "t", "b1")
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutBooking_ExecErrorRollsBack(t *testing.T) {
	s, mock := newStoreWithMock(t)

	expectSyncCommit(mock, "off")
	mock.ExpectExec(upsertBookingQ).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := s.PutBooking(context.Background(), Booking{ID: "b1", Tenant: "t"}, DurabilityNone)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDurabilityUnsatisfied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDurableWriteIsBoundedByTimeout(t *testing.T) {
	s, mock := newStoreWithTimeout(t, 50*time.Millisecond)

	expectSyncCommit(mock, "remote_apply")
	mock.ExpectExec(upsertBookingQ).
		WillDelayFor(5 * time.Second).
		WillReturnResult(sqlmock.NewResult(0, 1))

	start := time.Now()
	err := s.PutBooking(context.Background(), Booking{ID: "b1", Tenant: "t"}, DurabilityPersistToMajority)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWithDurableTx_DeadlineOnlyAboveNone(t *testing.T) {
	cases := map[Durability]bool{
		DurabilityNone:                       false,
		DurabilityMajority:                   true,
		DurabilityMajorityAndPersistToActive: true,
		DurabilityPersistToMajority:          true,
	}
	for d, wantDeadline := range cases {
		t.Run(d.String(), func(t *testing.T) {
			s, mock := newStoreWithTimeout(t, time.Minute)
			level, err := synchronousCommit(d)
			require.NoError(t, err)
			expectSyncCommit(mock, level)
			mock.ExpectCommit()

			err = withDurableTx(context.Background(), s.db, d, s.commitTimeout, func(ctx context.Context, _ *sql.Tx) error {
				_, ok := ctx.Deadline()
				assert.Equal(t, wantDeadline, ok)
				return nil
			})
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMigrate_UsesEmbeddedSchema(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(ctx context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("boom") }
	err = Migrate(context.Background(), db)
	assert.ErrorContains(t, err, "migrate: boom")
}
