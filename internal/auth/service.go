package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"travel-booking/internal/audit"
	"travel-booking/internal/store"
	"travel-booking/internal/token"
	"travel-booking/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

const bearerPrefix = "Bearer "

// UserStore is the slice of the document store the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u store.User, d store.Durability) error
	GetUser(ctx context.Context, tenant, username string) (store.User, error)
}

// UserRecord is the public view of a user document.
type UserRecord struct {
	Tenant    string    `json:"tenant"`
	Username  string    `json:"user"`
	Flights   []string  `json:"flights"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	users UserStore
	codec token.Codec
	audit *audit.Service
	log   *slog.Logger
	clock func() time.Time

	hashCost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService wires the auth service. trail may be nil.
func NewService(users UserStore, codec token.Codec, trail *audit.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:    users,
		codec:    codec,
		audit:    trail,
		log:      log,
		clock:    time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

// Signup creates the user with an empty booking collection.
func (s *Service) Signup(ctx context.Context, tenant, username, password string, d store.Durability) (UserRecord, error) {
	if tenant == "" || username == "" || password == "" {
		return UserRecord{}, fmt.Errorf("%w: tenant, user and password are required", ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return UserRecord{}, fmt.Errorf("%w: password too long", ErrInvalidArgument)
		}
		return UserRecord{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock().UTC()
	u := store.User{
		Tenant:       tenant,
		Username:     username,
		PasswordHash: string(hash),
		Flights:      []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u, d); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return UserRecord{}, ErrConflict
		}
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}

	if s.audit != nil {
		s.record(ctx, s.audit.LogSignup(ctx, tenant, username))
	}
	logger.From(ctx, s.log).Info("user created", "tenant", tenant, "username", username, "durability", d.String())

	return UserRecord{Tenant: tenant, Username: username, Flights: []string{}, CreatedAt: now}, nil
}

// Login checks the password and issues a token. Unknown users and wrong
// passwords return the same error after roughly the same work.
func (s *Service) Login(ctx context.Context, tenant, username, password string) (string, error) {
	if tenant == "" || username == "" || password == "" {
		return "", fmt.Errorf("%w: tenant, user and password are required", ErrInvalidArgument)
	}

	u, err := s.users.GetUser(ctx, tenant, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("lookup user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return "", s.loginFailed(ctx, tenant, username)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", s.loginFailed(ctx, tenant, username)
	}

	return s.IssueToken(tenant, username)
}

// IssueToken mints a token for a user that has just been authenticated or
// created in tenant.
func (s *Service) IssueToken(tenant, username string) (string, error) {
	tok, err := s.codec.Issue(tenant, username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return tok, nil
}

// VerifyCaller checks an Authorization header value against the user named
// in the request path. Errors wrap token.ErrInvalidToken or are
// ErrIdentityMismatch.
func (s *Service) VerifyCaller(authorization, tenant, expectedUsername string) (Caller, error) {
	raw := strings.TrimPrefix(authorization, bearerPrefix)
	if tenant == "" {
		return Caller{}, fmt.Errorf("%w: tenant is required", ErrInvalidArgument)
	}

	username, err := s.codec.Verify(tenant, raw)
	if err != nil {
		return Caller{}, err
	}
	if username != expectedUsername {
		return Caller{}, ErrIdentityMismatch
	}
	return Caller{tenant: tenant, username: username}, nil
}

func (s *Service) loginFailed(ctx context.Context, tenant, username string) error {
	if s.audit != nil {
		s.record(ctx, s.audit.LogLoginFailed(ctx, tenant, username))
	}
	logger.From(ctx, s.log).Info("login failed", "tenant", tenant, "username", username)
	return ErrUnauthenticated
}

func (s *Service) record(ctx context.Context, err error) {
	if err != nil {
		logger.From(ctx, s.log).Warn("audit append failed", "err", err)
	}
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.hashCost)
	})
	return s.dummyHash
}
