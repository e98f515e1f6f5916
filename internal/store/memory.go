package store

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process memory. Every durability level is
// acknowledged immediately. Useful for tests and local runs.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[docKey]User
	bookings map[docKey]Booking
}

type docKey struct {
	tenant string
	id     string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    map[docKey]User{},
		bookings: map[docKey]Booking{},
	}
}

func (m *MemoryStore) CreateUser(ctx context.Context, u User, d Durability) error {
	if err := validateWrite(u.Tenant, u.Username, d); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := docKey{u.Tenant, u.Username}
	if _, ok := m.users[k]; ok {
		return ErrAlreadyExists
	}
	m.users[k] = cloneUser(u)
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, tenant, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[docKey{tenant, username}]
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) ReplaceUser(ctx context.Context, u User, d Durability) error {
	if err := validateWrite(u.Tenant, u.Username, d); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := docKey{u.Tenant, u.Username}
	if _, ok := m.users[k]; !ok {
		return ErrNotFound
	}
	m.users[k] = cloneUser(u)
	return nil
}

func (m *MemoryStore) PutBooking(ctx context.Context, b Booking, d Durability) error {
	if err := validateWrite(b.Tenant, b.ID, d); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[docKey{b.Tenant, b.ID}] = b
	return nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, tenant, id string) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[docKey{tenant, id}]
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func cloneUser(u User) User {
	out := u
	out.Flights = append([]string{}, u.Flights...)
	return out
}
