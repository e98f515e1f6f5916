package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_CreateNeverOverwrites(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if err := m.CreateUser(ctx, User{Tenant: "t", Username: "alice", PasswordHash: "h1"}, DurabilityNone); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := m.CreateUser(ctx, User{Tenant: "t", Username: "alice", PasswordHash: "h2"}, DurabilityMajority)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	u, err := m.GetUser(ctx, "t", "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.PasswordHash != "h1" {
		t.Fatalf("existing document was overwritten")
	}
}

func TestMemoryStore_TenantScoped(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_ = m.CreateUser(ctx, User{Tenant: "t1", Username: "alice"}, DurabilityNone)
	if _, err := m.GetUser(ctx, "t2", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}

	_ = m.PutBooking(ctx, Booking{Tenant: "t1", ID: "b1"}, DurabilityNone)
	if _, err := m.GetBooking(ctx, "t2", "b1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
}

func TestMemoryStore_ReplaceRequiresExisting(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if err := m.ReplaceUser(ctx, User{Tenant: "t", Username: "ghost"}, DurabilityNone); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = m.CreateUser(ctx, User{Tenant: "t", Username: "alice"}, DurabilityNone)
	if err := m.ReplaceUser(ctx, User{Tenant: "t", Username: "alice", Flights: []string{"b1"}}, DurabilityPersistToMajority); err != nil {
		t.Fatalf("replace: %v", err)
	}
	u, _ := m.GetUser(ctx, "t", "alice")
	if len(u.Flights) != 1 || u.Flights[0] != "b1" {
		t.Fatalf("unexpected flights %v", u.Flights)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_ = m.CreateUser(ctx, User{Tenant: "t", Username: "alice", Flights: []string{"b1"}}, DurabilityNone)
	u, _ := m.GetUser(ctx, "t", "alice")
	u.Flights[0] = "changed"

	again, _ := m.GetUser(ctx, "t", "alice")
	if again.Flights[0] != "b1" {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestMemoryStore_RejectsInvalidWrites(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if err := m.CreateUser(ctx, User{Tenant: "t", Username: "alice"}, Durability(5)); !errors.Is(err, ErrInvalidDurability) {
		t.Fatalf("expected ErrInvalidDurability, got %v", err)
	}
	if err := m.CreateUser(ctx, User{Username: "alice"}, DurabilityNone); err == nil {
		t.Fatalf("expected error for missing tenant")
	}
}
