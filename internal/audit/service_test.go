package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestService_AppendRequiresTenantAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeSignup}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{Tenant: "t"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.Events()) != 0 {
		t.Fatalf("invalid events must not be stored")
	}
}

func TestService_NilIsNotConfigured(t *testing.T) {
	var svc *Service
	if err := svc.LogSignup(context.Background(), "t", "u"); err == nil {
		t.Fatalf("expected error from nil service")
	}
}

func TestService_FillsIDTimeAndIP(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	ctx := WithClientIP(context.Background(), "1.2.3.4")
	if err := svc.LogSignup(ctx, "tenant_agent_00", "alice"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	e := evs[0]
	if e.ID == "" || !e.CreatedAt.Equal(now) {
		t.Fatalf("expected id and created_at filled, got %+v", e)
	}
	if e.IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if e.Type != EventTypeSignup || e.Username != "alice" {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestService_FlightsBookedMetadata(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogFlightsBooked(context.Background(), "t", "alice", []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	e := repo.Events()[0]
	if e.Metadata["count"] != "2" || e.Metadata["booking_ids"] != "a,b" {
		t.Fatalf("unexpected metadata %v", e.Metadata)
	}
}

func TestLogRepo_WritesAuditGroup(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := NewService(NewLogRepo(l))

	if err := svc.LogLoginFailed(context.Background(), "t", "alice"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	group, ok := line["audit"].(map[string]any)
	if !ok {
		t.Fatalf("expected audit group, got %v", line)
	}
	if group["type"] != "login_failed" || group["username"] != "alice" {
		t.Fatalf("unexpected audit attrs %v", group)
	}
}
