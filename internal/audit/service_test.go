package audit

import (
	"context"
	"testing"
	"time"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{LeadID: "l1"}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestService_AppendFillsDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return fixed }

	ctx := WithClientIP(context.Background(), "1.2.3.4")
	if err := svc.Append(ctx, Event{Type: EventLeadClaimed, LeadID: "l1", ActorUserID: "u1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if !evs[0].CreatedAt.Equal(fixed) {
		t.Fatalf("expected created_at from clock, got %s", evs[0].CreatedAt)
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured from context, got %q", evs[0].IPAddress)
	}
}

func TestService_LogUserAction(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogUserAction(context.Background(), EventUserCreated, "admin", "ADMIN", "u2", "user created"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].UserID != "u2" || evs[0].Type != EventUserCreated {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestService_NoRepository(t *testing.T) {
	svc := NewService(nil)
	if err := svc.Append(context.Background(), Event{Type: EventLeadCreated}); err == nil {
		t.Fatalf("expected error without repository")
	}
}
