package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryEndpointStoreListActiveByEvent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEndpointStore()

	subscribed, err := store.Create(ctx, Endpoint{
		OwnerID: "owner-1",
		URL:     "https://hooks.example.com/a",
		Events:  []EventType{EventCustomerCreated, EventTaskCreated},
		Active:  true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.Create(ctx, Endpoint{
		OwnerID: "owner-1",
		URL:     "https://hooks.example.com/b",
		Events:  []EventType{EventTaskCompleted},
		Active:  true,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.Create(ctx, Endpoint{
		OwnerID: "owner-1",
		URL:     "https://hooks.example.com/c",
		Events:  []EventType{EventCustomerCreated},
		Active:  false,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.Create(ctx, Endpoint{
		OwnerID: "owner-2",
		URL:     "https://hooks.example.com/d",
		Events:  []EventType{EventCustomerCreated},
		Active:  true,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	matches, err := store.ListActiveByEvent(ctx, "owner-1", EventCustomerCreated)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != subscribed.ID {
		t.Fatalf("expected only the active subscribed endpoint, got %+v", matches)
	}
}

func TestMemoryEndpointStoreRotateSecret(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEndpointStore()
	endpoint, err := store.Create(ctx, Endpoint{
		OwnerID: "owner-1",
		URL:     "https://hooks.example.com/a",
		Events:  []EventType{EventCustomerCreated},
		Secret:  "old",
		Active:  true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rotated, err := store.RotateSecret(ctx, endpoint.ID, "new-secret")
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if rotated.Secret != "new-secret" {
		t.Fatalf("expected rotated secret, got %q", rotated.Secret)
	}
	if _, err := store.RotateSecret(ctx, "missing", "x"); !errors.Is(err, ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestMemoryDeadLetterStoreIdempotentPerAttempt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeadLetterStore()

	first, err := store.Create(ctx, DeadLetterEntry{AttemptID: "attempt-1", OwnerID: "owner-1", Error: "boom"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := store.Create(ctx, DeadLetterEntry{AttemptID: "attempt-1", OwnerID: "owner-1", Error: "boom again"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("expected one dead letter entry per attempt")
	}

	entries, err := store.List(ctx, "owner-1", true, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single entry, got %d", len(entries))
	}
}

func TestMemoryDeadLetterStoreResolve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeadLetterStore()
	entry, err := store.Create(ctx, DeadLetterEntry{AttemptID: "attempt-1", OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	resolved, err := store.Resolve(ctx, entry.ID, "operator replayed", at)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(at) {
		t.Fatalf("expected resolved entry, got %+v", resolved)
	}

	open, err := store.List(ctx, "owner-1", false, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no unresolved entries, got %d", len(open))
	}
}

func TestMemoryTokenStoreRevokeIsIrreversible(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	token, err := store.Create(ctx, InboundToken{
		OwnerID:    "owner-1",
		Provider:   "zendesk",
		Token:      "tok_abc123",
		ActionType: ActionCreateTask,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	firstAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	revoked, err := store.Revoke(ctx, token.ID, firstAt)
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if revoked.Active || revoked.RevokedAt == nil {
		t.Fatalf("expected revoked token, got %+v", revoked)
	}

	again, err := store.Revoke(ctx, token.ID, firstAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if !again.RevokedAt.Equal(firstAt) {
		t.Fatal("expected original revocation timestamp to be preserved")
	}
}

func TestMemoryInboundLogStoreMarkOutcome(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryInboundLogStore()
	log, err := store.Create(ctx, InboundLog{TokenID: "token-1", OwnerID: "owner-1", Payload: []byte(`{}`)})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	updated, err := store.MarkOutcome(ctx, log.ID, true, "record-9", "", at)
	if err != nil {
		t.Fatalf("mark outcome failed: %v", err)
	}
	if !updated.Processed || updated.RecordID != "record-9" {
		t.Fatalf("unexpected outcome: %+v", updated)
	}
}
