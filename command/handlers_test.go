package command

import (
	"context"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/inbound"
	"github.com/goliatone/go-webhooks/outbound"
)

type stubDeliveryService struct {
	triggerFn func(ctx context.Context, ownerID string, eventType core.EventType, data map[string]any) ([]outbound.DeliveryResult, error)
	testFn    func(ctx context.Context, endpointID string) (outbound.DeliveryResult, error)
	retryFn   func(ctx context.Context, attemptID string) error
}

func (s stubDeliveryService) TriggerEvent(ctx context.Context, ownerID string, eventType core.EventType, data map[string]any) ([]outbound.DeliveryResult, error) {
	return s.triggerFn(ctx, ownerID, eventType, data)
}

func (s stubDeliveryService) TestWebhook(ctx context.Context, endpointID string) (outbound.DeliveryResult, error) {
	return s.testFn(ctx, endpointID)
}

func (s stubDeliveryService) RetryDelivery(ctx context.Context, attemptID string) error {
	return s.retryFn(ctx, attemptID)
}

func TestTriggerEventCommand_DelegatesAndStoresResults(t *testing.T) {
	expected := []outbound.DeliveryResult{{EndpointID: "ep-1", Status: core.DeliveryStatusDelivered}}
	called := false
	svc := stubDeliveryService{
		triggerFn: func(_ context.Context, ownerID string, eventType core.EventType, data map[string]any) ([]outbound.DeliveryResult, error) {
			called = true
			if ownerID != "tenant-1" || eventType != core.EventCustomerCreated {
				t.Fatalf("unexpected trigger input: %q %q", ownerID, eventType)
			}
			if data["customer_id"] != "c-1" {
				t.Fatalf("unexpected payload: %v", data)
			}
			return expected, nil
		},
	}

	cmd := NewTriggerEventCommand(svc)
	collector := gocmd.NewResult[[]outbound.DeliveryResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, TriggerEventMessage{
		OwnerID:   "tenant-1",
		EventType: core.EventCustomerCreated,
		Data:      map[string]any{"customer_id": "c-1"},
	})
	if err != nil {
		t.Fatalf("execute trigger event: %v", err)
	}
	if !called {
		t.Fatal("expected delivery service invocation")
	}
	results, ok := collector.Load()
	if !ok || len(results) != 1 || results[0].EndpointID != "ep-1" {
		t.Fatalf("unexpected stored results: %#v", results)
	}
}

func TestRetryDeliveryCommand_Delegates(t *testing.T) {
	called := false
	svc := stubDeliveryService{
		retryFn: func(_ context.Context, attemptID string) error {
			called = true
			if attemptID != "attempt-1" {
				t.Fatalf("unexpected attempt id %q", attemptID)
			}
			return nil
		},
	}
	cmd := NewRetryDeliveryCommand(svc)
	if err := cmd.Execute(context.Background(), RetryDeliveryMessage{AttemptID: "attempt-1"}); err != nil {
		t.Fatalf("execute retry: %v", err)
	}
	if !called {
		t.Fatal("expected retry invocation")
	}
}

func TestRegisterEndpointCommand_GeneratesSecretWhenBlank(t *testing.T) {
	store := core.NewMemoryEndpointStore()
	cmd := NewRegisterEndpointCommand(store)
	collector := gocmd.NewResult[core.Endpoint]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, RegisterEndpointMessage{Endpoint: core.Endpoint{
		OwnerID: "tenant-1",
		URL:     "https://hooks.acme.example.com/cs",
		Events:  []core.EventType{core.EventCustomerCreated},
		Secret:  "placeholder",
		Active:  true,
	}})
	if err != nil {
		t.Fatalf("execute register: %v", err)
	}
	created, ok := collector.Load()
	if !ok || created.ID == "" {
		t.Fatalf("expected created endpoint, got %#v", created)
	}

	// Blank secret gets generated.
	err = cmd.Execute(ctx, RegisterEndpointMessage{Endpoint: core.Endpoint{
		OwnerID: "tenant-1",
		URL:     "https://hooks.other.example.com/cs",
		Events:  []core.EventType{core.EventCustomerCreated},
		Secret:  "  ",
		Active:  true,
	}})
	if err != nil {
		t.Fatalf("execute register without secret: %v", err)
	}
	generated, _ := collector.Load()
	if generated.Secret == "" || generated.Secret == "  " {
		t.Fatalf("expected generated secret, got %q", generated.Secret)
	}
}

func TestRotateEndpointSecretCommand_RotatesAndStores(t *testing.T) {
	store := core.NewMemoryEndpointStore()
	endpoint, err := store.Create(context.Background(), core.Endpoint{
		OwnerID: "tenant-1",
		URL:     "https://hooks.acme.example.com/cs",
		Events:  []core.EventType{core.EventCustomerCreated},
		Secret:  "whsec_old",
		Active:  true,
	})
	if err != nil {
		t.Fatalf("create endpoint: %v", err)
	}

	cmd := NewRotateEndpointSecretCommand(store)
	collector := gocmd.NewResult[core.Endpoint]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, RotateEndpointSecretMessage{EndpointID: endpoint.ID}); err != nil {
		t.Fatalf("execute rotate: %v", err)
	}
	rotated, ok := collector.Load()
	if !ok || rotated.Secret == "whsec_old" || rotated.Secret == "" {
		t.Fatalf("expected fresh secret, got %#v", rotated)
	}
}

func TestResolveDeadLetterCommand_Resolves(t *testing.T) {
	store := core.NewMemoryDeadLetterStore()
	entry, err := store.Create(context.Background(), core.DeadLetterEntry{
		AttemptID: "attempt-1",
		OwnerID:   "tenant-1",
		EventType: core.EventCustomerCreated,
		Payload:   []byte(`{}`),
		Error:     "HTTP 500",
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	cmd := NewResolveDeadLetterCommand(store)
	cmd.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	collector := gocmd.NewResult[core.DeadLetterEntry]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, ResolveDeadLetterMessage{EntryID: entry.ID, Note: "handled"}); err != nil {
		t.Fatalf("execute resolve: %v", err)
	}
	resolved, ok := collector.Load()
	if !ok || !resolved.Resolved || resolved.Note != "handled" {
		t.Fatalf("unexpected resolved entry: %#v", resolved)
	}
}

func TestRevokeInboundTokenCommand_Revokes(t *testing.T) {
	store := core.NewMemoryTokenStore()
	token, err := store.Create(context.Background(), core.InboundToken{
		OwnerID:    "tenant-1",
		Provider:   "zendesk",
		Token:      "tok_1",
		ActionType: core.ActionCreateTask,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	cmd := NewRevokeInboundTokenCommand(store)
	collector := gocmd.NewResult[core.InboundToken]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, RevokeInboundTokenMessage{TokenID: token.ID}); err != nil {
		t.Fatalf("execute revoke: %v", err)
	}
	revoked, ok := collector.Load()
	if !ok || revoked.Active || revoked.RevokedAt == nil {
		t.Fatalf("unexpected revoked token: %#v", revoked)
	}
}

func TestProcessInboundCommand_StoresOutcome(t *testing.T) {
	tokens := core.NewMemoryTokenStore()
	logs := core.NewMemoryInboundLogStore()
	token, err := tokens.Create(context.Background(), core.InboundToken{
		OwnerID:    "tenant-1",
		Provider:   "zendesk",
		Token:      "tok_cmd",
		ActionType: core.ActionCreateCustomer,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	gateway, err := inbound.NewGateway(inbound.Dependencies{
		Tokens:   tokens,
		Logs:     logs,
		Executor: staticExecutor{},
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	cmd := NewProcessInboundCommand(gateway)
	collector := gocmd.NewResult[inbound.Outcome]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err = cmd.Execute(ctx, ProcessInboundMessage{
		Provider: "zendesk",
		Token:    token.Token,
		Payload:  []byte(`{"name":"Acme"}`),
	})
	if err != nil {
		t.Fatalf("execute process inbound: %v", err)
	}
	outcome, ok := collector.Load()
	if !ok || !outcome.Success || outcome.RecordID != "record-1" {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
}

type staticExecutor struct{}

func (staticExecutor) Execute(context.Context, string, core.ActionType, map[string]any) (string, error) {
	return "record-1", nil
}

func TestMessageValidation(t *testing.T) {
	if err := (TriggerEventMessage{EventType: core.EventCustomerCreated}).Validate(); err == nil {
		t.Fatal("expected missing owner id to be rejected")
	}
	if err := (TriggerEventMessage{OwnerID: "t", EventType: "bogus"}).Validate(); err == nil {
		t.Fatal("expected unknown event type to be rejected")
	}
	if err := (RetryDeliveryMessage{}).Validate(); err == nil {
		t.Fatal("expected missing attempt id to be rejected")
	}
	if err := (ProcessInboundMessage{Provider: "zendesk"}).Validate(); err == nil {
		t.Fatal("expected missing token to be rejected")
	}
	if err := (CreateInboundTokenMessage{Token: core.InboundToken{
		OwnerID: "t", Token: "tok", ActionType: "delete_everything",
	}}).Validate(); err == nil {
		t.Fatal("expected unknown action type to be rejected")
	}
}
