package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/inbound"
)

type recordingExecutor struct {
	calls int
	err   error
}

func (e *recordingExecutor) Execute(context.Context, string, core.ActionType, map[string]any) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	return "record-1", nil
}

func newInboundServer(t *testing.T) (*httptest.Server, *core.MemoryTokenStore, *core.MemoryInboundLogStore, *recordingExecutor) {
	t.Helper()
	tokens := core.NewMemoryTokenStore()
	logs := core.NewMemoryInboundLogStore()
	executor := &recordingExecutor{}

	gateway, err := inbound.NewGateway(inbound.Dependencies{
		Tokens:   tokens,
		Logs:     logs,
		Executor: executor,
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	handler, err := NewInboundHandler(gateway, nil)
	if err != nil {
		t.Fatalf("new inbound handler: %v", err)
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, tokens, logs, executor
}

func createHandlerToken(t *testing.T, tokens *core.MemoryTokenStore) core.InboundToken {
	t.Helper()
	token, err := tokens.Create(context.Background(), core.InboundToken{
		OwnerID:    "tenant-1",
		Provider:   "zendesk",
		Token:      "tok_http",
		ActionType: core.ActionCreateCustomer,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	return token
}

func TestInboundHandlerAcceptsValidPayload(t *testing.T) {
	server, tokens, logs, executor := newInboundServer(t)
	token := createHandlerToken(t, tokens)

	res, err := http.Post(
		server.URL+"/webhooks/zendesk/"+token.Token,
		"application/json",
		strings.NewReader(`{"name":"Acme"}`),
	)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["success"] != true || payload["record_id"] != "record-1" {
		t.Fatalf("unexpected response: %+v", payload)
	}
	if executor.calls != 1 {
		t.Fatalf("expected one executor call, got %d", executor.calls)
	}

	stored, err := logs.ListByToken(context.Background(), token.ID, 0)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one durable log, got %d", len(stored))
	}
}

func TestInboundHandlerAuthStatuses(t *testing.T) {
	server, tokens, _, _ := newInboundServer(t)
	token := createHandlerToken(t, tokens)

	res, err := http.Post(server.URL+"/webhooks/zendesk/tok_bogus", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", res.StatusCode)
	}

	if _, err := tokens.Revoke(context.Background(), token.ID, token.CreatedAt); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	res, err = http.Post(server.URL+"/webhooks/zendesk/"+token.Token, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for revoked token, got %d", res.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	errBody, ok := payload["error"].(map[string]any)
	if !ok || errBody["text_code"] != core.WebhookErrorTokenRevoked {
		t.Fatalf("unexpected error body: %+v", payload)
	}
}

func TestInboundHandlerRecordsDeterministicFailureWith200(t *testing.T) {
	server, tokens, logs, _ := newInboundServer(t)
	token := createHandlerToken(t, tokens)

	// Missing the required "name" field: recorded outcome, not a retryable
	// error, so the caller sees 200.
	res, err := http.Post(
		server.URL+"/webhooks/zendesk/"+token.Token,
		"application/json",
		strings.NewReader(`{"company":"Acme"}`),
	)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for recorded failure, got %d", res.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["success"] != false {
		t.Fatalf("expected failed outcome, got %+v", payload)
	}
	errText, _ := payload["error"].(string)
	if !strings.Contains(errText, "name") {
		t.Fatalf("expected missing field named, got %q", errText)
	}

	stored, err := logs.ListByToken(context.Background(), token.ID, 0)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(stored) != 1 || !stored[0].Processed {
		t.Fatalf("expected processed log with recorded failure, got %+v", stored)
	}
}
