package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhooks/core"
)

func TestRESTClientDeliverPostsSignedPayload(t *testing.T) {
	var gotMethod, gotSignature, gotEvent, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotSignature = r.Header.Get("X-Signature")
		gotEvent = r.Header.Get("X-Event")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewRESTClient(nil)
	res, err := client.Deliver(context.Background(), core.DeliveryRequest{
		URL:  server.URL,
		Body: []byte(`{"event":"customer.created"}`),
		Headers: map[string]string{
			"X-Signature": "sha256=abc",
			"X-Event":     "customer.created",
		},
	})
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if res.Latency <= 0 {
		t.Fatal("expected measured latency")
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotSignature != "sha256=abc" || gotEvent != "customer.created" {
		t.Fatalf("expected signature headers forwarded, got %q %q", gotSignature, gotEvent)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected json content type, got %q", gotContentType)
	}
	if string(gotBody) != `{"event":"customer.created"}` {
		t.Fatalf("unexpected body: %s", gotBody)
	}
}

func TestRESTClientDeliverReportsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewRESTClient(nil)
	res, err := client.Deliver(context.Background(), core.DeliveryRequest{
		URL:  server.URL,
		Body: []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("status codes are data, not transport errors: %v", err)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.StatusCode)
	}
}

func TestRESTClientDeliverRejectsInvalidURL(t *testing.T) {
	client := NewRESTClient(nil)
	_, err := client.Deliver(context.Background(), core.DeliveryRequest{
		URL:  "not a url",
		Body: []byte(`{}`),
	})
	if err == nil {
		t.Fatal("expected invalid url error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.WebhookErrorBadInput {
		t.Fatalf("expected bad input text code, got %v", err)
	}
}

func TestRESTClientDeliverWrapsConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	serverURL := server.URL
	server.Close()

	client := NewRESTClient(nil)
	_, err := client.Deliver(context.Background(), core.DeliveryRequest{
		URL:  serverURL,
		Body: []byte(`{}`),
	})
	if err == nil {
		t.Fatal("expected connection error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.WebhookErrorDeliveryFailed {
		t.Fatalf("expected delivery failed text code, got %v", err)
	}
}
