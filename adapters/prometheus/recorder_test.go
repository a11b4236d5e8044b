package prometheus

import (
	"context"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsDeliveries(t *testing.T) {
	registry := prom.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	tags := map[string]string{"event_type": "customer.created", "status": "delivered"}
	recorder.IncCounter(ctx, "webhooks.delivery.total", 1, tags)
	recorder.IncCounter(ctx, "webhooks.delivery.total", 2, tags)

	got := testutil.ToFloat64(recorder.counters["webhooks_delivery_total"].vec.With(prom.Labels{
		"event_type": "customer.created",
		"status":     "delivered",
	}))
	if got != 3 {
		t.Fatalf("expected counter 3, got %v", got)
	}
}

func TestRecorderObservesLatency(t *testing.T) {
	registry := prom.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	tags := map[string]string{"event_type": "customer.created", "status": "delivered"}
	recorder.ObserveHistogram(ctx, "webhooks.delivery.latency_ms", 42, tags)
	recorder.ObserveHistogram(ctx, "webhooks.delivery.latency_ms", 120, tags)

	count, err := testutil.GatherAndCount(registry, "webhooks_delivery_latency_ms")
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one histogram series, got %d", count)
	}
}

func TestRecorderDropsUnknownTagsAfterFirstUse(t *testing.T) {
	registry := prom.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	recorder.IncCounter(ctx, "webhooks.inbound.total", 1, map[string]string{"provider": "zendesk"})
	// Extra tag is dropped, missing tag falls back to empty.
	recorder.IncCounter(ctx, "webhooks.inbound.total", 1, map[string]string{
		"provider": "zendesk",
		"extra":    "ignored",
	})
	recorder.IncCounter(ctx, "webhooks.inbound.total", 1, nil)

	got := testutil.ToFloat64(recorder.counters["webhooks_inbound_total"].vec.With(prom.Labels{
		"provider": "zendesk",
	}))
	if got != 2 {
		t.Fatalf("expected counter 2 for provider series, got %v", got)
	}
	empty := testutil.ToFloat64(recorder.counters["webhooks_inbound_total"].vec.With(prom.Labels{
		"provider": "",
	}))
	if empty != 1 {
		t.Fatalf("expected counter 1 for empty series, got %v", empty)
	}
}

func TestSanitizeName(t *testing.T) {
	if got := sanitizeName("webhooks.delivery.latency_ms"); got != "webhooks_delivery_latency_ms" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	if got := sanitizeName("2xx-rate"); got != "_2xx_rate" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
}
