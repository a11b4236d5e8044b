package gocommand

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	"github.com/goliatone/go-webhooks/command"
	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "webhooks.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "webhooks.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "webhooks.command.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "webhooks.command.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(gocmd.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := gocmd.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, gocmd.CommandMeta, *gocmd.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(gocmd.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := gocmd.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("webhooks.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestMountRegistersWebhookSurface(t *testing.T) {
	adapter := NewRegistryAdapter(gocmd.NewRegistry())
	endpoints := core.NewMemoryEndpointStore()
	tokens := core.NewMemoryTokenStore()

	subscriptions, err := Mount(adapter, MountDependencies{
		Endpoints:      endpoints,
		Tokens:         tokens,
		EndpointWriter: endpoints,
		TokenWriter:    tokens,
	})
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer func() {
		for _, sub := range subscriptions {
			sub.Unsubscribe()
		}
	}()
	// 4 endpoint commands + 2 token commands + 2 endpoint queries + 1 token query.
	if len(subscriptions) != 9 {
		t.Fatalf("expected 9 subscriptions, got %d", len(subscriptions))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	ctx := context.Background()
	if err := Dispatch(ctx, command.RegisterEndpointMessage{Endpoint: core.Endpoint{
		OwnerID: "tenant-1",
		URL:     "https://hooks.acme.example.com/cs",
		Events:  []core.EventType{core.EventCustomerCreated},
		Secret:  "whsec_mount",
		Active:  true,
	}}); err != nil {
		t.Fatalf("dispatch register endpoint: %v", err)
	}

	listed, err := Query[query.ListEndpointsMessage, []core.Endpoint](ctx, query.ListEndpointsMessage{OwnerID: "tenant-1"})
	if err != nil {
		t.Fatalf("query endpoints: %v", err)
	}
	if len(listed) != 1 || listed[0].URL != "https://hooks.acme.example.com/cs" {
		t.Fatalf("expected registered endpoint via query, got %#v", listed)
	}
}
