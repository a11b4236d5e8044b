// Package gocommand glues the webhook command and query handlers into
// the go-command registry and dispatcher.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	"github.com/goliatone/go-webhooks/command"
	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := gocmd.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(gocmd.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *gocmd.Registry
}

func NewRegistryAdapter(registry *gocmd.Registry) *RegistryAdapter {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *gocmd.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver gocmd.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd gocmd.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry gocmd.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd gocmd.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry gocmd.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// MountDependencies holds the services and stores the webhook command
// and query surface is built from. Nil fields skip the handlers that
// would need them.
type MountDependencies struct {
	Delivery    command.DeliveryService
	Inbound     command.InboundService
	Endpoints   query.EndpointReader
	Deliveries  query.DeliveryReader
	DeadLetters query.DeadLetterReader
	Tokens      query.TokenReader
	InboundLogs query.InboundLogReader
	Breakers    query.BreakerStatsReader

	// Mutating handlers need the write side of the stores.
	EndpointWriter   core.EndpointStore
	DeadLetterWriter core.DeadLetterStore
	TokenWriter      core.TokenStore
}

// Mount registers and subscribes every webhook command and query whose
// dependencies are present, and returns the subscriptions for teardown.
func Mount(adapter *RegistryAdapter, deps MountDependencies, runnerOpts ...runner.Option) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	var subscriptions []commanddispatcher.Subscription
	track := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			for _, s := range subscriptions {
				s.Unsubscribe()
			}
			return err
		}
		subscriptions = append(subscriptions, sub)
		return nil
	}

	if deps.Delivery != nil {
		if err := track(RegisterAndSubscribe(adapter, command.NewTriggerEventCommand(deps.Delivery), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribe(adapter, command.NewTestWebhookCommand(deps.Delivery), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribe(adapter, command.NewRetryDeliveryCommand(deps.Delivery), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if deps.Inbound != nil {
		if err := track(RegisterAndSubscribe(adapter, command.NewProcessInboundCommand(deps.Inbound), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if deps.EndpointWriter != nil {
		if err := track(RegisterAndSubscribe(adapter, command.NewRegisterEndpointCommand(deps.EndpointWriter), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribe(adapter, command.NewUpdateEndpointCommand(deps.EndpointWriter), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribe(adapter, command.NewRotateEndpointSecretCommand(deps.EndpointWriter), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribe(adapter, command.NewSetEndpointActiveCommand(deps.EndpointWriter), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if deps.DeadLetterWriter != nil {
		if err := track(RegisterAndSubscribe(adapter, command.NewResolveDeadLetterCommand(deps.DeadLetterWriter), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if deps.TokenWriter != nil {
		if err := track(RegisterAndSubscribe(adapter, command.NewCreateInboundTokenCommand(deps.TokenWriter), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribe(adapter, command.NewRevokeInboundTokenCommand(deps.TokenWriter), runnerOpts...)); err != nil {
			return nil, err
		}
	}

	if deps.Endpoints != nil {
		if err := track(RegisterAndSubscribeQuery(adapter, query.NewGetEndpointQuery(deps.Endpoints), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribeQuery(adapter, query.NewListEndpointsQuery(deps.Endpoints), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if deps.Deliveries != nil {
		if err := track(RegisterAndSubscribeQuery(adapter, query.NewGetDeliveryQuery(deps.Deliveries), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribeQuery(adapter, query.NewListEndpointDeliveryQuery(deps.Deliveries), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribeQuery(adapter, query.NewListOwnerDeliveryQuery(deps.Deliveries), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if deps.DeadLetters != nil {
		if err := track(RegisterAndSubscribeQuery(adapter, query.NewGetDeadLetterQuery(deps.DeadLetters), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribeQuery(adapter, query.NewListDeadLettersQuery(deps.DeadLetters), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if deps.Tokens != nil {
		if err := track(RegisterAndSubscribeQuery(adapter, query.NewListInboundTokensQuery(deps.Tokens), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if deps.InboundLogs != nil {
		if err := track(RegisterAndSubscribeQuery(adapter, query.NewListInboundLogHistoryQuery(deps.InboundLogs), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if deps.Breakers != nil {
		if err := track(RegisterAndSubscribeQuery(adapter, query.NewBreakerStatsQuery(deps.Breakers), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	return subscriptions, nil
}
