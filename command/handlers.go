package command

import (
	"context"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/inbound"
	"github.com/goliatone/go-webhooks/outbound"
)

// DeliveryService is the outbound dispatch surface the commands drive.
// outbound.Dispatcher implements it.
type DeliveryService interface {
	TriggerEvent(ctx context.Context, ownerID string, eventType core.EventType, data map[string]any) ([]outbound.DeliveryResult, error)
	TestWebhook(ctx context.Context, endpointID string) (outbound.DeliveryResult, error)
	RetryDelivery(ctx context.Context, attemptID string) error
}

// InboundService is the ingestion surface. inbound.Gateway implements it.
type InboundService interface {
	ProcessInbound(ctx context.Context, provider string, token string, rawPayload []byte) (inbound.Outcome, error)
}

type TriggerEventCommand struct {
	service DeliveryService
}

func NewTriggerEventCommand(service DeliveryService) *TriggerEventCommand {
	return &TriggerEventCommand{service: service}
}

func (c *TriggerEventCommand) Execute(ctx context.Context, msg TriggerEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	results, err := c.service.TriggerEvent(ctx, msg.OwnerID, msg.EventType, msg.Data)
	if err != nil {
		return err
	}
	storeResult(ctx, results)
	return nil
}

type TestWebhookCommand struct {
	service DeliveryService
}

func NewTestWebhookCommand(service DeliveryService) *TestWebhookCommand {
	return &TestWebhookCommand{service: service}
}

func (c *TestWebhookCommand) Execute(ctx context.Context, msg TestWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	result, err := c.service.TestWebhook(ctx, msg.EndpointID)
	if err != nil {
		return err
	}
	storeResult(ctx, result)
	return nil
}

type RetryDeliveryCommand struct {
	service DeliveryService
}

func NewRetryDeliveryCommand(service DeliveryService) *RetryDeliveryCommand {
	return &RetryDeliveryCommand{service: service}
}

func (c *RetryDeliveryCommand) Execute(ctx context.Context, msg RetryDeliveryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	return c.service.RetryDelivery(ctx, msg.AttemptID)
}

type ResolveDeadLetterCommand struct {
	store core.DeadLetterStore
	now   func() time.Time
}

func NewResolveDeadLetterCommand(store core.DeadLetterStore) *ResolveDeadLetterCommand {
	return &ResolveDeadLetterCommand{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (c *ResolveDeadLetterCommand) Execute(ctx context.Context, msg ResolveDeadLetterMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: dead letter store is required")
	}
	entry, err := c.store.Resolve(ctx, msg.EntryID, msg.Note, c.now())
	if err != nil {
		return err
	}
	storeResult(ctx, entry)
	return nil
}

type RegisterEndpointCommand struct {
	store core.EndpointStore
}

func NewRegisterEndpointCommand(store core.EndpointStore) *RegisterEndpointCommand {
	return &RegisterEndpointCommand{store: store}
}

func (c *RegisterEndpointCommand) Execute(ctx context.Context, msg RegisterEndpointMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: endpoint store is required")
	}
	endpoint := msg.Endpoint
	if strings.TrimSpace(endpoint.Secret) == "" {
		secret, err := core.GenerateSecret()
		if err != nil {
			return err
		}
		endpoint.Secret = secret
	}
	created, err := c.store.Create(ctx, endpoint)
	if err != nil {
		return err
	}
	storeResult(ctx, created)
	return nil
}

type UpdateEndpointCommand struct {
	store core.EndpointStore
}

func NewUpdateEndpointCommand(store core.EndpointStore) *UpdateEndpointCommand {
	return &UpdateEndpointCommand{store: store}
}

func (c *UpdateEndpointCommand) Execute(ctx context.Context, msg UpdateEndpointMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: endpoint store is required")
	}
	updated, err := c.store.Update(ctx, msg.Endpoint)
	if err != nil {
		return err
	}
	storeResult(ctx, updated)
	return nil
}

type RotateEndpointSecretCommand struct {
	store core.EndpointStore
}

func NewRotateEndpointSecretCommand(store core.EndpointStore) *RotateEndpointSecretCommand {
	return &RotateEndpointSecretCommand{store: store}
}

func (c *RotateEndpointSecretCommand) Execute(ctx context.Context, msg RotateEndpointSecretMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: endpoint store is required")
	}
	secret := strings.TrimSpace(msg.Secret)
	if secret == "" {
		generated, err := core.GenerateSecret()
		if err != nil {
			return err
		}
		secret = generated
	}
	rotated, err := c.store.RotateSecret(ctx, msg.EndpointID, secret)
	if err != nil {
		return err
	}
	storeResult(ctx, rotated)
	return nil
}

type SetEndpointActiveCommand struct {
	store core.EndpointStore
}

func NewSetEndpointActiveCommand(store core.EndpointStore) *SetEndpointActiveCommand {
	return &SetEndpointActiveCommand{store: store}
}

func (c *SetEndpointActiveCommand) Execute(ctx context.Context, msg SetEndpointActiveMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: endpoint store is required")
	}
	updated, err := c.store.SetActive(ctx, msg.EndpointID, msg.Active)
	if err != nil {
		return err
	}
	storeResult(ctx, updated)
	return nil
}

type CreateInboundTokenCommand struct {
	store core.TokenStore
}

func NewCreateInboundTokenCommand(store core.TokenStore) *CreateInboundTokenCommand {
	return &CreateInboundTokenCommand{store: store}
}

func (c *CreateInboundTokenCommand) Execute(ctx context.Context, msg CreateInboundTokenMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: token store is required")
	}
	created, err := c.store.Create(ctx, msg.Token)
	if err != nil {
		return err
	}
	storeResult(ctx, created)
	return nil
}

type RevokeInboundTokenCommand struct {
	store core.TokenStore
	now   func() time.Time
}

func NewRevokeInboundTokenCommand(store core.TokenStore) *RevokeInboundTokenCommand {
	return &RevokeInboundTokenCommand{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (c *RevokeInboundTokenCommand) Execute(ctx context.Context, msg RevokeInboundTokenMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: token store is required")
	}
	revoked, err := c.store.Revoke(ctx, msg.TokenID, c.now())
	if err != nil {
		return err
	}
	storeResult(ctx, revoked)
	return nil
}

type ProcessInboundCommand struct {
	service InboundService
}

func NewProcessInboundCommand(service InboundService) *ProcessInboundCommand {
	return &ProcessInboundCommand{service: service}
}

func (c *ProcessInboundCommand) Execute(ctx context.Context, msg ProcessInboundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: inbound service is required")
	}
	outcome, err := c.service.ProcessInbound(ctx, msg.Provider, msg.Token, msg.Payload)
	if err != nil {
		return err
	}
	storeResult(ctx, outcome)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
