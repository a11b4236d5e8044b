package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-webhooks/core"
)

const (
	TypeTriggerEvent         = "webhooks.command.event.trigger"
	TypeTestWebhook          = "webhooks.command.endpoint.test"
	TypeRetryDelivery        = "webhooks.command.delivery.retry"
	TypeResolveDeadLetter    = "webhooks.command.dead_letter.resolve"
	TypeRegisterEndpoint     = "webhooks.command.endpoint.register"
	TypeUpdateEndpoint       = "webhooks.command.endpoint.update"
	TypeRotateEndpointSecret = "webhooks.command.endpoint.rotate_secret"
	TypeSetEndpointActive    = "webhooks.command.endpoint.set_active"
	TypeCreateInboundToken   = "webhooks.command.token.create"
	TypeRevokeInboundToken   = "webhooks.command.token.revoke"
	TypeProcessInbound       = "webhooks.command.inbound.process"
)

type TriggerEventMessage struct {
	OwnerID   string
	EventType core.EventType
	Data      map[string]any
}

func (TriggerEventMessage) Type() string { return TypeTriggerEvent }

func (m TriggerEventMessage) Validate() error {
	if strings.TrimSpace(m.OwnerID) == "" {
		return fmt.Errorf("command: owner id is required")
	}
	if err := m.EventType.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

type TestWebhookMessage struct {
	EndpointID string
}

func (TestWebhookMessage) Type() string { return TypeTestWebhook }

func (m TestWebhookMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return fmt.Errorf("command: endpoint id is required")
	}
	return nil
}

type RetryDeliveryMessage struct {
	AttemptID string
}

func (RetryDeliveryMessage) Type() string { return TypeRetryDelivery }

func (m RetryDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.AttemptID) == "" {
		return fmt.Errorf("command: attempt id is required")
	}
	return nil
}

type ResolveDeadLetterMessage struct {
	EntryID string
	Note    string
}

func (ResolveDeadLetterMessage) Type() string { return TypeResolveDeadLetter }

func (m ResolveDeadLetterMessage) Validate() error {
	if strings.TrimSpace(m.EntryID) == "" {
		return fmt.Errorf("command: dead letter entry id is required")
	}
	return nil
}

type RegisterEndpointMessage struct {
	Endpoint core.Endpoint
}

func (RegisterEndpointMessage) Type() string { return TypeRegisterEndpoint }

func (m RegisterEndpointMessage) Validate() error {
	if err := m.Endpoint.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

type UpdateEndpointMessage struct {
	Endpoint core.Endpoint
}

func (UpdateEndpointMessage) Type() string { return TypeUpdateEndpoint }

func (m UpdateEndpointMessage) Validate() error {
	if strings.TrimSpace(m.Endpoint.ID) == "" {
		return fmt.Errorf("command: endpoint id is required")
	}
	if err := m.Endpoint.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

// RotateEndpointSecretMessage rotates the signing secret for one endpoint.
// Leave Secret blank to have a fresh one generated.
type RotateEndpointSecretMessage struct {
	EndpointID string
	Secret     string
}

func (RotateEndpointSecretMessage) Type() string { return TypeRotateEndpointSecret }

func (m RotateEndpointSecretMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return fmt.Errorf("command: endpoint id is required")
	}
	return nil
}

type SetEndpointActiveMessage struct {
	EndpointID string
	Active     bool
}

func (SetEndpointActiveMessage) Type() string { return TypeSetEndpointActive }

func (m SetEndpointActiveMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return fmt.Errorf("command: endpoint id is required")
	}
	return nil
}

type CreateInboundTokenMessage struct {
	Token core.InboundToken
}

func (CreateInboundTokenMessage) Type() string { return TypeCreateInboundToken }

func (m CreateInboundTokenMessage) Validate() error {
	if strings.TrimSpace(m.Token.OwnerID) == "" {
		return fmt.Errorf("command: owner id is required")
	}
	if strings.TrimSpace(m.Token.Token) == "" {
		return fmt.Errorf("command: token value is required")
	}
	if err := m.Token.ActionType.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

type RevokeInboundTokenMessage struct {
	TokenID string
}

func (RevokeInboundTokenMessage) Type() string { return TypeRevokeInboundToken }

func (m RevokeInboundTokenMessage) Validate() error {
	if strings.TrimSpace(m.TokenID) == "" {
		return fmt.Errorf("command: token id is required")
	}
	return nil
}

type ProcessInboundMessage struct {
	Provider string
	Token    string
	Payload  []byte
}

func (ProcessInboundMessage) Type() string { return TypeProcessInbound }

func (m ProcessInboundMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return fmt.Errorf("command: inbound token is required")
	}
	return nil
}
