package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[TriggerEventMessage]         = (*TriggerEventCommand)(nil)
	_ gocmd.Commander[TestWebhookMessage]          = (*TestWebhookCommand)(nil)
	_ gocmd.Commander[RetryDeliveryMessage]        = (*RetryDeliveryCommand)(nil)
	_ gocmd.Commander[ResolveDeadLetterMessage]    = (*ResolveDeadLetterCommand)(nil)
	_ gocmd.Commander[RegisterEndpointMessage]     = (*RegisterEndpointCommand)(nil)
	_ gocmd.Commander[UpdateEndpointMessage]       = (*UpdateEndpointCommand)(nil)
	_ gocmd.Commander[RotateEndpointSecretMessage] = (*RotateEndpointSecretCommand)(nil)
	_ gocmd.Commander[SetEndpointActiveMessage]    = (*SetEndpointActiveCommand)(nil)
	_ gocmd.Commander[CreateInboundTokenMessage]   = (*CreateInboundTokenCommand)(nil)
	_ gocmd.Commander[RevokeInboundTokenMessage]   = (*RevokeInboundTokenCommand)(nil)
	_ gocmd.Commander[ProcessInboundMessage]       = (*ProcessInboundCommand)(nil)
)
