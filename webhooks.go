package webhooks

import "github.com/goliatone/go-webhooks/core"

type Config = core.Config

type BreakerConfig = core.BreakerConfig

type DeliveryConfig = core.DeliveryConfig

type EventType = core.EventType

type ActionType = core.ActionType

type DeliveryStatus = core.DeliveryStatus

type Endpoint = core.Endpoint
type DeliveryAttempt = core.DeliveryAttempt
type DeadLetterEntry = core.DeadLetterEntry
type InboundToken = core.InboundToken
type InboundLog = core.InboundLog

type EndpointStore = core.EndpointStore
type DeliveryStore = core.DeliveryStore
type DeadLetterStore = core.DeadLetterStore
type TokenStore = core.TokenStore
type InboundLogStore = core.InboundLogStore

type ActionExecutor = core.ActionExecutor
type DeliveryTransport = core.DeliveryTransport
type EventBus = core.EventBus
type Event = core.Event
type MetricsRecorder = core.MetricsRecorder
type Logger = core.Logger
type LoggerProvider = core.LoggerProvider

type ConfigProvider = core.ConfigProvider
type OptionsResolver = core.OptionsResolver

var (
	Sign           = core.Sign
	Verify         = core.Verify
	GenerateSecret = core.GenerateSecret

	EventCatalog  = core.EventCatalog
	ActionCatalog = core.ActionCatalog
)

var (
	ErrEndpointNotFound   = core.ErrEndpointNotFound
	ErrDeliveryNotFound   = core.ErrDeliveryNotFound
	ErrDeadLetterNotFound = core.ErrDeadLetterNotFound
	ErrTokenNotFound      = core.ErrTokenNotFound
	ErrTokenRevoked       = core.ErrTokenRevoked
	ErrUnknownEventType   = core.ErrUnknownEventType
	ErrUnknownActionType  = core.ErrUnknownActionType
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}
