package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type EndpointStore interface {
	Create(ctx context.Context, endpoint Endpoint) (Endpoint, error)
	Update(ctx context.Context, endpoint Endpoint) (Endpoint, error)
	GetByID(ctx context.Context, id string) (Endpoint, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Endpoint, error)
	ListActiveByEvent(ctx context.Context, ownerID string, eventType EventType) ([]Endpoint, error)
	RotateSecret(ctx context.Context, id string, secret string) (Endpoint, error)
	SetActive(ctx context.Context, id string, active bool) (Endpoint, error)
	Delete(ctx context.Context, id string) error
}

type DeliveryStore interface {
	Create(ctx context.Context, attempt DeliveryAttempt) (DeliveryAttempt, error)
	Update(ctx context.Context, attempt DeliveryAttempt) (DeliveryAttempt, error)
	GetByID(ctx context.Context, id string) (DeliveryAttempt, error)
	ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]DeliveryAttempt, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]DeliveryAttempt, error)
}

type DeadLetterStore interface {
	Create(ctx context.Context, entry DeadLetterEntry) (DeadLetterEntry, error)
	GetByID(ctx context.Context, id string) (DeadLetterEntry, error)
	GetByAttempt(ctx context.Context, attemptID string) (DeadLetterEntry, error)
	List(ctx context.Context, ownerID string, includeResolved bool, limit int) ([]DeadLetterEntry, error)
	Resolve(ctx context.Context, id string, note string, at time.Time) (DeadLetterEntry, error)
}

type TokenStore interface {
	Create(ctx context.Context, token InboundToken) (InboundToken, error)
	GetByID(ctx context.Context, id string) (InboundToken, error)
	GetByToken(ctx context.Context, provider string, token string) (InboundToken, error)
	ListByOwner(ctx context.Context, ownerID string) ([]InboundToken, error)
	Revoke(ctx context.Context, id string, at time.Time) (InboundToken, error)
}

type InboundLogStore interface {
	Create(ctx context.Context, log InboundLog) (InboundLog, error)
	GetByID(ctx context.Context, id string) (InboundLog, error)
	MarkOutcome(ctx context.Context, id string, processed bool, recordID string, errMsg string, at time.Time) (InboundLog, error)
	ListByToken(ctx context.Context, tokenID string, limit int) ([]InboundLog, error)
}

// ActionExecutor applies a validated inbound action to the host application.
// Implementations are expected to be idempotent upserts keyed by the natural
// identifiers inside fields, since inbound delivery is at-least-once.
type ActionExecutor interface {
	Execute(ctx context.Context, ownerID string, action ActionType, fields map[string]any) (recordID string, err error)
}

type DeliveryRequest struct {
	URL     string
	Body    []byte
	Headers map[string]string
}

type DeliveryResponse struct {
	StatusCode int
	Latency    time.Duration
}

// DeliveryTransport performs one webhook HTTP call. Timeouts are carried on
// the context; the transport never retries on its own.
type DeliveryTransport interface {
	Deliver(ctx context.Context, req DeliveryRequest) (DeliveryResponse, error)
}

type Event struct {
	Name       string
	OwnerID    string
	Payload    map[string]any
	OccurredAt time.Time
}

type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(name string, handler EventHandler)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
