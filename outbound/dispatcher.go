package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhooks/breaker"
	"github.com/goliatone/go-webhooks/core"
	"github.com/google/uuid"
)

const (
	HeaderSignature  = "X-Signature"
	HeaderEvent      = "X-Event"
	HeaderDeliveryID = "X-Delivery-Id"

	// TestEventType marks synthetic payloads produced by TestWebhook. It is
	// intentionally outside the event catalog so test traffic never matches
	// a subscription.
	TestEventType core.EventType = "test.ping"
)

type Config struct {
	MaxRetries  int
	CallTimeout time.Duration
	Backoff     []time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		CallTimeout: 5 * time.Second,
		Backoff:     []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// ConfigFromCore converts the wire-friendly delivery settings into runtime
// dispatcher config.
func ConfigFromCore(cfg core.DeliveryConfig) Config {
	out := DefaultConfig()
	if cfg.MaxRetries > 0 {
		out.MaxRetries = cfg.MaxRetries
	}
	if cfg.TimeoutSeconds > 0 {
		out.CallTimeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if len(cfg.BackoffSeconds) > 0 {
		backoff := make([]time.Duration, 0, len(cfg.BackoffSeconds))
		for _, seconds := range cfg.BackoffSeconds {
			backoff = append(backoff, time.Duration(seconds)*time.Second)
		}
		out.Backoff = backoff
	}
	return out
}

// BreakerKeyFunc derives the shared breaker name for an endpoint. The
// default keys by target host so every endpoint on the same provider shares
// one breaker; swap in a per-endpoint key for tenants that need isolation.
type BreakerKeyFunc func(endpoint core.Endpoint) string

func ProviderBreakerKey(endpoint core.Endpoint) string {
	return endpoint.Provider()
}

func EndpointBreakerKey(endpoint core.Endpoint) string {
	return "endpoint:" + endpoint.ID
}

// DeliveryResult reports the first-attempt outcome for one endpoint.
type DeliveryResult struct {
	AttemptID      string
	EndpointID     string
	EventType      core.EventType
	Status         core.DeliveryStatus
	ResponseStatus int
	Error          string
}

type envelope struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Signature string         `json:"signature,omitempty"`
}

type Dependencies struct {
	Endpoints   core.EndpointStore
	Deliveries  core.DeliveryStore
	DeadLetters core.DeadLetterStore
	Transport   core.DeliveryTransport
	Breakers    *breaker.Registry
	Scheduler   RetryScheduler
	Bus         core.EventBus
	Logger      core.Logger
	Metrics     core.MetricsRecorder
	Limiter     *EndpointLimiter
	BreakerKey  BreakerKeyFunc
}

// Dispatcher fans one domain event out to every matching endpoint, driving
// each delivery attempt through signing, breaker protection, bounded retry,
// and dead-lettering.
type Dispatcher struct {
	endpoints   core.EndpointStore
	deliveries  core.DeliveryStore
	deadLetters core.DeadLetterStore
	transport   core.DeliveryTransport
	breakers    *breaker.Registry
	scheduler   RetryScheduler
	bus         core.EventBus
	logger      core.Logger
	metrics     core.MetricsRecorder
	limiter     *EndpointLimiter
	breakerKey  BreakerKeyFunc
	config      Config
	now         func() time.Time
	newID       func() string
}

func NewDispatcher(deps Dependencies, config Config) (*Dispatcher, error) {
	if deps.Endpoints == nil {
		return nil, fmt.Errorf("outbound: endpoint store is required")
	}
	if deps.Deliveries == nil {
		return nil, fmt.Errorf("outbound: delivery store is required")
	}
	if deps.DeadLetters == nil {
		return nil, fmt.Errorf("outbound: dead letter store is required")
	}
	if deps.Transport == nil {
		return nil, fmt.Errorf("outbound: delivery transport is required")
	}
	if deps.Breakers == nil {
		return nil, fmt.Errorf("outbound: breaker registry is required")
	}
	defaults := DefaultConfig()
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = defaults.CallTimeout
	}
	if len(config.Backoff) == 0 {
		config.Backoff = defaults.Backoff
	}

	logger := deps.Logger
	if logger == nil {
		_, logger = glog.Resolve("webhooks.outbound", nil, nil)
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	bus := deps.Bus
	if bus == nil {
		bus = core.NewInMemoryEventBus()
	}
	breakerKey := deps.BreakerKey
	if breakerKey == nil {
		breakerKey = ProviderBreakerKey
	}

	d := &Dispatcher{
		endpoints:   deps.Endpoints,
		deliveries:  deps.Deliveries,
		deadLetters: deps.DeadLetters,
		transport:   deps.Transport,
		breakers:    deps.Breakers,
		scheduler:   deps.Scheduler,
		bus:         bus,
		logger:      logger,
		metrics:     metrics,
		limiter:     deps.Limiter,
		breakerKey:  breakerKey,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	if d.scheduler == nil {
		d.scheduler = NewTimerScheduler(d, logger)
	}
	return d, nil
}

// WithClock replaces the time source, for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	if d != nil && now != nil {
		d.now = now
	}
	return d
}

// TriggerEvent fans eventType out to every active endpoint of ownerID that
// subscribes to it, returning one result per endpoint. Per-endpoint failures
// are captured in the result so one broken endpoint never blocks siblings.
func (d *Dispatcher) TriggerEvent(
	ctx context.Context,
	ownerID string,
	eventType core.EventType,
	data map[string]any,
) ([]DeliveryResult, error) {
	if d == nil {
		return nil, fmt.Errorf("outbound: dispatcher is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("outbound: owner id is required")
	}
	if err := eventType.Validate(); err != nil {
		return nil, err
	}

	endpoints, err := d.endpoints.ListActiveByEvent(ctx, ownerID, eventType)
	if err != nil {
		return nil, err
	}

	results := make([]DeliveryResult, 0, len(endpoints))
	for _, endpoint := range endpoints {
		results = append(results, d.deliverNew(ctx, endpoint, eventType, data))
	}
	return results, nil
}

// TestWebhook runs the delivery pipeline against one endpoint with a
// synthetic payload, independent of subscription matching.
func (d *Dispatcher) TestWebhook(ctx context.Context, endpointID string) (DeliveryResult, error) {
	if d == nil {
		return DeliveryResult{}, fmt.Errorf("outbound: dispatcher is not configured")
	}
	endpoint, err := d.endpoints.GetByID(ctx, strings.TrimSpace(endpointID))
	if err != nil {
		return DeliveryResult{}, err
	}
	data := map[string]any{
		"test":         true,
		"endpoint_id":  endpoint.ID,
		"triggered_at": d.now().Format(time.RFC3339),
	}
	return d.deliverNew(ctx, endpoint, TestEventType, data), nil
}

// RetryDelivery is the operator override: it resets the retry counter,
// reopens a terminally failed attempt, and re-enters the pipeline
// immediately. A dead letter for the attempt is resolved automatically if
// the redelivery later succeeds.
func (d *Dispatcher) RetryDelivery(ctx context.Context, attemptID string) error {
	if d == nil {
		return fmt.Errorf("outbound: dispatcher is not configured")
	}
	attempt, err := d.deliveries.GetByID(ctx, strings.TrimSpace(attemptID))
	if err != nil {
		return err
	}
	if err := attempt.TransitionTo(core.DeliveryStatusPending, d.now()); err != nil {
		return err
	}
	attempt.RetryCount = 0
	attempt.LastError = ""
	attempt.NextAttemptAt = nil
	if attempt, err = d.deliveries.Update(ctx, attempt); err != nil {
		return err
	}
	return d.Redeliver(ctx, attempt.ID)
}

// Redeliver re-runs the stored payload for an attempt. It is the entry
// point scheduled retries come back through, and keeps the retry counter
// untouched: counting happens on failure.
func (d *Dispatcher) Redeliver(ctx context.Context, attemptID string) error {
	if d == nil {
		return fmt.Errorf("outbound: dispatcher is not configured")
	}
	attempt, err := d.deliveries.GetByID(ctx, strings.TrimSpace(attemptID))
	if err != nil {
		return err
	}
	if attempt.Status == core.DeliveryStatusDelivered {
		return nil
	}
	endpoint, err := d.endpoints.GetByID(ctx, attempt.EndpointID)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(attempt.Payload, &env); err != nil {
		return fmt.Errorf("outbound: decode stored payload for attempt %s: %w", attempt.ID, err)
	}
	d.attemptOnce(ctx, endpoint, attempt, env.Signature)
	return nil
}

func (d *Dispatcher) deliverNew(
	ctx context.Context,
	endpoint core.Endpoint,
	eventType core.EventType,
	data map[string]any,
) DeliveryResult {
	body, signature, err := d.buildEnvelope(endpoint, eventType, data)
	if err != nil {
		return DeliveryResult{
			EndpointID: endpoint.ID,
			EventType:  eventType,
			Status:     core.DeliveryStatusFailed,
			Error:      err.Error(),
		}
	}

	attempt := core.DeliveryAttempt{
		ID:         d.newID(),
		EndpointID: endpoint.ID,
		OwnerID:    endpoint.OwnerID,
		EventType:  eventType,
		Payload:    body,
		Status:     core.DeliveryStatusPending,
		CreatedAt:  d.now(),
	}
	attempt, err = d.deliveries.Create(ctx, attempt)
	if err != nil {
		return DeliveryResult{
			EndpointID: endpoint.ID,
			EventType:  eventType,
			Status:     core.DeliveryStatusFailed,
			Error:      err.Error(),
		}
	}

	return d.attemptOnce(ctx, endpoint, attempt, signature)
}

// attemptOnce performs a single HTTP call for the attempt and records the
// outcome: delivered, retrying with a scheduled redelivery, or failed with
// a dead letter.
func (d *Dispatcher) attemptOnce(
	ctx context.Context,
	endpoint core.Endpoint,
	attempt core.DeliveryAttempt,
	signature string,
) DeliveryResult {
	startedAt := d.now()

	callErr := d.performCall(ctx, endpoint, &attempt, signature)
	if callErr == nil {
		return d.markDelivered(ctx, endpoint, attempt, startedAt)
	}
	return d.markFailure(ctx, endpoint, attempt, callErr)
}

func (d *Dispatcher) performCall(
	ctx context.Context,
	endpoint core.Endpoint,
	attempt *core.DeliveryAttempt,
	signature string,
) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, endpoint.ID); err != nil {
			return err
		}
	}

	headers := map[string]string{
		"Content-Type":   "application/json",
		HeaderSignature:  signature,
		HeaderEvent:      string(attempt.EventType),
		HeaderDeliveryID: attempt.ID,
	}
	for key, value := range endpoint.CustomHeaders {
		headers[key] = value
	}

	guard, err := d.breakers.Get(d.breakerKey(endpoint))
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	return guard.Execute(callCtx, func(callCtx context.Context) error {
		response, deliverErr := d.transport.Deliver(callCtx, core.DeliveryRequest{
			URL:     endpoint.URL,
			Body:    append([]byte(nil), attempt.Payload...),
			Headers: headers,
		})
		attempt.ResponseStatus = response.StatusCode
		attempt.LatencyMs = response.Latency.Milliseconds()
		if deliverErr != nil {
			return deliverErr
		}
		if response.StatusCode < 200 || response.StatusCode >= 300 {
			return fmt.Errorf("outbound: endpoint returned status %d", response.StatusCode)
		}
		return nil
	})
}

func (d *Dispatcher) markDelivered(
	ctx context.Context,
	endpoint core.Endpoint,
	attempt core.DeliveryAttempt,
	startedAt time.Time,
) DeliveryResult {
	_ = attempt.TransitionTo(core.DeliveryStatusDelivered, d.now())
	attempt.LastError = ""
	attempt.NextAttemptAt = nil
	updated, err := d.deliveries.Update(ctx, attempt)
	if err != nil {
		d.logError(ctx, "record delivered attempt failed", attempt.ID, err)
	} else {
		attempt = updated
	}

	d.resolveDeadLetter(ctx, attempt.ID)
	d.observe(ctx, endpoint, attempt, startedAt, nil)
	d.publish(ctx, core.BusEventDeliverySucceeded, endpoint, attempt, "")

	return DeliveryResult{
		AttemptID:      attempt.ID,
		EndpointID:     endpoint.ID,
		EventType:      attempt.EventType,
		Status:         core.DeliveryStatusDelivered,
		ResponseStatus: attempt.ResponseStatus,
	}
}

func (d *Dispatcher) markFailure(
	ctx context.Context,
	endpoint core.Endpoint,
	attempt core.DeliveryAttempt,
	cause error,
) DeliveryResult {
	attempt.LastError = cause.Error()

	if attempt.RetryCount < d.config.MaxRetries {
		attempt.RetryCount++
		delay := d.backoffFor(attempt.RetryCount)
		nextAt := d.now().Add(delay)
		attempt.NextAttemptAt = &nextAt
		_ = attempt.TransitionTo(core.DeliveryStatusRetrying, d.now())

		updated, err := d.deliveries.Update(ctx, attempt)
		if err != nil {
			d.logError(ctx, "record retrying attempt failed", attempt.ID, err)
		} else {
			attempt = updated
		}
		if err := d.scheduler.Schedule(ctx, attempt.ID, delay); err != nil {
			d.logError(ctx, "schedule redelivery failed", attempt.ID, err)
		}
		d.observe(ctx, endpoint, attempt, d.now(), cause)

		return DeliveryResult{
			AttemptID:      attempt.ID,
			EndpointID:     endpoint.ID,
			EventType:      attempt.EventType,
			Status:         core.DeliveryStatusRetrying,
			ResponseStatus: attempt.ResponseStatus,
			Error:          cause.Error(),
		}
	}

	attempt.NextAttemptAt = nil
	_ = attempt.TransitionTo(core.DeliveryStatusFailed, d.now())
	updated, err := d.deliveries.Update(ctx, attempt)
	if err != nil {
		d.logError(ctx, "record failed attempt failed", attempt.ID, err)
	} else {
		attempt = updated
	}

	if _, err := d.deadLetters.Create(ctx, core.DeadLetterEntry{
		AttemptID:  attempt.ID,
		EndpointID: endpoint.ID,
		OwnerID:    endpoint.OwnerID,
		EventType:  attempt.EventType,
		Payload:    attempt.Payload,
		Error:      cause.Error(),
		CreatedAt:  d.now(),
	}); err != nil {
		d.logError(ctx, "create dead letter failed", attempt.ID, err)
	}

	d.observe(ctx, endpoint, attempt, d.now(), cause)
	d.publish(ctx, core.BusEventDeliveryFailed, endpoint, attempt, cause.Error())

	return DeliveryResult{
		AttemptID:      attempt.ID,
		EndpointID:     endpoint.ID,
		EventType:      attempt.EventType,
		Status:         core.DeliveryStatusFailed,
		ResponseStatus: attempt.ResponseStatus,
		Error:          cause.Error(),
	}
}

// buildEnvelope signs the canonical envelope (without the signature field)
// and returns the final body with the signature embedded, plus the header
// value.
func (d *Dispatcher) buildEnvelope(
	endpoint core.Endpoint,
	eventType core.EventType,
	data map[string]any,
) ([]byte, string, error) {
	env := envelope{
		Event:     string(eventType),
		Timestamp: d.now().Format(time.RFC3339),
		Data:      data,
	}
	canonical, err := json.Marshal(env)
	if err != nil {
		return nil, "", fmt.Errorf("outbound: encode envelope: %w", err)
	}
	signature, err := core.Sign(canonical, endpoint.Secret)
	if err != nil {
		return nil, "", err
	}
	env.Signature = signature
	body, err := json.Marshal(env)
	if err != nil {
		return nil, "", fmt.Errorf("outbound: encode signed envelope: %w", err)
	}
	return body, signature, nil
}

func (d *Dispatcher) backoffFor(retryCount int) time.Duration {
	index := retryCount - 1
	if index < 0 {
		index = 0
	}
	if index >= len(d.config.Backoff) {
		index = len(d.config.Backoff) - 1
	}
	return d.config.Backoff[index]
}

func (d *Dispatcher) resolveDeadLetter(ctx context.Context, attemptID string) {
	entry, err := d.deadLetters.GetByAttempt(ctx, attemptID)
	if err != nil {
		if !errors.Is(err, core.ErrDeadLetterNotFound) {
			d.logError(ctx, "lookup dead letter failed", attemptID, err)
		}
		return
	}
	if entry.Resolved {
		return
	}
	if _, err := d.deadLetters.Resolve(ctx, entry.ID, "resolved by successful redelivery", d.now()); err != nil {
		d.logError(ctx, "resolve dead letter failed", attemptID, err)
	}
}

func (d *Dispatcher) observe(
	ctx context.Context,
	endpoint core.Endpoint,
	attempt core.DeliveryAttempt,
	startedAt time.Time,
	cause error,
) {
	status := "success"
	if cause != nil {
		status = "failure"
	}
	tags := map[string]string{
		"status":   status,
		"provider": endpoint.Provider(),
	}
	d.metrics.IncCounter(ctx, "webhooks.delivery.total", 1, tags)
	d.metrics.ObserveHistogram(ctx, "webhooks.delivery.latency_ms", float64(attempt.LatencyMs), tags)

	if cause != nil {
		d.logger.Error("webhook delivery attempt failed",
			"attempt_id", attempt.ID,
			"endpoint_id", endpoint.ID,
			"event_type", attempt.EventType,
			"retry_count", attempt.RetryCount,
			"status", attempt.Status,
			"error", cause.Error(),
		)
		return
	}
	d.logger.Info("webhook delivered",
		"attempt_id", attempt.ID,
		"endpoint_id", endpoint.ID,
		"event_type", attempt.EventType,
		"response_status", attempt.ResponseStatus,
		"latency_ms", attempt.LatencyMs,
		"duration_ms", d.now().Sub(startedAt).Milliseconds(),
	)
}

func (d *Dispatcher) publish(
	ctx context.Context,
	name string,
	endpoint core.Endpoint,
	attempt core.DeliveryAttempt,
	errMsg string,
) {
	payload := map[string]any{
		"attempt_id":      attempt.ID,
		"endpoint_id":     endpoint.ID,
		"event_type":      string(attempt.EventType),
		"status":          string(attempt.Status),
		"response_status": attempt.ResponseStatus,
		"retry_count":     attempt.RetryCount,
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	if err := d.bus.Publish(ctx, core.Event{
		Name:       name,
		OwnerID:    endpoint.OwnerID,
		Payload:    payload,
		OccurredAt: d.now(),
	}); err != nil {
		d.logError(ctx, "publish bus event failed", attempt.ID, err)
	}
}

func (d *Dispatcher) logError(ctx context.Context, message string, attemptID string, err error) {
	logger := d.logger
	if logger == nil {
		return
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Error(message, "attempt_id", attemptID, "error", err.Error())
}

var _ Redeliverer = (*Dispatcher)(nil)
