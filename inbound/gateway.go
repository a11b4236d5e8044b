package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhooks/core"
)

// Outcome reports what happened to one inbound payload. Validation and
// handler failures land here with Success=false; they are not errors in the
// Go sense because retrying them cannot change the result.
type Outcome struct {
	Success    bool
	ActionType core.ActionType
	RecordID   string
	LogID      string
	Error      string
}

type Dependencies struct {
	Tokens   core.TokenStore
	Logs     core.InboundLogStore
	Executor core.ActionExecutor
	Bus      core.EventBus
	Logger   core.Logger
	Metrics  core.MetricsRecorder
}

// Gateway authenticates, logs, maps, and dispatches externally pushed
// payloads to the typed action catalog.
type Gateway struct {
	tokens   core.TokenStore
	logs     core.InboundLogStore
	executor core.ActionExecutor
	bus      core.EventBus
	logger   core.Logger
	metrics  core.MetricsRecorder
	now      func() time.Time
}

func NewGateway(deps Dependencies) (*Gateway, error) {
	if deps.Tokens == nil {
		return nil, fmt.Errorf("inbound: token store is required")
	}
	if deps.Logs == nil {
		return nil, fmt.Errorf("inbound: inbound log store is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("inbound: action executor is required")
	}
	logger := deps.Logger
	if logger == nil {
		_, logger = glog.Resolve("webhooks.inbound", nil, nil)
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	bus := deps.Bus
	if bus == nil {
		bus = core.NewInMemoryEventBus()
	}
	return &Gateway{
		tokens:   deps.Tokens,
		logs:     deps.Logs,
		executor: deps.Executor,
		bus:      bus,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock replaces the time source, for tests.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	if g != nil && now != nil {
		g.now = now
	}
	return g
}

// ProcessInbound runs the full ingestion pipeline for one payload. Auth
// failures return an error without persisting anything; once the token is
// accepted the raw payload is durably logged before any processing, and
// every downstream failure becomes a recorded outcome instead of an error.
func (g *Gateway) ProcessInbound(
	ctx context.Context,
	provider string,
	token string,
	rawPayload []byte,
) (Outcome, error) {
	if g == nil {
		return Outcome{}, fmt.Errorf("inbound: gateway is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Outcome{}, inboundUnauthorized("inbound: token is required", nil)
	}

	resolved, err := g.tokens.GetByToken(ctx, strings.TrimSpace(provider), token)
	if err != nil {
		return Outcome{}, inboundUnauthorized("inbound: token not found", nil)
	}
	if !resolved.Active || resolved.RevokedAt != nil {
		return Outcome{}, inboundForbidden("inbound: token is revoked", map[string]any{
			"token_id": resolved.ID,
		})
	}

	// Nothing is silently dropped: the raw payload is persisted before any
	// parsing or mapping can fail.
	logRow, err := g.logs.Create(ctx, core.InboundLog{
		TokenID:   resolved.ID,
		OwnerID:   resolved.OwnerID,
		Payload:   append([]byte(nil), rawPayload...),
		CreatedAt: g.now(),
	})
	if err != nil {
		return Outcome{}, inboundWrapError(
			err,
			goerrors.CategoryInternal,
			"inbound: persist inbound log",
			http.StatusInternalServerError,
			core.WebhookErrorInternal,
			nil,
		)
	}

	outcome := g.process(ctx, resolved, logRow.ID, rawPayload)

	if _, err := g.logs.MarkOutcome(ctx, logRow.ID, true, outcome.RecordID, outcome.Error, g.now()); err != nil {
		g.logger.Error("record inbound outcome failed", "log_id", logRow.ID, "error", err.Error())
	}
	g.publishProcessed(ctx, resolved, outcome)
	g.observe(ctx, resolved, outcome)

	return outcome, nil
}

func (g *Gateway) process(
	ctx context.Context,
	token core.InboundToken,
	logID string,
	rawPayload []byte,
) Outcome {
	outcome := Outcome{ActionType: token.ActionType, LogID: logID}

	var payload map[string]any
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		outcome.Error = fmt.Sprintf("inbound: payload is not valid JSON: %v", err)
		return outcome
	}

	mapped, err := ApplyMapping(token.FieldMapping, payload)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if err := ValidateActionFields(token.ActionType, mapped); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	recordID, err := g.executor.Execute(ctx, token.OwnerID, token.ActionType, mapped)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = true
	outcome.RecordID = strings.TrimSpace(recordID)
	return outcome
}

func (g *Gateway) publishProcessed(ctx context.Context, token core.InboundToken, outcome Outcome) {
	payload := map[string]any{
		"token_id":    token.ID,
		"action_type": string(outcome.ActionType),
		"log_id":      outcome.LogID,
		"success":     outcome.Success,
	}
	if outcome.RecordID != "" {
		payload["record_id"] = outcome.RecordID
	}
	if outcome.Error != "" {
		payload["error"] = outcome.Error
	}
	if err := g.bus.Publish(ctx, core.Event{
		Name:       core.BusEventInboundProcessed,
		OwnerID:    token.OwnerID,
		Payload:    payload,
		OccurredAt: g.now(),
	}); err != nil {
		g.logger.Error("publish inbound.processed failed", "log_id", outcome.LogID, "error", err.Error())
	}
}

func (g *Gateway) observe(ctx context.Context, token core.InboundToken, outcome Outcome) {
	status := "success"
	if !outcome.Success {
		status = "failure"
	}
	tags := map[string]string{
		"action_type": string(outcome.ActionType),
		"status":      status,
	}
	g.metrics.IncCounter(ctx, "webhooks.inbound.total", 1, tags)

	if outcome.Success {
		g.logger.Info("inbound payload processed",
			"token_id", token.ID,
			"action_type", outcome.ActionType,
			"record_id", outcome.RecordID,
			"log_id", outcome.LogID,
		)
		return
	}
	g.logger.Error("inbound payload rejected",
		"token_id", token.ID,
		"action_type", outcome.ActionType,
		"log_id", outcome.LogID,
		"error", outcome.Error,
	)
}
