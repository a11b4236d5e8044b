package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/inbound"
)

const defaultInboundBodyLimit int64 = 1 << 20 // 1 MiB

// InboundHandler exposes the inbound gateway over HTTP at
// POST /webhooks/{provider}/{token}. It answers 200 once the payload is
// durably logged, even when processing recorded a failure: the caller's
// retry cannot change a deterministic outcome.
type InboundHandler struct {
	gateway      *inbound.Gateway
	logger       core.Logger
	maxBodyBytes int64
}

func NewInboundHandler(gateway *inbound.Gateway, logger core.Logger) (*InboundHandler, error) {
	if gateway == nil {
		return nil, fmt.Errorf("transport: inbound gateway is required")
	}
	if logger == nil {
		_, logger = glog.Resolve("webhooks.transport", nil, nil)
	}
	return &InboundHandler{
		gateway:      gateway,
		logger:       logger,
		maxBodyBytes: defaultInboundBodyLimit,
	}, nil
}

// Register mounts the handler on mux under the webhook ingestion route.
func (h *InboundHandler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("POST /webhooks/{provider}/{token}", h)
}

func (h *InboundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.gateway == nil {
		writeJSONError(w, http.StatusInternalServerError, core.WebhookErrorInternal, "inbound handler is not configured")
		return
	}

	provider := strings.TrimSpace(r.PathValue("provider"))
	token := strings.TrimSpace(r.PathValue("token"))

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, core.WebhookErrorBadInput, "read request body")
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, core.WebhookErrorBadInput, "request body exceeds limit")
		return
	}

	outcome, err := h.gateway.ProcessInbound(r.Context(), provider, token, body)
	if err != nil {
		status := http.StatusInternalServerError
		textCode := core.WebhookErrorInternal
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			if rich.Code != 0 {
				status = rich.Code
			}
			if rich.TextCode != "" {
				textCode = rich.TextCode
			}
		}
		if status >= http.StatusInternalServerError {
			h.logger.Error("inbound request failed", "provider", provider, "error", err.Error())
		}
		writeJSONError(w, status, textCode, publicInboundMessage(status))
		return
	}

	response := map[string]any{
		"success":     outcome.Success,
		"action_type": string(outcome.ActionType),
		"log_id":      outcome.LogID,
	}
	if outcome.RecordID != "" {
		response["record_id"] = outcome.RecordID
	}
	if outcome.Error != "" {
		response["error"] = outcome.Error
	}
	writeJSON(w, http.StatusOK, response)
}

// publicInboundMessage keeps auth responses uniform so callers cannot probe
// which tokens exist versus which are revoked beyond the status code.
func publicInboundMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "invalid webhook token"
	case http.StatusForbidden:
		return "webhook token is revoked"
	default:
		return "webhook processing failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, textCode string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"text_code": textCode,
			"message":   message,
		},
	})
}
