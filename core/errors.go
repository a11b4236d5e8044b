package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	WebhookErrorBadInput          = "WEBHOOK_BAD_INPUT"
	WebhookErrorNotFound          = "WEBHOOK_NOT_FOUND"
	WebhookErrorTokenUnauthorized = "WEBHOOK_TOKEN_UNAUTHORIZED"
	WebhookErrorTokenRevoked      = "WEBHOOK_TOKEN_REVOKED"
	WebhookErrorCircuitOpen       = "WEBHOOK_CIRCUIT_OPEN"
	WebhookErrorDeliveryFailed    = "WEBHOOK_DELIVERY_FAILED"
	WebhookErrorRateLimited       = "WEBHOOK_RATE_LIMITED"
	WebhookErrorInternal          = "WEBHOOK_INTERNAL_ERROR"
)

func webhookErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureWebhookErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "circuit") && strings.Contains(msg, "open"):
		return newWebhookError(err.Error(), goerrors.CategoryExternal, WebhookErrorCircuitOpen)
	case strings.Contains(msg, "revoked"):
		return newWebhookError(err.Error(), goerrors.CategoryAuthz, WebhookErrorTokenRevoked)
	case strings.Contains(msg, "token") && strings.Contains(msg, "not found"):
		return newWebhookError(err.Error(), goerrors.CategoryAuth, WebhookErrorTokenUnauthorized)
	case strings.Contains(msg, "not found"):
		return newWebhookError(err.Error(), goerrors.CategoryNotFound, WebhookErrorNotFound)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "throttl"):
		return newWebhookError(err.Error(), goerrors.CategoryRateLimit, WebhookErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unknown"):
		return newWebhookError(err.Error(), goerrors.CategoryBadInput, WebhookErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureWebhookErrorEnvelope(mapped)
}

func newWebhookError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureWebhookErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureWebhookErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = webhookHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultWebhookTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultWebhookTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return WebhookErrorBadInput
	case goerrors.CategoryNotFound:
		return WebhookErrorNotFound
	case goerrors.CategoryAuth:
		return WebhookErrorTokenUnauthorized
	case goerrors.CategoryAuthz:
		return WebhookErrorTokenRevoked
	case goerrors.CategoryRateLimit:
		return WebhookErrorRateLimited
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return WebhookErrorDeliveryFailed
	default:
		return WebhookErrorInternal
	}
}

func webhookHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
