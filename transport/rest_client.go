package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhooks/core"
)

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 1 << 20 // 1 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTClient delivers webhook payloads over HTTP POST. It performs exactly
// one call per invocation; retries and circuit breaking live in the
// dispatcher.
type RESTClient struct {
	Client               HTTPDoer
	MaxResponseBodyBytes int64
}

func NewRESTClient(client HTTPDoer) *RESTClient {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &RESTClient{
		Client:               client,
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}
}

func (c *RESTClient) Deliver(ctx context.Context, req core.DeliveryRequest) (core.DeliveryResponse, error) {
	if c == nil || c.Client == nil {
		return core.DeliveryResponse{}, transportError(
			"transport: rest client requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	parsedURL, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return core.DeliveryResponse{}, transportError(
			"transport: delivery url is invalid",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"url": strings.TrimSpace(req.URL)},
		)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, parsedURL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.DeliveryResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create delivery request",
			http.StatusBadRequest,
			map[string]any{"url": parsedURL.String()},
		)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), value)
	}

	startedAt := time.Now().UTC()
	httpRes, err := c.Client.Do(httpReq)
	if err != nil {
		return core.DeliveryResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute delivery request",
			http.StatusBadGateway,
			map[string]any{"url": parsedURL.String()},
		)
	}
	defer httpRes.Body.Close()

	// The response body is drained so the connection can be reused, but its
	// content is irrelevant to delivery: only the status code matters.
	maxBodyBytes := c.MaxResponseBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultResponseBodyLimit
	}
	if _, err := io.Copy(io.Discard, io.LimitReader(httpRes.Body, maxBodyBytes)); err != nil {
		return core.DeliveryResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read delivery response",
			http.StatusBadGateway,
			map[string]any{"status_code": httpRes.StatusCode},
		)
	}

	return core.DeliveryResponse{
		StatusCode: httpRes.StatusCode,
		Latency:    time.Since(startedAt),
	}, nil
}

var _ core.DeliveryTransport = (*RESTClient)(nil)
