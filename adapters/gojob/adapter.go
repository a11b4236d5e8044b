// Package gojob maps the outbound retry contract onto a go-job queue so
// parked redeliveries survive process restarts.
package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/outbound"
)

const (
	JobIDDeliveryRetry = "webhooks.delivery.retry"

	paramAttemptID = "attempt_id"
	paramDueAt     = "due_at"
)

// RetryPolicy bounds how often a retry job may be requeued before it is
// parked on the queue's own dead letter channel. The delivery attempt
// row keeps the durable failure record either way.
type RetryPolicy struct {
	MaxRequeues int
	MaxDelay    time.Duration
}

func (p RetryPolicy) normalize(opts queue.NackOptions, requeues int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if p.MaxRequeues > 0 && requeues >= p.MaxRequeues {
		out.Requeue = false
		out.DeadLetter = true
	}
	return out
}

// RetryQueue parks delivery retries on a go-job queue. It satisfies
// outbound.RetryScheduler; a RetryWorker on the consuming side performs
// the redelivery.
type RetryQueue struct {
	enqueuer queue.Enqueuer
	now      func() time.Time
}

func NewRetryQueue(enqueuer queue.Enqueuer) (*RetryQueue, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: enqueuer is required")
	}
	return &RetryQueue{
		enqueuer: enqueuer,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock replaces the time source. Tests only.
func (q *RetryQueue) WithClock(now func() time.Time) *RetryQueue {
	if q == nil || now == nil {
		return q
	}
	q.now = now
	return q
}

func (q *RetryQueue) Schedule(ctx context.Context, attemptID string, delay time.Duration) error {
	if q == nil || q.enqueuer == nil {
		return fmt.Errorf("gojob: retry queue is not configured")
	}
	attemptID = strings.TrimSpace(attemptID)
	if attemptID == "" {
		return fmt.Errorf("gojob: attempt id is required")
	}
	if delay < 0 {
		delay = 0
	}
	due := q.now().Add(delay)
	return q.enqueuer.Enqueue(ctx, &job.ExecutionMessage{
		JobID: JobIDDeliveryRetry,
		Parameters: map[string]any{
			paramAttemptID: attemptID,
			paramDueAt:     due.Format(time.RFC3339Nano),
		},
		IdempotencyKey: attemptID,
	})
}

// RetryWorker consumes parked retries and hands the due ones back to the
// dispatcher. Not-yet-due messages are nacked with the remaining delay.
type RetryWorker struct {
	dequeuer queue.Dequeuer
	target   outbound.Redeliverer
	logger   core.Logger
	policy   RetryPolicy
	now      func() time.Time
}

func NewRetryWorker(dequeuer queue.Dequeuer, target outbound.Redeliverer, policy RetryPolicy) (*RetryWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if target == nil {
		return nil, fmt.Errorf("gojob: redelivery target is required")
	}
	_, logger := glog.Resolve("webhooks.retry.worker", nil, nil)
	return &RetryWorker{
		dequeuer: dequeuer,
		target:   target,
		logger:   logger,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithLogger replaces the resolved logger.
func (w *RetryWorker) WithLogger(logger core.Logger) *RetryWorker {
	if w == nil || logger == nil {
		return w
	}
	w.logger = logger
	return w
}

// WithClock replaces the time source. Tests only.
func (w *RetryWorker) WithClock(now func() time.Time) *RetryWorker {
	if w == nil || now == nil {
		return w
	}
	w.now = now
	return w
}

// Run consumes retries until ctx is cancelled.
func (w *RetryWorker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("gojob: retry worker is not configured")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.ProcessNext(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.logger.Error("retry worker step failed", "error", err)
		}
	}
}

// ProcessNext handles one queued retry: ack when redelivered, nack with
// the remaining delay when early, dead letter on malformed payloads.
func (w *RetryWorker) ProcessNext(ctx context.Context) error {
	if w == nil || w.dequeuer == nil {
		return fmt.Errorf("gojob: retry worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	attemptID, due, err := parseRetryMessage(delivery.Message())
	if err != nil {
		w.logger.Error("discarding malformed retry message", "error", err)
		return delivery.Nack(ctx, w.policy.normalize(queue.NackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		}, 0))
	}

	if remaining := due.Sub(w.now()); remaining > 0 {
		return delivery.Nack(ctx, w.policy.normalize(queue.NackOptions{
			Delay:   remaining,
			Requeue: true,
			Reason:  "not due",
		}, 0))
	}

	if err := w.target.Redeliver(ctx, attemptID); err != nil {
		w.logger.Error("queued redelivery failed", "attempt_id", attemptID, "error", err)
		return delivery.Nack(ctx, w.policy.normalize(queue.NackOptions{
			Requeue: true,
			Reason:  err.Error(),
		}, 1))
	}
	return delivery.Ack(ctx)
}

func parseRetryMessage(msg *job.ExecutionMessage) (string, time.Time, error) {
	if msg == nil {
		return "", time.Time{}, fmt.Errorf("gojob: retry message is required")
	}
	if msg.JobID != JobIDDeliveryRetry {
		return "", time.Time{}, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	attemptID, _ := msg.Parameters[paramAttemptID].(string)
	attemptID = strings.TrimSpace(attemptID)
	if attemptID == "" {
		return "", time.Time{}, fmt.Errorf("gojob: retry message has no attempt id")
	}
	rawDue, _ := msg.Parameters[paramDueAt].(string)
	if rawDue == "" {
		return attemptID, time.Time{}, nil
	}
	due, err := time.Parse(time.RFC3339Nano, rawDue)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("gojob: parse retry due time: %w", err)
	}
	return attemptID, due, nil
}

var _ outbound.RetryScheduler = (*RetryQueue)(nil)
