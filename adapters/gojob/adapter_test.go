package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nacked   bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage { return s.msg }

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nacked = true
	s.nackOpts = opts
	return nil
}

type recordingRedeliverer struct {
	attemptIDs []string
	err        error
}

func (r *recordingRedeliverer) Redeliver(_ context.Context, attemptID string) error {
	r.attemptIDs = append(r.attemptIDs, attemptID)
	return r.err
}

func TestRetryQueueSchedulesDueTime(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	retryQueue, err := NewRetryQueue(enqueuer)
	if err != nil {
		t.Fatalf("new retry queue: %v", err)
	}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	retryQueue.WithClock(func() time.Time { return base })

	if err := retryQueue.Schedule(context.Background(), "attempt-1", 5*time.Second); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDDeliveryRetry {
		t.Fatalf("expected retry job enqueued, got %#v", enqueuer.last)
	}
	if enqueuer.last.IdempotencyKey != "attempt-1" {
		t.Fatalf("expected attempt id as idempotency key, got %q", enqueuer.last.IdempotencyKey)
	}
	dueRaw, _ := enqueuer.last.Parameters[paramDueAt].(string)
	due, err := time.Parse(time.RFC3339Nano, dueRaw)
	if err != nil || !due.Equal(base.Add(5*time.Second)) {
		t.Fatalf("unexpected due time %q: %v", dueRaw, err)
	}

	if err := retryQueue.Schedule(context.Background(), "  ", time.Second); err == nil {
		t.Fatal("expected blank attempt id to be rejected")
	}
}

func TestRetryWorkerRedeliversDueAttempt(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{
		JobID: JobIDDeliveryRetry,
		Parameters: map[string]any{
			paramAttemptID: "attempt-1",
			paramDueAt:     base.Add(-time.Second).Format(time.RFC3339Nano),
		},
	}}
	target := &recordingRedeliverer{}
	worker, err := NewRetryWorker(&stubQueueDequeuer{delivery: delivery}, target, RetryPolicy{})
	if err != nil {
		t.Fatalf("new retry worker: %v", err)
	}
	worker.WithClock(func() time.Time { return base })

	if err := worker.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if len(target.attemptIDs) != 1 || target.attemptIDs[0] != "attempt-1" {
		t.Fatalf("expected redelivery of attempt-1, got %v", target.attemptIDs)
	}
	if !delivery.acked || delivery.nacked {
		t.Fatalf("expected ack after redelivery, got ack=%v nack=%v", delivery.acked, delivery.nacked)
	}
}

func TestRetryWorkerRequeuesEarlyAttemptWithRemainingDelay(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{
		JobID: JobIDDeliveryRetry,
		Parameters: map[string]any{
			paramAttemptID: "attempt-1",
			paramDueAt:     base.Add(30 * time.Second).Format(time.RFC3339Nano),
		},
	}}
	target := &recordingRedeliverer{}
	worker, err := NewRetryWorker(&stubQueueDequeuer{delivery: delivery}, target, RetryPolicy{MaxDelay: 10 * time.Second})
	if err != nil {
		t.Fatalf("new retry worker: %v", err)
	}
	worker.WithClock(func() time.Time { return base })

	if err := worker.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if len(target.attemptIDs) != 0 {
		t.Fatalf("expected no redelivery before due time, got %v", target.attemptIDs)
	}
	if !delivery.nacked || !delivery.nackOpts.Requeue {
		t.Fatalf("expected requeue nack, got %#v", delivery.nackOpts)
	}
	if delivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay bounded to 10s, got %s", delivery.nackOpts.Delay)
	}
}

func TestRetryWorkerDeadLettersMalformedMessage(t *testing.T) {
	delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{
		JobID:      JobIDDeliveryRetry,
		Parameters: map[string]any{},
	}}
	worker, err := NewRetryWorker(&stubQueueDequeuer{delivery: delivery}, &recordingRedeliverer{}, RetryPolicy{})
	if err != nil {
		t.Fatalf("new retry worker: %v", err)
	}

	if err := worker.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if !delivery.nacked || !delivery.nackOpts.DeadLetter || delivery.nackOpts.Requeue {
		t.Fatalf("expected dead letter nack, got %#v", delivery.nackOpts)
	}
}

func TestRetryWorkerRequeuesFailedRedelivery(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{
		JobID: JobIDDeliveryRetry,
		Parameters: map[string]any{
			paramAttemptID: "attempt-1",
			paramDueAt:     base.Format(time.RFC3339Nano),
		},
	}}
	target := &recordingRedeliverer{err: errors.New("store offline")}
	worker, err := NewRetryWorker(&stubQueueDequeuer{delivery: delivery}, target, RetryPolicy{MaxRequeues: 1})
	if err != nil {
		t.Fatalf("new retry worker: %v", err)
	}
	worker.WithClock(func() time.Time { return base })

	if err := worker.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process next: %v", err)
	}
	// MaxRequeues of 1 turns the failed redelivery into a dead letter.
	if !delivery.nacked || delivery.nackOpts.Requeue || !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected bounded nack, got %#v", delivery.nackOpts)
	}
	if delivery.nackOpts.Reason != "store offline" {
		t.Fatalf("expected failure reason, got %q", delivery.nackOpts.Reason)
	}
}
