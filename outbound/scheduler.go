package outbound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhooks/core"
)

// Redeliverer re-runs a persisted delivery attempt. The dispatcher
// implements it; schedulers call back into it when a retry comes due.
type Redeliverer interface {
	Redeliver(ctx context.Context, attemptID string) error
}

// RetryScheduler parks an attempt until its backoff delay elapses. Durable
// implementations live in queue (Redis) and adapters/gojob; TimerScheduler
// below is the in-process default.
type RetryScheduler interface {
	Schedule(ctx context.Context, attemptID string, delay time.Duration) error
}

// TimerScheduler schedules redeliveries with in-process timers. Pending
// retries are lost on restart: the delivery attempt row keeps its
// next_attempt_at, but nothing re-arms the timer. Use a durable scheduler
// when retries must survive the process.
type TimerScheduler struct {
	target Redeliverer
	logger core.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewTimerScheduler(target Redeliverer, logger core.Logger) *TimerScheduler {
	if logger == nil {
		_, logger = glog.Resolve("webhooks.scheduler", nil, nil)
	}
	return &TimerScheduler{
		target: target,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

// Bind sets the redelivery target after construction, breaking the
// dispatcher/scheduler construction cycle.
func (s *TimerScheduler) Bind(target Redeliverer) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
}

func (s *TimerScheduler) Schedule(_ context.Context, attemptID string, delay time.Duration) error {
	if s == nil {
		return fmt.Errorf("outbound: scheduler is not configured")
	}
	attemptID = strings.TrimSpace(attemptID)
	if attemptID == "" {
		return fmt.Errorf("outbound: attempt id is required")
	}
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("outbound: scheduler is stopped")
	}
	if existing, ok := s.timers[attemptID]; ok {
		existing.Stop()
	}
	s.timers[attemptID] = time.AfterFunc(delay, func() {
		s.fire(attemptID)
	})
	return nil
}

// Stop cancels every pending timer.
func (s *TimerScheduler) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *TimerScheduler) fire(attemptID string) {
	s.mu.Lock()
	delete(s.timers, attemptID)
	target := s.target
	closed := s.closed
	s.mu.Unlock()

	if closed || target == nil {
		return
	}
	if err := target.Redeliver(context.Background(), attemptID); err != nil {
		s.logger.Error("scheduled redelivery failed", "attempt_id", attemptID, "error", err.Error())
	}
}

var _ RetryScheduler = (*TimerScheduler)(nil)
