package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/outbound"
	"github.com/redis/go-redis/v9"
)

const defaultRetryKey = "go-webhooks:retry:due"
const defaultPollInterval = time.Second

// RedisCommands is the slice of the redis client the scheduler needs.
// redis.UniversalClient satisfies it.
type RedisCommands interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

type RedisSchedulerConfig struct {
	Key          string
	PollInterval time.Duration
}

func DefaultRedisSchedulerConfig() RedisSchedulerConfig {
	return RedisSchedulerConfig{
		Key:          defaultRetryKey,
		PollInterval: defaultPollInterval,
	}
}

// RedisScheduler parks retry attempts in a Redis sorted set scored by their
// due time, so pending retries survive process restarts. A polling worker
// claims due members and redelivers them; the ZRem claim makes competing
// workers safe, since only one of them removes a given member.
type RedisScheduler struct {
	client RedisCommands
	target outbound.Redeliverer
	logger core.Logger
	config RedisSchedulerConfig
	now    func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

func NewRedisScheduler(
	client RedisCommands,
	target outbound.Redeliverer,
	config RedisSchedulerConfig,
	logger core.Logger,
) (*RedisScheduler, error) {
	if client == nil {
		return nil, fmt.Errorf("queue: redis client is required")
	}
	if strings.TrimSpace(config.Key) == "" {
		config.Key = defaultRetryKey
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if logger == nil {
		_, logger = glog.Resolve("webhooks.queue", nil, nil)
	}
	return &RedisScheduler{
		client: client,
		target: target,
		logger: logger,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Bind sets the redelivery target after construction, breaking the
// dispatcher/scheduler construction cycle.
func (s *RedisScheduler) Bind(target outbound.Redeliverer) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
}

// WithClock replaces the time source, for tests.
func (s *RedisScheduler) WithClock(now func() time.Time) *RedisScheduler {
	if s != nil && now != nil {
		s.now = now
	}
	return s
}

func (s *RedisScheduler) Schedule(ctx context.Context, attemptID string, delay time.Duration) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("queue: redis scheduler is not configured")
	}
	attemptID = strings.TrimSpace(attemptID)
	if attemptID == "" {
		return fmt.Errorf("queue: attempt id is required")
	}
	if delay < 0 {
		delay = 0
	}
	due := s.now().Add(delay)
	if err := s.client.ZAdd(ctx, s.config.Key, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: attemptID,
	}).Err(); err != nil {
		return fmt.Errorf("queue: schedule attempt %s: %w", attemptID, err)
	}
	return nil
}

// Start launches the polling worker. It is a no-op when already running.
func (s *RedisScheduler) Start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(s.stopCh, s.doneCh)
}

// Stop halts the worker and waits for the in-flight poll to finish. Parked
// retries stay in Redis for the next start.
func (s *RedisScheduler) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (s *RedisScheduler) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := s.DrainDue(context.Background()); err != nil {
				s.logger.Error("poll due retries failed", "error", err.Error())
			}
		}
	}
}

// DrainDue claims and redelivers every attempt whose due time has passed.
// Exported so embedders can drive the queue from their own loop or cron.
func (s *RedisScheduler) DrainDue(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("queue: redis scheduler is not configured")
	}
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()
	if target == nil {
		return fmt.Errorf("queue: redelivery target is not bound")
	}

	due, err := s.client.ZRangeByScore(ctx, s.config.Key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(s.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("queue: read due retries: %w", err)
	}

	for _, attemptID := range due {
		removed, err := s.client.ZRem(ctx, s.config.Key, attemptID).Result()
		if err != nil {
			return fmt.Errorf("queue: claim attempt %s: %w", attemptID, err)
		}
		if removed == 0 {
			// Another worker claimed it first.
			continue
		}
		if err := target.Redeliver(ctx, attemptID); err != nil {
			s.logger.Error("scheduled redelivery failed", "attempt_id", attemptID, "error", err.Error())
		}
	}
	return nil
}

var _ outbound.RetryScheduler = (*RedisScheduler)(nil)
