package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	appschedule "stayflow/internal/app/schedule"
)

// JobFunc executes one scheduled job. The payload is whatever the caller
// passed to Schedule.
type JobFunc func(ctx context.Context, payload any) error

// TimerScheduler runs deferred jobs on in-process timers. Jobs do not survive
// a restart; the expiry sweep and retry paths tolerate a lost timer because
// the underlying operations are idempotent.
type TimerScheduler struct {
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]JobFunc
	timers   []*time.Timer
	closed   bool
}

func NewTimerScheduler(logger *slog.Logger) *TimerScheduler {
	return &TimerScheduler{
		logger:   logger,
		handlers: make(map[string]JobFunc),
	}
}

// Register binds a handler to a job name. Later registrations replace
// earlier ones.
func (s *TimerScheduler) Register(name string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = fn
}

func (s *TimerScheduler) Schedule(ctx context.Context, name string, payload any, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	delay := time.Until(runAt)
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, func() {
		s.run(name, payload)
	})
	s.timers = append(s.timers, timer)
	s.logger.Info("job scheduled", "job", name, "run_at", runAt)
	return nil
}

func (s *TimerScheduler) run(name string, payload any) {
	s.mu.Lock()
	fn, ok := s.handlers[name]
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	if !ok {
		s.logger.Warn("no handler for scheduled job", "job", name)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := fn(ctx, payload); err != nil {
		s.logger.Error("scheduled job failed", "job", name, "error", err)
		return
	}
	s.logger.Info("scheduled job completed", "job", name)
}

// Close stops all pending timers.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

var _ appschedule.Scheduler = (*TimerScheduler)(nil)
