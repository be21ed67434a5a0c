package fanout

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner executes a fan-out.
type Runner interface {
	Run(ctx context.Context, event Event) (int64, error)
}

// DetachedScheduler runs each fan-out on its own goroutine in this process.
// It is used when no task queue is configured. Failures are logged and
// never retried.
type DetachedScheduler struct {
	runner  Runner
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDetachedScheduler creates a DetachedScheduler.
func NewDetachedScheduler(runner Runner, timeout time.Duration, logger *zap.Logger) *DetachedScheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &DetachedScheduler{runner: runner, timeout: timeout, logger: logger.Named("fanout")}
}

// Schedule starts the fan-out and returns immediately.
func (s *DetachedScheduler) Schedule(ctx context.Context, event Event) error {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("fan-out panicked", zap.Any("panic", r), zap.String("content_id", event.ContentID.String()))
			}
		}()

		if _, err := s.runner.Run(runCtx, event); err != nil {
			s.logger.Error("fan-out failed",
				zap.Error(err),
				zap.String("content_id", event.ContentID.String()),
				zap.String("actor_id", event.ActorID.String()),
			)
		}
	}()

	return nil
}

// Wait blocks until every scheduled fan-out has finished.
func (s *DetachedScheduler) Wait() {
	s.wg.Wait()
}
