package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/uptube/content-ingestion-go/internal/fanout"
	"github.com/uptube/content-ingestion-go/internal/service"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Sweeper runs one orphan sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// Handler processes fan-out and maintenance tasks.
type Handler struct {
	fanout  fanout.Runner
	sweeper Sweeper
	logger  *zap.Logger
}

// NewHandler creates a task Handler.
func NewHandler(runner fanout.Runner, sweeper Sweeper, logger *zap.Logger) *Handler {
	return &Handler{fanout: runner, sweeper: sweeper, logger: logger.Named("worker")}
}

// HandleFanout writes the notifications for one publish. A failure is
// logged and the task is dropped.
func (h *Handler) HandleFanout(ctx context.Context, task *asynq.Task) error {
	payload, err := UnmarshalFanoutPayload(task.Payload())
	if err != nil {
		h.logger.Error("discarding malformed fan-out task", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	written, err := h.fanout.Run(ctx, payload.Event)
	if err != nil {
		h.logger.Error("fan-out failed",
			zap.Error(err),
			zap.String("content_id", payload.Event.ContentID.String()),
			zap.String("actor_id", payload.Event.ActorID.String()),
		)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	h.logger.Debug("fan-out task done",
		zap.String("content_id", payload.Event.ContentID.String()),
		zap.Int64("notifications", written),
	)
	return nil
}

// HandleOrphanSweep runs one sweep. The next scheduled run retries anything left.
func (h *Handler) HandleOrphanSweep(ctx context.Context, _ *asynq.Task) error {
	if _, err := h.sweeper.Sweep(ctx); err != nil {
		h.logger.Error("orphan sweep failed", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return nil
}

// Mux routes task types to h.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotificationFanout, h.HandleFanout)
	mux.HandleFunc(TypeOrphanSweep, h.HandleOrphanSweep)
	return mux
}

// Server wraps asynq server for processing tasks
type Server struct {
	asynqServer *asynq.Server
	mux         *asynq.ServeMux
	logger      *zap.Logger
}

// NewServer creates a task processing server.
func NewServer(target RedisTarget, concurrency int, handler *Handler, logger *zap.Logger) *Server {
	logger = logger.Named("worker")
	srv := asynq.NewServer(target.AsynqOpt(), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueNotifications: 6,
			QueueMaintenance:   1,
		},
		Logger: logger.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Warn("task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})

	return &Server{asynqServer: srv, mux: handler.Mux(), logger: logger}
}

// Start starts processing in the background.
func (s *Server) Start() error {
	s.logger.Info("starting task processing server")
	return s.asynqServer.Start(s.mux)
}

// Stop waits for in-flight tasks and stops the server.
func (s *Server) Stop() {
	s.logger.Info("shutting down task processing server")
	s.asynqServer.Shutdown()
}

// Scheduler enqueues the periodic maintenance tasks.
type Scheduler struct {
	scheduler *asynq.Scheduler
	logger    *zap.Logger
}

// NewScheduler registers the orphan sweep to run every interval.
func NewScheduler(target RedisTarget, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	logger = logger.Named("scheduler")

	scheduler := asynq.NewScheduler(target.AsynqOpt(), &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logger.Sugar(),
	})
	entryID, err := scheduler.Register(
		fmt.Sprintf("@every %s", interval),
		NewOrphanSweepTask(),
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(0),
		asynq.Unique(interval),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register orphan sweep: %w", err)
	}

	logger.Info("orphan sweep scheduled", zap.String("entry_id", entryID), zap.Duration("interval", interval))
	return &Scheduler{scheduler: scheduler, logger: logger}, nil
}

// Start begins enqueueing in the background.
func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.scheduler.Shutdown()
}
