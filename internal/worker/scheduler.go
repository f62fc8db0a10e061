package worker

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/keeper/internal/errors"
	"github.com/Iron-Ham/keeper/internal/event"
	"github.com/Iron-Ham/keeper/internal/logging"
)

// Scheduler runs periodic tasks, each on its own ticker. A failing run is
// logged and counted, and the task keeps its schedule.
type Scheduler struct {
	clock    clockwork.Clock
	logger   *logging.Logger
	bus      *event.Bus
	recorder Recorder

	mu      sync.Mutex
	tasks   []Task
	running bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock sets the clock that drives the tickers. Tests pass a fake clock.
func WithClock(c clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithBus publishes a WorkerFailedEvent for every failed run.
func WithBus(b *event.Bus) SchedulerOption {
	return func(s *Scheduler) { s.bus = b }
}

// WithRecorder reports every run to r.
func WithRecorder(r Recorder) SchedulerOption {
	return func(s *Scheduler) { s.recorder = r }
}

// NewScheduler creates a Scheduler with no tasks.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:  clockwork.NewRealClock(),
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a periodic task. Tasks cannot be added once Run has started.
func (s *Scheduler) Add(t Task) error {
	if err := validateTask(t, true); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.NewValidationError("scheduler already running").WithField("task").WithValue(t.Name)
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Run starts every task and blocks until ctx is cancelled and all loops
// have exited. Each task runs once immediately, then once per interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.NewValidationError("scheduler already running")
	}
	s.running = true
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("scheduler started", "tasks", len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			s.loop(gctx, t)
			return nil
		})
	}
	err := g.Wait()

	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	logger := s.logger.WithWorker(t.Name).WithKind(string(t.Kind))

	ticker := s.clock.NewTicker(t.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, t, logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.runOnce(ctx, t, logger)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task, logger *logging.Logger) {
	res := run(ctx, t)

	// A wait abandoned because we are shutting down is not a failure.
	if res.Err != nil && ctx.Err() != nil && errors.Is(res.Err, errors.ErrWaitAbandoned) {
		return
	}

	if s.recorder != nil {
		s.recorder.WorkerRun(t.Name, string(t.Kind), res.Err, res.Duration)
	}
	if res.Err != nil {
		logFailure(logger, res)
		s.bus.Publish(event.NewWorkerFailedEvent(t.Name, string(t.Kind), res.Err))
		return
	}
	logger.Debug("task ran", "duration", res.Duration)
}

// logFailure logs a failed run at Warn when the error is retryable or no
// worse than a warning, and at Error otherwise.
func logFailure(logger *logging.Logger, res Result) {
	severity := errors.GetSeverity(res.Err)
	retryable := errors.IsRetryable(res.Err)
	args := []any{
		"error", res.Err,
		"severity", severity.String(),
		"retryable", retryable,
		"duration", res.Duration,
	}
	if retryable || severity <= errors.SeverityWarning {
		logger.Warn("task failed", args...)
		return
	}
	logger.Error("task failed", args...)
}
