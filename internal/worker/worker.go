package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/keeper/internal/errors"
)

// Kind describes how a worker uses its resource.
type Kind string

const (
	// KindReader performs one read and exits.
	KindReader Kind = "reader"
	// KindWriter performs one write and exits.
	KindWriter Kind = "writer"
	// KindMutator writes on a fixed interval.
	KindMutator Kind = "mutator"
	// KindObserver reads on a fixed interval.
	KindObserver Kind = "observer"
)

// Periodic reports whether the kind runs on an interval.
func (k Kind) Periodic() bool {
	return k == KindMutator || k == KindObserver
}

// Task is a unit of work against one resource. Run receives the resource
// through its closure; there is no shared registry.
type Task struct {
	Name     string
	Kind     Kind
	Interval time.Duration // only used by the Scheduler
	Run      func(ctx context.Context) error
}

// Result is the outcome of one task run.
type Result struct {
	Name     string
	Kind     Kind
	Err      error
	Duration time.Duration
}

// Recorder receives the outcome of every task run, e.g. to export metrics.
type Recorder interface {
	WorkerRun(task, kind string, err error, d time.Duration)
}

// RunOnce starts every task concurrently, waits for all of them and
// returns their results in the order given. A panicking task yields an
// error result instead of crashing the process.
func RunOnce(ctx context.Context, tasks ...Task) []Result {
	results := make([]Result, len(tasks))

	var wg conc.WaitGroup
	for i, t := range tasks {
		if err := validateTask(t, false); err != nil {
			results[i] = Result{Name: t.Name, Kind: t.Kind, Err: err}
			continue
		}
		wg.Go(func() {
			results[i] = run(ctx, t)
		})
	}
	wg.Wait()

	return results
}

// run executes t once, converting a panic into an error.
func run(ctx context.Context, t Task) Result {
	start := time.Now()

	var err error
	var pc panics.Catcher
	pc.Try(func() {
		err = t.Run(ctx)
	})
	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("task %s panicked: %w", t.Name, r.AsError())
	}

	return Result{
		Name:     t.Name,
		Kind:     t.Kind,
		Err:      err,
		Duration: time.Since(start),
	}
}

func validateTask(t Task, periodic bool) error {
	switch {
	case t.Name == "":
		return errors.NewValidationError("task name is required").WithField("name")
	case t.Run == nil:
		return errors.NewValidationError("task has no run function").WithField("run").WithValue(t.Name)
	case periodic && t.Interval <= 0:
		return errors.NewValidationError("interval must be positive").WithField("interval").WithValue(t.Interval)
	}
	return nil
}
