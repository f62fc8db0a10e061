// Package worker runs the goroutines that exercise keeper's resources.
//
// One-shot readers and writers go through [RunOnce], which starts them
// all at once and collects a [Result] for each. Mutators and observers
// are periodic and go through a [Scheduler], which gives every task its
// own ticker and stops them all when the context is cancelled.
//
// Panics inside a task are recovered and reported as errors.
package worker
