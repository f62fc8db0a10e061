// Package metrics exports keeper's lock and worker activity to Prometheus.
//
// [Collector] implements [rwlock.Observer] and [worker.Recorder]; pass it
// to each resource with WithLockOptions(rwlock.WithObserver(c)) and to the
// scheduler with worker.WithRecorder(c).
//
// # Metrics
//
//   - keeper_lock_acquisitions_total{lock,mode}
//   - keeper_lock_wait_seconds{lock,mode}
//   - keeper_lock_active_readers{lock}
//   - keeper_lock_writer_held{lock}
//   - keeper_lock_abandoned_total{lock,mode}
//   - keeper_worker_runs_total{task,kind,outcome}
//   - keeper_worker_run_seconds{task,kind}
//
// [Server] serves them on /metrics next to /healthz and a JSON /locks view.
package metrics
