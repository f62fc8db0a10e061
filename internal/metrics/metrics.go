package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Iron-Ham/keeper/internal/rwlock"
	"github.com/Iron-Ham/keeper/internal/worker"
)

const namespace = "keeper"

// Outcome label values for worker runs.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Compile-time interface checks
var (
	_ rwlock.Observer = (*Collector)(nil)
	_ worker.Recorder = (*Collector)(nil)
)

// Collector exports lock and worker metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	acquisitions  *prometheus.CounterVec
	waitSeconds   *prometheus.HistogramVec
	activeReaders *prometheus.GaugeVec
	writerHeld    *prometheus.GaugeVec
	abandoned     *prometheus.CounterVec
	workerRuns    *prometheus.CounterVec
	workerSeconds *prometheus.HistogramVec
}

// New creates a Collector with every metric registered, plus the Go
// runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_acquisitions_total",
			Help:      "Number of granted lock acquisitions.",
		}, []string{"lock", "mode"}),
		waitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for a lock, granted or abandoned.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"lock", "mode"}),
		activeReaders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lock_active_readers",
			Help:      "Readers currently holding the lock.",
		}, []string{"lock"}),
		writerHeld: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lock_writer_held",
			Help:      "1 while a writer holds the lock.",
		}, []string{"lock"}),
		abandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_abandoned_total",
			Help:      "Number of lock waits abandoned before the lock was granted.",
		}, []string{"lock", "mode"}),
		workerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_runs_total",
			Help:      "Number of worker task runs by outcome.",
		}, []string{"task", "kind", "outcome"}),
		workerSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_run_seconds",
			Help:      "Duration of worker task runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task", "kind"}),
	}

	c.registry.MustRegister(
		c.acquisitions,
		c.waitSeconds,
		c.activeReaders,
		c.writerHeld,
		c.abandoned,
		c.workerRuns,
		c.workerSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Acquired implements rwlock.Observer.
func (c *Collector) Acquired(lock string, mode rwlock.Mode, waited time.Duration) {
	m := mode.String()
	c.acquisitions.WithLabelValues(lock, m).Inc()
	c.waitSeconds.WithLabelValues(lock, m).Observe(waited.Seconds())
	if mode == rwlock.Read {
		c.activeReaders.WithLabelValues(lock).Inc()
	} else {
		c.writerHeld.WithLabelValues(lock).Set(1)
	}
}

// Released implements rwlock.Observer.
func (c *Collector) Released(lock string, mode rwlock.Mode) {
	if mode == rwlock.Read {
		c.activeReaders.WithLabelValues(lock).Dec()
	} else {
		c.writerHeld.WithLabelValues(lock).Set(0)
	}
}

// Abandoned implements rwlock.Observer.
func (c *Collector) Abandoned(lock string, mode rwlock.Mode, waited time.Duration) {
	m := mode.String()
	c.abandoned.WithLabelValues(lock, m).Inc()
	c.waitSeconds.WithLabelValues(lock, m).Observe(waited.Seconds())
}

// WorkerRun implements worker.Recorder.
func (c *Collector) WorkerRun(task, kind string, err error, d time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.workerRuns.WithLabelValues(task, kind, outcome).Inc()
	c.workerSeconds.WithLabelValues(task, kind).Observe(d.Seconds())
}

// RecordResults reports one-shot worker results.
func (c *Collector) RecordResults(results []worker.Result) {
	for _, r := range results {
		c.WorkerRun(r.Name, string(r.Kind), r.Err, r.Duration)
	}
}
