package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"creator-archiver/internal/archive"
	"creator-archiver/internal/model"
)

const namespace = "creator_archiver"

// Recorder turns orchestrator events into prometheus metrics on a private
// registry.
type Recorder struct {
	registry *prometheus.Registry

	attempts        prometheus.Counter
	failures        *prometheus.CounterVec
	items           *prometheus.CounterVec
	attemptDuration prometheus.Histogram
	transferred     prometheus.Counter
	catalogSize     prometheus.Gauge
	pending         prometheus.Gauge
	lastRun         prometheus.Gauge

	mu           sync.Mutex
	attemptStart time.Time
	lastDone     int64
	now          func() time.Time
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_attempts_total",
			Help:      "Download tool invocations started.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_failures_total",
			Help:      "Failed download attempts by failure kind.",
		}, []string{"kind"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Processed videos by final outcome.",
		}, []string{"outcome"}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Wall-clock duration of download attempts.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		transferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transferred_bytes_total",
			Help:      "Bytes reported by the download tool's progress output.",
		}),
		catalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_videos",
			Help:      "Videos tracked in the state store.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_videos",
			Help:      "Videos not yet downloaded.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		now: time.Now,
	}
	r.registry.MustRegister(
		r.attempts,
		r.failures,
		r.items,
		r.attemptDuration,
		r.transferred,
		r.catalogSize,
		r.pending,
		r.lastRun,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) Observe(e archive.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev := e.(type) {
	case archive.CatalogSynced:
		r.catalogSize.Set(float64(ev.Total))
		r.pending.Set(float64(ev.Pending))
	case archive.AttemptStarted:
		r.attempts.Inc()
		r.attemptStart = r.now()
		r.lastDone = 0
	case archive.TransferProgress:
		// Samples are cumulative per attempt; count only the growth.
		if d := ev.Sample.DoneBytes - r.lastDone; d > 0 {
			r.transferred.Add(float64(d))
		}
		r.lastDone = ev.Sample.DoneBytes
	case archive.AttemptFailed:
		r.failures.WithLabelValues(string(ev.Kind)).Inc()
		r.endAttempt()
	case archive.ItemSkipped:
		r.items.WithLabelValues("skipped").Inc()
	case archive.ItemCompleted:
		if ev.Outcome == model.AttemptSucceeded {
			r.endAttempt()
			r.pending.Dec()
		}
		r.items.WithLabelValues(string(ev.Outcome)).Inc()
	case archive.RunCompleted:
		r.pending.Set(float64(ev.Result.Pending))
		r.catalogSize.Set(float64(ev.Result.Total))
		r.lastRun.Set(float64(r.now().Unix()))
	}
}

func (r *Recorder) endAttempt() {
	if r.attemptStart.IsZero() {
		return
	}
	r.attemptDuration.Observe(r.now().Sub(r.attemptStart).Seconds())
	r.attemptStart = time.Time{}
}

// WriteTextfile exports the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
