// Package metrics records run counters in a Prometheus registry and exports
// them in the text exposition format.
package metrics

import (
	"time"

	"github.com/desertthunder/isrcx/internal/retry"
	"github.com/desertthunder/isrcx/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a private registry so concurrent runs and tests do not share state.
// It implements tasks.Observer and provides a retry.Notifier.
type Recorder struct {
	registry *prometheus.Registry

	// LookupsTotal counts lookup outcomes by result
	LookupsTotal *prometheus.CounterVec
	// SearchesTotal counts completed search calls
	SearchesTotal prometheus.Counter
	// RetriesTotal counts retried attempts by error kind
	RetriesTotal *prometheus.CounterVec
	// RetryDelay tracks backoff waits by error kind
	RetryDelay *prometheus.HistogramVec
	// ItemsSubmitted counts items added to playlists
	ItemsSubmitted prometheus.Counter
	// PlaylistsCreated counts created playlists
	PlaylistsCreated prometheus.Counter
	// RunDuration is the wall time of the last run
	RunDuration prometheus.Gauge
}

// NewRecorder registers the isrcx collectors in a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		LookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "isrcx_lookups_total",
				Help: "Total number of identifier lookups by outcome",
			},
			[]string{"outcome"},
		),
		SearchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "isrcx_searches_total",
			Help: "Total number of completed catalog search calls",
		}),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "isrcx_retries_total",
				Help: "Total number of retried requests",
			},
			[]string{"kind"},
		),
		RetryDelay: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "isrcx_retry_delay_seconds",
				Help:    "Backoff wait before a retry in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"kind"},
		),
		ItemsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "isrcx_items_submitted_total",
			Help: "Total number of items added to playlists",
		}),
		PlaylistsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "isrcx_playlists_created_total",
			Help: "Total number of playlists created",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "isrcx_run_duration_seconds",
			Help: "Wall time of the last run in seconds",
		}),
	}
}

// Registry exposes the underlying registry as a gatherer.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// OnProgress implements tasks.Observer. Retries are counted by [Recorder.ObserveRetry].
func (r *Recorder) OnProgress(kind tasks.Phase, delta int) {
	switch kind {
	case tasks.Searched:
		r.SearchesTotal.Add(float64(delta))
	case tasks.Found, tasks.NotFound, tasks.Failed, tasks.Cached:
		r.LookupsTotal.WithLabelValues(kind.String()).Add(float64(delta))
	case tasks.SubmitChunk:
		r.ItemsSubmitted.Add(float64(delta))
	case tasks.CreatePlaylist:
		r.PlaylistsCreated.Add(float64(delta))
	}
}

// ObserveRetry is a retry.Notifier.
func (r *Recorder) ObserveRetry(a retry.Attempt) {
	kind := a.Kind.String()
	r.RetriesTotal.WithLabelValues(kind).Inc()
	r.RetryDelay.WithLabelValues(kind).Observe(a.Delay.Seconds())
}

// ObserveRun records the duration of a finished run.
func (r *Recorder) ObserveRun(d time.Duration) {
	r.RunDuration.Set(d.Seconds())
}

// WriteToTextfile writes every metric to path for the node exporter textfile collector.
func (r *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
