// Package telemetry counts what a batch did and exports it in the
// Prometheus text format, for node_exporter's textfile collector.
package telemetry

import (
	"fmt"

	"github.com/ciricc/hwexplore/internal/explore"
	"github.com/ciricc/hwexplore/internal/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes a traversal and keeps Prometheus series for it. It is
// safe to share between engines.
type Metrics struct {
	reg *prometheus.Registry

	measurements *prometheus.CounterVec
	cacheHits    prometheus.Counter
	skipped      *prometheus.CounterVec
	speedup      *prometheus.HistogramVec
	duration     prometheus.Histogram
}

// New registers every series on a fresh registry. A non-nil guard also
// exports its usage.
func New(guard monitor.Guard) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	m := &Metrics{
		reg: reg,
		// measurements counts records by status and phase
		measurements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hwexplore_measurements_total",
			Help: "Experiment records emitted, by status and traversal phase",
		}, []string{"status", "phase"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "hwexplore_cache_hits_total",
			Help: "Records served from the result cache instead of a new measurement",
		}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hwexplore_pairs_skipped_total",
			Help: "Operation/scale pairs abandoned, by reason",
		}, []string{"reason"}),
		speedup: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hwexplore_speedup",
			Help:    "Speedup over the naive single-thread baseline of measured configurations",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25x to 128x
		}, []string{"backend"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hwexplore_measurement_duration_seconds",
			Help:    "Mean wall time of a measured configuration",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}),
	}

	if guard != nil {
		f.NewCounterFunc(prometheus.CounterOpts{
			Name: "hwexplore_guard_acquisitions_total",
			Help: "Times the hardware isolation guard was taken",
		}, func() float64 { return float64(guard.Metrics().Acquisitions) })
		f.NewCounterFunc(prometheus.CounterOpts{
			Name: "hwexplore_guard_held_seconds_total",
			Help: "Total time the hardware isolation guard was held",
		}, func() float64 { return guard.Metrics().Held.Seconds() })
	}
	return m
}

func (m *Metrics) OnRecord(r explore.Record) {
	m.measurements.WithLabelValues(r.Status().String(), r.Phase.String()).Inc()
	if r.Cached {
		m.cacheHits.Inc()
		return
	}
	if r.Result.Measured() {
		m.speedup.WithLabelValues(r.Node.Backend.String()).Observe(r.Result.Speedup)
		m.duration.Observe(r.Elapsed().Seconds())
	}
}

func (m *Metrics) OnSkip(s explore.Skip) {
	m.skipped.WithLabelValues(s.Reason.String()).Inc()
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// WriteTextfile writes every series to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

var _ explore.Observer = (*Metrics)(nil)
