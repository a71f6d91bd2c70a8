package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline runs on a private registry. The ETL is a batch
// job with no listener, so the registry is written to a node-exporter
// textfile after each run instead of being scraped.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal     *prometheus.CounterVec
	StageFailures *prometheus.CounterVec
	RowsLoaded    prometheus.Gauge
	StageDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_stage_failures_total",
				Help: "Stage failures by stage and error kind",
			},
			[]string{"stage", "kind"},
		),
		RowsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "etl_rows_loaded",
				Help: "Rows written by the last successful load",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "etl_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
	}
	m.registry.MustRegister(m.RunsTotal, m.StageFailures, m.RowsLoaded, m.StageDuration)
	return m
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) StageFailed(stage, kind string) {
	m.StageFailures.WithLabelValues(stage, kind).Inc()
}

// RunFinished counts a run and, on success, records how many rows it loaded.
func (m *Metrics) RunFinished(ok bool, loaded int) {
	if !ok {
		m.RunsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.RunsTotal.WithLabelValues("success").Inc()
	m.RowsLoaded.Set(float64(loaded))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry to path in the text exposition format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
