// Package metrics exposes Prometheus counters and histograms for pipeline
// runs and backend attempts.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// Metrics holds the foldcrew collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	FoldAttempts     *prometheus.CounterVec
	FoldDuration     *prometheus.HistogramVec
	SequencesDropped prometheus.Counter
	Runs             *prometheus.CounterVec
	OracleTokens     *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FoldAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foldcrew_fold_attempts_total",
				Help: "Total number of backend fold attempts",
			},
			[]string{"backend", "outcome"}, // outcome: success|failure|skipped
		),
		FoldDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foldcrew_fold_duration_seconds",
				Help:    "Backend fold duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200},
			},
			[]string{"backend"},
		),
		SequencesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "foldcrew_sequences_dropped_total",
				Help: "Total number of submitted chains that failed validation",
			},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foldcrew_runs_total",
				Help: "Total number of pipeline runs by terminal status",
			},
			[]string{"status"},
		),
		OracleTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foldcrew_oracle_tokens_total",
				Help: "Total language model tokens used for model selection",
			},
			[]string{"type"}, // type: input|output
		),
	}

	m.registry.MustRegister(
		m.FoldAttempts,
		m.FoldDuration,
		m.SequencesDropped,
		m.Runs,
		m.OracleTokens,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFold records one backend result. Unselected backends count as
// skipped and add no duration sample.
func (m *Metrics) ObserveFold(res models.FoldResult, d time.Duration) {
	if m == nil {
		return
	}
	m.FoldAttempts.WithLabelValues(string(res.ModelName), res.Outcome()).Inc()
	if res.ModelIsSelected {
		m.FoldDuration.WithLabelValues(string(res.ModelName)).Observe(d.Seconds())
	}
}

// ObserveDropped adds n dropped chains.
func (m *Metrics) ObserveDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SequencesDropped.Add(float64(n))
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(status models.RunStatus) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(string(status)).Inc()
}

// ObserveTokens adds oracle token usage.
func (m *Metrics) ObserveTokens(input, output int64) {
	if m == nil {
		return
	}
	m.OracleTokens.WithLabelValues("input").Add(float64(input))
	m.OracleTokens.WithLabelValues("output").Add(float64(output))
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
