// internal/metrics/metrics.go
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/events"
)

const namespace = "memetrader"

// Cycle outcomes
const (
	OutcomeDone    = "done"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Metrics holds the controller collectors.
type Metrics struct {
	CycleRuns       *prometheus.CounterVec
	CycleDuration   *prometheus.HistogramVec
	TradesSubmitted *prometheus.CounterVec
	TradesSettled   *prometheus.CounterVec
	SkimTransfers   *prometheus.CounterVec
}

// New registers all collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CycleRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_runs_total",
			Help:      "Cycle executions by outcome",
		}, []string{"cycle", "outcome"}),
		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Cycle wall time",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"cycle"}),
		TradesSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_submitted_total",
			Help:      "Swaps accepted by the executor and recorded as pending",
		}, []string{"side"}),
		TradesSettled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_settled_total",
			Help:      "Pending trades moved to a terminal status",
		}, []string{"side", "status"}),
		SkimTransfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skim_transfers_total",
			Help:      "Skim transfer outcomes",
		}, []string{"result"}),
	}
}

// ObserveCycle records one cycle run.
func (m *Metrics) ObserveCycle(cycle, outcome string, d time.Duration) {
	m.CycleRuns.WithLabelValues(cycle, outcome).Inc()
	m.CycleDuration.WithLabelValues(cycle).Observe(d.Seconds())
}

// Subscribe counts trade and skim events published on the bus.
func (m *Metrics) Subscribe(bus *events.Bus) []events.Subscription {
	return []events.Subscription{
		bus.SubscribeFunc(events.TradeSubmitted, func(_ context.Context, e events.Event) error {
			if ev, ok := e.(events.TradeSubmittedEvent); ok {
				m.TradesSubmitted.WithLabelValues(ev.Side).Inc()
			}
			return nil
		}),
		bus.SubscribeFunc(events.TradeSettled, func(_ context.Context, e events.Event) error {
			if ev, ok := e.(events.TradeSettledEvent); ok {
				m.TradesSettled.WithLabelValues(ev.Side, ev.Status).Inc()
			}
			return nil
		}),
		bus.SubscribeFunc(events.SkimCompleted, func(context.Context, events.Event) error {
			m.SkimTransfers.WithLabelValues("success").Inc()
			return nil
		}),
		bus.SubscribeFunc(events.SkimFailed, func(context.Context, events.Event) error {
			m.SkimTransfers.WithLabelValues("failed").Inc()
			return nil
		}),
	}
}

// Server exposes /metrics.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &Server{
		srv:    &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger.Named("metrics"),
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Metrics server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
