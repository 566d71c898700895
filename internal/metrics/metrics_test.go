package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/memetrader/internal/events"
)

func TestObserveCycle(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveCycle("buy", OutcomeDone, 50*time.Millisecond)
	m.ObserveCycle("buy", OutcomeSkipped, time.Millisecond)
	m.ObserveCycle("buy", OutcomeSkipped, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CycleRuns.WithLabelValues("buy", OutcomeDone)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CycleRuns.WithLabelValues("buy", OutcomeSkipped)))
}

func TestSubscribeCountsEvents(t *testing.T) {
	logger := zaptest.NewLogger(t)
	m := New(prometheus.NewRegistry())
	bus := events.NewBus(logger, 16)
	m.Subscribe(bus)

	require.NoError(t, bus.Publish(events.TradeSubmittedEvent{BaseEvent: events.NewBase(events.TradeSubmitted), Side: "BUY"}))
	require.NoError(t, bus.Publish(events.TradeSettledEvent{BaseEvent: events.NewBase(events.TradeSettled), Side: "BUY", Status: "COMPLETED"}))
	require.NoError(t, bus.Publish(events.SkimEvent{BaseEvent: events.NewBase(events.SkimFailed)}))
	require.NoError(t, bus.Shutdown(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesSubmitted.WithLabelValues("BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesSettled.WithLabelValues("BUY", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkimTransfers.WithLabelValues("failed")))
}

func TestServerHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveCycle("sell", OutcomeError, time.Second)

	srv := NewServer(":0", reg, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `memetrader_cycle_runs_total{cycle="sell",outcome="error"} 1`)
}
