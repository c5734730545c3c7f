// File: internal/metrics/metrics.go
// ============================================
// Prometheus metrics the bot updates during operation:
//   - bot_cycles_total: evaluation cycles completed
//   - bot_cycle_errors_total{kind}: cycles aborted (transient|integrity)
//   - bot_decisions_total{decision}: decisions per cycle outcome
//   - bot_orders_total{side}: orders submitted (BUY|SELL)
//   - bot_exit_reasons_total{reason}: exits by reason
//   - bot_session_realized_pnl_local: session realized PnL gauge (local ccy)
//   - bot_position_long: 1 while a position is open, else 0
//
// Served at /metrics in Prometheus text exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	Cycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_cycles_total",
			Help: "Evaluation cycles completed",
		},
	)

	CycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_cycle_errors_total",
			Help: "Cycles aborted before a decision, by error kind",
		},
		[]string{"kind"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Decisions taken per cycle",
		},
		[]string{"decision"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders submitted",
		},
		[]string{"side"},
	)

	ExitReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_exit_reasons_total",
			Help: "Position exits split by reason",
		},
		[]string{"reason"},
	)

	SessionPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_session_realized_pnl_local",
			Help: "Session realized PnL in local currency",
		},
	)

	PositionLong = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_position_long",
			Help: "1 while a long position is open, 0 while flat",
		},
	)
)

func init() {
	prometheus.MustRegister(Cycles, CycleErrors, Decisions, Orders, ExitReasons, SessionPnL, PositionLong)
}

// Serve exposes /metrics on addr; blocks until the listener fails.
func Serve(addr string, logger *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Infof("📈 Metrics listening on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warnf("❌ Metrics server stopped: %v", err)
	}
}
