// Package metrics exposes Prometheus counters and gauges for the four
// pipeline stages, generalized from the teacher's single-pair bot
// metrics to per-product, per-edge-type, and per-currency label sets.
// Registered in init() and served by promhttp.Handler() at /metrics,
// exactly as metrics.go/main.go do today.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// FeedEventsTotal counts raw feed messages by product and event type.
	FeedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbtrader_feed_events_total",
			Help: "Feed events received, by product and event type.",
		},
		[]string{"product", "event_type"},
	)

	// BookApplyErrorsTotal counts rejected book events by product and
	// the sentinel error class that rejected them.
	BookApplyErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbtrader_book_apply_errors_total",
			Help: "Order book Apply errors, by product and error class.",
		},
		[]string{"product", "error"},
	)

	// DirtyProductsGauge reports the current size of the dirty set.
	DirtyProductsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbtrader_dirty_products",
			Help: "Products pending a network-edge refresh, by side.",
		},
		[]string{"side"},
	)

	// CycleValueGauge reports the best cycle value currently available
	// per starting currency and edge type.
	CycleValueGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbtrader_best_cycle_value",
			Help: "Best cycle value available, by starting currency and edge type.",
		},
		[]string{"currency", "edge_type"},
	)

	// BalanceGauge reports the ledger's balance, hold, and available
	// quantities per currency.
	BalanceGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbtrader_balance",
			Help: "Ledger balance by currency and kind (total|hold|available).",
		},
		[]string{"currency", "kind"},
	)

	// OrdersPlacedTotal counts maker orders submitted, by product and
	// side.
	OrdersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbtrader_orders_placed_total",
			Help: "Maker orders placed, by product and side.",
		},
		[]string{"product", "side"},
	)

	// OrdersDoneTotal counts resting orders reaching a terminal status,
	// by product and the status they reached.
	OrdersDoneTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbtrader_orders_done_total",
			Help: "Orders reaching a terminal status, by product and status.",
		},
		[]string{"product", "status"},
	)

	// RestartsTotal counts orchestrator restart-supervisor cycles.
	RestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arbtrader_restarts_total",
			Help: "Number of times the orchestrator restart loop has re-bootstrapped.",
		},
	)

	// StoreErrorsTotal counts persistent-store operation failures by
	// operation name.
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbtrader_store_errors_total",
			Help: "Store operation failures, by operation.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		FeedEventsTotal,
		BookApplyErrorsTotal,
		DirtyProductsGauge,
		CycleValueGauge,
		BalanceGauge,
		OrdersPlacedTotal,
		OrdersDoneTotal,
		RestartsTotal,
		StoreErrorsTotal,
	)
}
