package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AlertsAdmitted counts webhook deliveries by admission outcome
	// (admitted|duplicate|rejected).
	AlertsAdmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_alerts_admitted_total",
			Help: "Inbound alerts by admission outcome",
		},
		[]string{"outcome"},
	)

	// AlertsSettled counts alerts that reached a terminal status.
	AlertsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_alerts_settled_total",
			Help: "Alerts settled by terminal status",
		},
		[]string{"status"},
	)

	// OrdersRouted counts routed orders by venue and trade status.
	OrdersRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_orders_routed_total",
			Help: "Orders routed by venue and result",
		},
		[]string{"venue", "status"},
	)

	// DailyRealizedPnL exposes the latest daily realized P&L read by the
	// risk gate.
	DailyRealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_daily_realized_pnl",
			Help: "Realized P&L for the current UTC day",
		},
	)

	// PendingDecisions exposes the number of alerts awaiting the operator.
	PendingDecisions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_pending_decisions",
			Help: "Alerts currently awaiting a human decision",
		},
	)
)

func init() {
	prometheus.MustRegister(
		AlertsAdmitted,
		AlertsSettled,
		OrdersRouted,
		DailyRealizedPnL,
		PendingDecisions,
	)
}
