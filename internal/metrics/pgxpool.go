package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterControlPlanePoolMetrics exposes the control-plane database pool's
// statistics as Prometheus gauges. Only registered when the gateway uses the
// Postgres tenant source.
func RegisterControlPlanePoolMetrics(pool *pgxpool.Pool) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gateway_controlplane_db_acquired_conns",
			Help: "Number of currently acquired control-plane database connections",
		}, func() float64 {
			return float64(pool.Stat().AcquiredConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gateway_controlplane_db_total_conns",
			Help: "Total number of control-plane database connections",
		}, func() float64 {
			return float64(pool.Stat().TotalConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gateway_controlplane_db_idle_conns",
			Help: "Number of idle control-plane database connections",
		}, func() float64 {
			return float64(pool.Stat().IdleConns())
		}),
	)
}
