// Package metrics holds the gateway's Prometheus collectors and the
// optional standalone metrics listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts dispatched commands by verb and outcome kind
	// ("ok" or the error kind string).
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_commands_total",
			Help: "Total number of Redis commands dispatched through the gateway",
		},
		[]string{"verb", "outcome"},
	)

	// CommandDuration observes end-to-end dispatch latency per verb.
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_command_duration_seconds",
			Help:    "Command dispatch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	// PoolConnectionsOpen tracks live backend sockets per instance.
	PoolConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_pool_connections_open",
			Help: "Open backend connections per Redis instance",
		},
		[]string{"instance_id"},
	)
)

// RegisterTenantTableSize exposes the routing table size as a gauge.
func RegisterTenantTableSize(size func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gateway_tenant_instances",
		Help: "Number of Redis instances in the tenant routing table",
	}, func() float64 {
		return float64(size())
	}))
}
