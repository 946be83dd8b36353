// Package metrics defines Prometheus metrics for the TDS driver core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsTotal counts TDS packets sent/received by type.
	PacketsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tds_packets_total",
		Help: "Total TDS packets processed",
	}, []string{"direction", "type"})

	// BytesTotal counts raw bytes sent/received on the wire.
	BytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tds_bytes_total",
		Help: "Total bytes processed on the wire",
	}, []string{"direction"})

	// ExchangesTotal counts completed exchanges by outcome.
	ExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tds_exchanges_total",
		Help: "Total request/response exchanges",
	}, []string{"outcome"})

	// ExchangeDuration tracks exchange latency from submission to final DONE.
	ExchangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tds_exchange_duration_seconds",
		Help:    "Exchange duration from submission to final DONE",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})

	// ProtocolErrors counts fatal protocol errors by stage.
	ProtocolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tds_protocol_errors_total",
		Help: "Total protocol-level errors observed",
	}, []string{"stage"})

	// ServerErrors counts ERROR tokens surfaced to callers.
	ServerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tds_server_errors_total",
		Help: "Total ERROR tokens received from the server",
	})

	// ConnectionState tracks the current connection state as a gauge
	// (one label set active at a time, others at 0).
	ConnectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tds_connection_state",
		Help: "Current connection state (1 = active)",
	}, []string{"state"})

	// LoginDuration tracks PRELOGIN+LOGIN handshake latency.
	LoginDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tds_login_duration_seconds",
		Help:    "Time spent completing PRELOGIN and LOGIN7 handshake",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
	})
)
