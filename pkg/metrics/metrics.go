package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Request routes
const (
	RouteLocal  = "local"  // answered from provider state
	RouteWallet = "wallet" // forwarded to the wallet transport
	RouteRPC    = "rpc"    // forwarded to the chain's node endpoint
)

// Metrics holds the provider request counters
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	chainSwitches *prometheus.CounterVec
}

// New creates the provider metrics and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waas_provider_requests_total",
			Help: "Total number of provider requests by method and route",
		},
		[]string{"method", "route"},
	)
	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waas_provider_request_errors_total",
			Help: "Total number of failed provider requests by method",
		},
		[]string{"method"},
	)
	m.chainSwitches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waas_provider_chain_switches_total",
			Help: "Total number of chain switches by target chain id",
		},
		[]string{"chain_id"},
	)

	m.registry.MustRegister(m.requestsTotal, m.errorsTotal, m.chainSwitches)
	return m
}

// Registry returns the registry holding the provider metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncRequest(method, route string) {
	m.requestsTotal.WithLabelValues(method, route).Inc()
}

func (m *Metrics) IncRequestError(method string) {
	m.errorsTotal.WithLabelValues(method).Inc()
}

func (m *Metrics) IncChainSwitch(chainID uint64) {
	m.chainSwitches.WithLabelValues(strconv.FormatUint(chainID, 10)).Inc()
}
