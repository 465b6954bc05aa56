// ABOUTME: Prometheus collectors for backend tiers, fallbacks, intents, turns, and connection state
// ABOUTME: Collectors implements the recorder interfaces of the chain, classifier, and orchestrator
package metrics

import (
	"net/http"
	"time"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var connectionStates = []models.ConnectionState{
	models.ConnDisconnected,
	models.ConnConnecting,
	models.ConnConnected,
	models.ConnError,
	models.ConnOffline,
}

// Collectors groups every copilot metric on one registry
type Collectors struct {
	registry *prometheus.Registry

	Operations      *prometheus.CounterVec
	OperationTime   *prometheus.HistogramVec
	Fallbacks       *prometheus.CounterVec
	Intents         *prometheus.CounterVec
	Turns           *prometheus.CounterVec
	TurnTime        prometheus.Histogram
	ConnectionState *prometheus.GaugeVec
	Authenticated   prometheus.Gauge
}

// New registers all collectors on a fresh registry
func New() *Collectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collectors{
		registry: reg,

		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_workspace_operations_total",
				Help: "Workspace operations by kind, serving tier, and outcome",
			},
			[]string{"op", "tier", "status"},
		),

		OperationTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "copilot_workspace_operation_duration_seconds",
				Help:    "Workspace operation latency per tier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "tier"},
		),

		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_fallbacks_total",
				Help: "Operations that fell through a failing tier",
			},
			[]string{"op", "from"},
		),

		Intents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_intent_detections_total",
				Help: "Intent detections, split by whether the debounce window served them",
			},
			[]string{"intent", "debounced"},
		),

		Turns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_turns_total",
				Help: "Assistant turns by reply source",
			},
			[]string{"source"},
		),

		TurnTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "copilot_turn_duration_seconds",
				Help:    "End-to-end SendMessage latency",
				Buckets: prometheus.DefBuckets,
			},
		),

		ConnectionState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "copilot_connection_state",
				Help: "1 for the current MCP connection state, 0 otherwise",
			},
			[]string{"state"},
		),

		Authenticated: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "copilot_authenticated",
				Help: "1 when the MCP session is authenticated",
			},
		),
	}
}

// ObserveOperation records one tier attempt
func (c *Collectors) ObserveOperation(op models.OpKind, tier models.BackendTier, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.Operations.WithLabelValues(string(op), string(tier), status).Inc()
	c.OperationTime.WithLabelValues(string(op), string(tier)).Observe(elapsed.Seconds())
}

// ObserveFallback records a tier failure that moved on to the next tier
func (c *Collectors) ObserveFallback(op models.OpKind, from models.BackendTier) {
	c.Fallbacks.WithLabelValues(string(op), string(from)).Inc()
}

// ObserveIntent records one detection
func (c *Collectors) ObserveIntent(intent models.Intent, debounced bool) {
	label := "false"
	if debounced {
		label = "true"
	}
	c.Intents.WithLabelValues(string(intent), label).Inc()
}

// ObserveTurn records a finished SendMessage
func (c *Collectors) ObserveTurn(source string, elapsed time.Duration) {
	c.Turns.WithLabelValues(source).Inc()
	c.TurnTime.Observe(elapsed.Seconds())
}

// ObserveStatus mirrors a connection status snapshot; pass it to Subscribe
func (c *Collectors) ObserveStatus(s models.Status) {
	for _, state := range connectionStates {
		v := 0.0
		if state == s.Connection {
			v = 1
		}
		c.ConnectionState.WithLabelValues(string(state)).Set(v)
	}
	if s.Auth == models.AuthAuthenticated {
		c.Authenticated.Set(1)
	} else {
		c.Authenticated.Set(0)
	}
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
