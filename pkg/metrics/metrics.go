package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dialogue collectors. A nil *Metrics records nothing.
type Metrics struct {
	NodeRuns     *prometheus.CounterVec   // node executions by node and outcome
	NodeDuration *prometheus.HistogramVec // node latency by node
	ToolCalls    *prometheus.CounterVec   // tool invocations by target, tool and outcome
	Routes       *prometheus.CounterVec   // planned specialist steps by target
	Turns        *prometheus.HistogramVec // end-to-end turn latency by outcome
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	nodeRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_node_runs_total",
		Help: "Graph node executions",
	}, []string{"node", "outcome"})

	nodeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "concierge_node_duration_seconds",
		Help:    "Graph node latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"node"})

	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_tool_calls_total",
		Help: "Tool invocations",
	}, []string{"target", "tool", "outcome"})

	routes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_routed_steps_total",
		Help: "Specialist steps planned by the router",
	}, []string{"target"})

	turns := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "concierge_turn_duration_seconds",
		Help:    "User turn latency",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"outcome"})

	reg.MustRegister(nodeRuns, nodeDuration, toolCalls, routes, turns)

	return &Metrics{
		NodeRuns:     nodeRuns,
		NodeDuration: nodeDuration,
		ToolCalls:    toolCalls,
		Routes:       routes,
		Turns:        turns,
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveNode(node string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.NodeRuns.WithLabelValues(node, outcome(err)).Inc()
	m.NodeDuration.WithLabelValues(node).Observe(took.Seconds())
}

// ObserveTool records one tool call. kind is empty on success.
func (m *Metrics) ObserveTool(target, tool, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "ok"
	}
	m.ToolCalls.WithLabelValues(target, tool, kind).Inc()
}

func (m *Metrics) ObserveRoute(targets ...string) {
	if m == nil {
		return
	}
	for _, t := range targets {
		m.Routes.WithLabelValues(t).Inc()
	}
}

func (m *Metrics) ObserveTurn(took time.Duration, err error) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome(err)).Observe(took.Seconds())
}
