package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the counters the agent loop updates as it runs. A nil
// *Metrics is legal everywhere Loop accepts one; every method is a no-op in
// that case, so instrumentation never becomes a required dependency.
type Metrics struct {
	Turns        prometheus.Counter
	ToolCalls    prometheus.Counter
	Rollbacks    prometheus.Counter
	MaxTurnsHits prometheus.Counter
}

// NewMetrics registers the standard counters on reg. Pass
// prometheus.NewRegistry() for test isolation or prometheus.DefaultRegisterer
// to expose them on the process-wide /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miroflow_turns_total",
			Help: "Agent loop turns executed across all sessions.",
		}),
		ToolCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miroflow_tool_calls_total",
			Help: "Tool calls dispatched, including sub-agent recursion.",
		}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miroflow_rollbacks_total",
			Help: "History rollbacks performed (context overflow or headroom guard).",
		}),
		MaxTurnsHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miroflow_max_turns_total",
			Help: "Sessions that exhausted their max_turns budget.",
		}),
	}
	reg.MustRegister(m.Turns, m.ToolCalls, m.Rollbacks, m.MaxTurnsHits)
	return m
}

func (m *Metrics) incTurn() {
	if m != nil {
		m.Turns.Inc()
	}
}

func (m *Metrics) incToolCalls(n int) {
	if m != nil && n > 0 {
		m.ToolCalls.Add(float64(n))
	}
}

func (m *Metrics) incRollback() {
	if m != nil {
		m.Rollbacks.Inc()
	}
}

func (m *Metrics) incMaxTurns() {
	if m != nil {
		m.MaxTurnsHits.Inc()
	}
}
