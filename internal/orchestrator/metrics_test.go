package orchestrator

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.incTurn()
	m.incToolCalls(3)
	m.incRollback()
	m.incMaxTurns()
}

func TestLoopIncrementsTurnAndToolCallCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	p := &scriptedProvider{turns: []scriptTurn{
		{
			resp:        &Response{ToolCalls: []ToolCall{{ID: "1", ServerName: "s", ToolName: "t"}}},
			shouldBreak: false,
			good:        []ToolCall{{ID: "1", ServerName: "s", ToolName: "t"}},
		},
		{resp: &Response{Text: "done"}, shouldBreak: true},
		{resp: &Response{Text: "summary"}},
	}}
	tools := &fakeToolCaller{results: map[string]ToolResult{"s-t": NewOKResult("ok")}}
	loop := &Loop{Provider: p, Tools: tools, Metrics: metrics}

	if _, err := loop.RunSession(context.Background(), newSession("task", 5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := counterValue(t, metrics.Turns); got != 2 {
		t.Errorf("expected 2 turns recorded, got %v", got)
	}
	if got := counterValue(t, metrics.ToolCalls); got != 1 {
		t.Errorf("expected 1 tool call recorded, got %v", got)
	}
}
