package providers

import (
	"testing"

	"github.com/haasonsaas/nexus/internal/orchestrator"
)

func TestFitsWithinContextUnboundedWhenLimitNotSet(t *testing.T) {
	history := []orchestrator.Message{orchestrator.NewTextMessage(orchestrator.RoleUser, "hello")}
	if !fitsWithinContext(history, 0, 1000) {
		t.Error("a zero max context length must mean unbounded")
	}
}

func TestFitsWithinContextRejectsWhenOverBudget(t *testing.T) {
	history := []orchestrator.Message{orchestrator.NewTextMessage(orchestrator.RoleUser, "a very long task description repeated many times over")}
	if fitsWithinContext(history, 10, 1000) {
		t.Error("expected a tiny context budget to be exceeded")
	}
}

func TestFitsWithinContextAcceptsWhenWithinBudget(t *testing.T) {
	history := []orchestrator.Message{orchestrator.NewTextMessage(orchestrator.RoleUser, "hi")}
	if !fitsWithinContext(history, 100000, 1000) {
		t.Error("expected a generous context budget to fit")
	}
}
