package providers

import (
	"testing"

	"github.com/haasonsaas/nexus/internal/orchestrator"
)

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicProvider(AnthropicConfig{})
	if err == nil {
		t.Fatal("expected an error when no API key is supplied")
	}
}

func TestNewAnthropicProviderAppliesDefaults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != "claude-sonnet-4-20250514" {
		t.Errorf("unexpected default model: %q", p.model)
	}
	if p.maxTok != 4096 {
		t.Errorf("unexpected default max tokens: %d", p.maxTok)
	}
	if p.retry != DefaultRetryConfig {
		t.Errorf("unexpected default retry config: %+v", p.retry)
	}
}

func TestSplitToolNameUsesLastHyphen(t *testing.T) {
	server, tool, ok := splitToolName("tool-calc-add")
	if !ok || server != "tool-calc" || tool != "add" {
		t.Fatalf("unexpected split: server=%q tool=%q ok=%v", server, tool, ok)
	}

	_, _, ok = splitToolName("noqualifier")
	if ok {
		t.Error("expected a name with no hyphen to fail to split")
	}
}

func TestAnthropicConvertMessagesSkipsSystemRole(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	history := []orchestrator.Message{
		orchestrator.NewTextMessage(orchestrator.RoleSystem, "be helpful"),
		orchestrator.NewTextMessage(orchestrator.RoleUser, "hello"),
		orchestrator.NewTextMessage(orchestrator.RoleAssistant, "hi there"),
	}
	out, err := p.convertMessages(history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected the system message dropped (sent via params.System instead), got %d messages", len(out))
	}
}

func TestAnthropicConvertMessagesCarriesToolResults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	history := []orchestrator.Message{
		orchestrator.NewTextMessage(orchestrator.RoleUser, "run a tool"),
		{Role: orchestrator.RoleAssistant, ContentPlain: "", ToolCalls: []orchestrator.ToolCall{{ID: "1", ServerName: "s", ToolName: "t"}}},
		{Role: orchestrator.RoleTool, ContentPlain: "42", ToolCallID: "1"},
	}
	out, err := p.convertMessages(history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected one Anthropic message per history entry, got %d", len(out))
	}
}
