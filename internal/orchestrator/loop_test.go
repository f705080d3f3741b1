package orchestrator

import (
	"context"
	"errors"
	"testing"
)

// scriptTurn describes what one SendRequest call in a turn-by-turn script
// returns, and how the loop should interpret it afterward.
type scriptTurn struct {
	resp        *Response
	err         error
	shouldBreak bool
	good        []ToolCall
	bad         []BadToolCall
}

// scriptedProvider is a hand-rolled Provider double that plays back a fixed
// sequence of turns, in the same no-framework style as the teacher's own
// test doubles. The same sequence backs both the main turn loop and the
// summary pipeline's own SendRequest calls.
type scriptedProvider struct {
	turns []scriptTurn
	idx   int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) SendRequest(ctx context.Context, systemPrompt string, history []Message, tools []ToolDefinition) (*Response, error) {
	if p.idx >= len(p.turns) {
		return nil, errors.New("scriptedProvider: no more scripted turns")
	}
	t := p.turns[p.idx]
	p.idx++
	return t.resp, t.err
}

func (p *scriptedProvider) ParseResponse(resp *Response) (string, bool) {
	t := p.turns[p.idx-1]
	return resp.Text, t.shouldBreak
}

func (p *scriptedProvider) ExtractToolCalls(resp *Response, assistantText string) ([]ToolCall, []BadToolCall) {
	t := p.turns[p.idx-1]
	return t.good, t.bad
}

func (p *scriptedProvider) UpdateHistoryWithTools(history []Message, assistantText string, calls []ToolCall, results []DispatchResult, truncated bool) []Message {
	return UpdateHistoryStructured(history, assistantText, calls, results)
}

func (p *scriptedProvider) FitsWithinContext(history []Message, maxContextLength, maxOutputTokens int) bool {
	return true
}

func (p *scriptedProvider) HandleMaxTurnsSummaryPrompt(history []Message, summaryPrompt string) []Message {
	return append(append([]Message{}, history...), NewTextMessage(RoleUser, summaryPrompt))
}

func newSession(task string, maxTurns int) *AgentSession {
	return &AgentSession{
		Name:         "main",
		SystemPrompt: "be helpful",
		History:      []Message{NewTextMessage(RoleUser, task)},
		Limits:       SessionLimits{MaxTurns: maxTurns, MaxToolCallsPerTurn: 5, KeepToolResult: -1},
	}
}

// S1: trivial completion, no tool calls at all.
func TestLoopTrivialCompletion(t *testing.T) {
	p := &scriptedProvider{turns: []scriptTurn{
		{resp: &Response{Text: "The answer is 42."}, shouldBreak: true},
		{resp: &Response{Text: "Final summary: 42"}},
	}}
	loop := &Loop{Provider: p, Tools: &fakeToolCaller{}}
	outcome, err := loop.RunSession(context.Background(), newSession("what is the answer?", 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Failed || outcome.Interrupted {
		t.Fatalf("expected a clean completion, got %+v", outcome)
	}
	if outcome.Summary != "Final summary: 42" {
		t.Errorf("unexpected summary: %q", outcome.Summary)
	}
}

// S2: a single tool-call turn followed by a terminal answer.
func TestLoopSingleToolTurn(t *testing.T) {
	p := &scriptedProvider{turns: []scriptTurn{
		{
			resp:        &Response{ToolCalls: []ToolCall{{ID: "1", ServerName: "s", ToolName: "t"}}},
			shouldBreak: false,
			good:        []ToolCall{{ID: "1", ServerName: "s", ToolName: "t"}},
		},
		{resp: &Response{Text: "done"}, shouldBreak: true},
		{resp: &Response{Text: "Summary of the tool run."}},
	}}
	tools := &fakeToolCaller{results: map[string]ToolResult{"s-t": NewOKResult("tool output")}}
	loop := &Loop{Provider: p, Tools: tools}

	outcome, err := loop.RunSession(context.Background(), newSession("use the tool", 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Failed {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(tools.calls) != 1 {
		t.Fatalf("expected exactly one tool invocation, got %d", len(tools.calls))
	}
}

// S3: a malformed tool call recovers within the loop via the synthetic
// retry-instruction result, rather than failing the task.
func TestLoopParseErrorRecovers(t *testing.T) {
	p := &scriptedProvider{turns: []scriptTurn{
		{
			resp:        &Response{Text: "<use_mcp_tool>broken"},
			shouldBreak: false,
			bad:         []BadToolCall{{Error: "malformed tag", Raw: "<use_mcp_tool>broken"}},
		},
		{resp: &Response{Text: "recovered"}, shouldBreak: true},
		{resp: &Response{Text: "Summary after recovery."}},
	}}
	loop := &Loop{Provider: p, Tools: &fakeToolCaller{}}

	outcome, err := loop.RunSession(context.Background(), newSession("try a tool", 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Failed {
		t.Fatalf("a malformed call must not fail the task, got %+v", outcome)
	}
}

// S4: context overflow forces rollback and a failed-but-summarized outcome.
func TestLoopContextOverflowForcesSummary(t *testing.T) {
	p := &scriptedProvider{turns: []scriptTurn{
		{err: &ContextLimitError{Reason: "maximum context length"}},
		{resp: &Response{Text: "Summary after overflow."}},
	}}
	sess := newSession("long task", 5)
	sess.History = append(sess.History, NewTextMessage(RoleAssistant, "partial work"), NewTextMessage(RoleUser, "more input"))
	loop := &Loop{Provider: p, Tools: &fakeToolCaller{}}

	outcome, err := loop.RunSession(context.Background(), sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Failed {
		t.Fatal("context overflow must mark the task failed")
	}
	if outcome.Summary != "Summary after overflow." {
		t.Errorf("unexpected summary: %q", outcome.Summary)
	}
}

// S6: hitting max_turns marks the task failed but still reaches the summary
// pipeline rather than aborting without one.
func TestLoopMaxTurnsReachesSummary(t *testing.T) {
	p := &scriptedProvider{turns: []scriptTurn{
		{
			resp:        &Response{ToolCalls: []ToolCall{{ID: "1", ServerName: "s", ToolName: "t"}}},
			shouldBreak: false,
			good:        []ToolCall{{ID: "1", ServerName: "s", ToolName: "t"}},
		},
		{resp: &Response{Text: "Summary after hitting max turns."}},
	}}
	tools := &fakeToolCaller{results: map[string]ToolResult{"s-t": NewOKResult("ok")}}
	loop := &Loop{Provider: p, Tools: tools}

	outcome, err := loop.RunSession(context.Background(), newSession("keep going", 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Failed {
		t.Fatal("expected max_turns to mark the task failed")
	}
	if outcome.Summary != "Summary after hitting max turns." {
		t.Errorf("unexpected summary: %q", outcome.Summary)
	}
}
