package orchestrator

import (
	"context"
	"errors"
	"testing"
)

type fakeToolCaller struct {
	calls   []ToolCall
	results map[string]ToolResult
	err     map[string]error
}

func (f *fakeToolCaller) CallTool(ctx context.Context, server, name string, args map[string]any) (ToolResult, error) {
	f.calls = append(f.calls, ToolCall{ServerName: server, ToolName: name, Arguments: args})
	key := server + "-" + name
	if err, ok := f.err[key]; ok {
		return ToolResult{}, err
	}
	return f.results[key], nil
}

type fakeSubAgentRunner struct {
	summary string
	err     error
}

func (f *fakeSubAgentRunner) RunSubAgent(ctx context.Context, agentName, subtask string) (string, error) {
	return f.summary, f.err
}

func TestDispatchSequentialOrderAndBadCalls(t *testing.T) {
	tools := &fakeToolCaller{results: map[string]ToolResult{
		"tool-calc-add": NewOKResult("4"),
	}}
	sub := &fakeSubAgentRunner{summary: "ignored"}

	good := []ToolCall{{ID: "t1", ServerName: "tool-calc", ToolName: "add", Arguments: map[string]any{"a": 2, "b": 2}}}
	bad := []BadToolCall{{Error: "bad json", Raw: "{"}}

	results, truncated := Dispatch(context.Background(), good, bad, 5, tools, sub)

	if truncated {
		t.Error("expected no truncation with 1 call and max 5")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (1 good + 1 bad), got %d", len(results))
	}
	if results[0].CallID != "t1" || !results[0].Result.OK || results[0].Result.Text != "4" {
		t.Errorf("unexpected good-call result: %+v", results[0])
	}
	if results[1].CallID != FailedToolCallID {
		t.Errorf("expected bad call to carry FAILED sentinel id, got %q", results[1].CallID)
	}
	if !results[1].Result.OK {
		t.Errorf("bad call result must be ToolResult.ok per spec, got %+v", results[1].Result)
	}
}

func TestDispatchCapsToMaxPerTurn(t *testing.T) {
	tools := &fakeToolCaller{results: map[string]ToolResult{"s-t": NewOKResult("ok")}}
	sub := &fakeSubAgentRunner{}

	good := []ToolCall{
		{ID: "1", ServerName: "s", ToolName: "t", Arguments: map[string]any{}},
		{ID: "2", ServerName: "s", ToolName: "t", Arguments: map[string]any{}},
		{ID: "3", ServerName: "s", ToolName: "t", Arguments: map[string]any{}},
	}

	results, truncated := Dispatch(context.Background(), good, nil, 2, tools, sub)
	if !truncated {
		t.Error("expected truncation when good calls exceed maxPerTurn")
	}
	if len(results) != 2 {
		t.Fatalf("expected exactly 2 dispatched results, got %d", len(results))
	}
}

func TestDispatchRecursesIntoSubAgent(t *testing.T) {
	sub := &fakeSubAgentRunner{summary: "X is 42."}
	tools := &fakeToolCaller{}

	good := []ToolCall{{ServerName: "agent-browsing", ToolName: "search_and_browse", Arguments: map[string]any{"subtask": "find X"}}}
	results, _ := Dispatch(context.Background(), good, nil, 5, tools, sub)

	if len(results) != 1 || !results[0].Result.OK || results[0].Result.Text != "X is 42." {
		t.Fatalf("expected the sub-agent's summary as the tool result, got %+v", results[0])
	}
	if len(tools.calls) != 0 {
		t.Error("sub-agent recursion must not call the regular tool manager")
	}
}

func TestDispatchSynthesizesErrorOnException(t *testing.T) {
	tools := &fakeToolCaller{err: map[string]error{"s-t": errors.New("boom")}}
	sub := &fakeSubAgentRunner{}

	good := []ToolCall{{ID: "1", ServerName: "s", ToolName: "t", Arguments: map[string]any{}}}
	results, _ := Dispatch(context.Background(), good, nil, 5, tools, sub)

	if results[0].Result.OK {
		t.Fatal("expected an error result when the tool call returns an error")
	}
	want := (&ToolError{Kind: ToolErrorExecution, ServerName: "s", ToolName: "t", CallID: "1", Cause: errors.New("boom")}).Error()
	if results[0].Result.Message != want {
		t.Errorf("expected the synthesized message to carry ToolError context, got %q want %q", results[0].Result.Message, want)
	}
}

func TestDispatchSubAgentErrorCarriesToolErrorContext(t *testing.T) {
	sub := &fakeSubAgentRunner{err: errors.New("sub-agent failed")}
	tools := &fakeToolCaller{}

	good := []ToolCall{{ID: "1", ServerName: "agent-browsing", ToolName: "invoke", Arguments: map[string]any{"subtask": "find X"}}}
	results, _ := Dispatch(context.Background(), good, nil, 5, tools, sub)

	if results[0].Result.OK {
		t.Fatal("expected an error result when sub-agent recursion fails")
	}
	want := (&ToolError{Kind: ToolErrorExecution, ServerName: "agent-browsing", ToolName: "invoke", CallID: "1", Cause: errors.New("sub-agent failed")}).Error()
	if results[0].Result.Message != want {
		t.Errorf("expected the synthesized message to carry ToolError context, got %q want %q", results[0].Result.Message, want)
	}
}
