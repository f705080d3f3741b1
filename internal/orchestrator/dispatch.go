package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// subAgentServerPrefix marks a tool call as sub-agent recursion rather than a
// real tool server, per spec §4.4/§4.5.
const subAgentServerPrefix = "agent-"

const parseRetryInstruction = "Your previous tool call could not be parsed; please retry with corrected syntax (well-formed tags and valid JSON arguments)."

// ToolCaller is the narrow interface Dispatch needs from the Tool Manager.
type ToolCaller interface {
	CallTool(ctx context.Context, server, name string, args map[string]any) (ToolResult, error)
}

// SubAgentRunner is the narrow interface Dispatch needs to recurse into a
// sub-agent session. Implemented by SubAgentManager (see subagent.go), which
// recurses back into Loop.RunSession.
type SubAgentRunner interface {
	RunSubAgent(ctx context.Context, agentName, subtask string) (string, error)
}

// DispatchResult pairs a call id with its outcome, preserving the id=""/
// FailedToolCallID distinction the caller needs to fold results back into
// history correctly.
type DispatchResult struct {
	CallID string
	Result ToolResult
}

// Dispatch executes good calls (capped to maxPerTurn) in document order,
// synchronously, then appends one synthetic result per bad call. Dispatch
// within a turn is sequential by spec §4.4/§5; parallelism in the system
// comes from independent tasks, never from concurrent calls in one turn.
func Dispatch(ctx context.Context, good []ToolCall, bad []BadToolCall, maxPerTurn int, tools ToolCaller, subAgents SubAgentRunner) ([]DispatchResult, bool) {
	truncated := false
	if maxPerTurn > 0 && len(good) > maxPerTurn {
		good = good[:maxPerTurn]
		truncated = true
	}

	results := make([]DispatchResult, 0, len(good)+len(bad))

	for _, call := range good {
		result := executeOne(ctx, call, tools, subAgents)
		results = append(results, DispatchResult{CallID: call.ID, Result: result})
	}

	for range bad {
		results = append(results, DispatchResult{
			CallID: FailedToolCallID,
			Result: NewOKResult(parseRetryInstruction),
		})
	}

	return results, truncated && len(good) > 1
}

func executeOne(ctx context.Context, call ToolCall, tools ToolCaller, subAgents SubAgentRunner) ToolResult {
	if strings.HasPrefix(call.ServerName, subAgentServerPrefix) {
		agentName := strings.TrimPrefix(call.ServerName, subAgentServerPrefix)
		subtask, _ := call.Arguments["subtask"].(string)
		summary, err := subAgents.RunSubAgent(ctx, agentName, subtask)
		if err != nil {
			toolErr := &ToolError{Kind: ToolErrorExecution, ServerName: call.ServerName, ToolName: call.ToolName, CallID: call.ID, Cause: err}
			return NewErrorResult(toolErr.Error())
		}
		return NewOKResult(summary)
	}

	result, err := tools.CallTool(ctx, call.ServerName, call.ToolName, call.Arguments)
	if err != nil {
		kind := ToolErrorExecution
		if errors.Is(err, context.DeadlineExceeded) {
			kind = ToolErrorTimeout
		}
		toolErr := &ToolError{Kind: kind, ServerName: call.ServerName, ToolName: call.ToolName, CallID: call.ID, Cause: err}
		return NewErrorResult(toolErr.Error())
	}
	return result
}

// UpdateHistoryStructured folds dispatch results back as one tool message
// per call, keyed by tool_call_id, per the structured wire dialect (§6.1).
func UpdateHistoryStructured(history []Message, assistantText string, calls []ToolCall, results []DispatchResult) []Message {
	out := make([]Message, len(history))
	copy(out, history)
	out = append(out, Message{Role: RoleAssistant, ContentPlain: assistantText, ToolCalls: calls})
	for _, r := range results {
		text := r.Result.Text
		if !r.Result.OK {
			text = "error: " + r.Result.Message
		}
		out = append(out, Message{Role: RoleTool, ContentPlain: text, ToolCallID: r.CallID})
	}
	return out
}

// UpdateHistoryInline folds dispatch results back as a single merged user
// message with numbered headers, per the inline-XML wire dialect (§6.2). A
// header noting truncation is prepended only when more than one call fired.
func UpdateHistoryInline(history []Message, assistantText string, results []DispatchResult, truncated bool) []Message {
	out := make([]Message, len(history))
	copy(out, history)
	out = append(out, NewTextMessage(RoleAssistant, assistantText))

	var b strings.Builder
	if truncated && len(results) > 1 {
		b.WriteString("Note: only the first tool calls in this turn were executed; the rest were dropped.\n\n")
	}
	if len(results) == 1 {
		writeResultText(&b, results[0].Result)
	} else {
		for i, r := range results {
			fmt.Fprintf(&b, "Result %d:\n", i+1)
			writeResultText(&b, r.Result)
			b.WriteString("\n")
		}
	}
	resultMsg := NewTextMessage(RoleUser, strings.TrimRight(b.String(), "\n"))
	resultMsg.IsToolResult = true
	out = append(out, resultMsg)
	return out
}

func writeResultText(b *strings.Builder, r ToolResult) {
	if r.OK {
		b.WriteString(r.Text)
	} else {
		b.WriteString("error: ")
		b.WriteString(r.Message)
	}
}
