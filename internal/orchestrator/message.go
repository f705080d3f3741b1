// Package orchestrator implements the MiroFlow turn-based agent loop: message
// history management, tool-call dispatch (including synchronous sub-agent
// recursion), and the summary/extraction pipeline that produces a task's
// final answer.
package orchestrator

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPartType distinguishes the two kinds of Message content part.
type ContentPartType string

const (
	ContentText  ContentPartType = "text"
	ContentImage ContentPartType = "image"
)

// ContentPart is one element of a multi-part message body.
type ContentPart struct {
	Type ContentPartType `json:"type"`
	Text string          `json:"text,omitempty"`
	// Ref is an opaque reference to image bytes (file path, URL, or data URI)
	// for ContentImage parts. The core never decodes image content itself.
	Ref string `json:"ref,omitempty"`
}

// FailedToolCallID marks a ToolCall that could not be parsed from the
// assistant's output. It is never assigned by a provider.
const FailedToolCallID = "FAILED"

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID is assigned by the provider for structured calls; empty for
	// inline-tag calls, and FailedToolCallID for calls that failed parsing.
	ID         string          `json:"id,omitempty"`
	ServerName string          `json:"server_name"`
	ToolName   string          `json:"tool_name"`
	Arguments  map[string]any  `json:"arguments"`
	Raw        json.RawMessage `json:"-"`
}

// ToolResult is the outcome of executing a ToolCall. Exactly one of the two
// branches is populated; the OK field tells them apart.
type ToolResult struct {
	OK      bool   `json:"ok"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// emptyResultPlaceholder is returned instead of silently dropping empty tool
// output, per the spec's "distinguishable empty result" requirement.
const emptyResultPlaceholder = "(tool returned no output)"

// NewOKResult builds a successful ToolResult, substituting a distinguishable
// placeholder for empty text.
func NewOKResult(text string) ToolResult {
	if text == "" {
		text = emptyResultPlaceholder
	}
	return ToolResult{OK: true, Text: text}
}

// NewErrorResult builds a failed ToolResult.
func NewErrorResult(message string) ToolResult {
	if message == "" {
		message = "unknown error"
	}
	return ToolResult{OK: false, Message: message}
}

// ToolDefinition describes one callable tool exposed by a tool server.
type ToolDefinition struct {
	ServerName  string          `json:"server_name"`
	ToolName    string          `json:"tool_name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// QualifiedName returns the "<server>-<tool>" form used on the wire by the
// structured dialect.
func (d ToolDefinition) QualifiedName() string {
	return d.ServerName + "-" + d.ToolName
}

// Message is one entry in a transcript. Content is either a plain string
// (ContentPlain) or a sequence of typed parts (Parts); exactly one is set.
type Message struct {
	Role        Role          `json:"role"`
	ContentPlain string       `json:"content,omitempty"`
	Parts       []ContentPart `json:"parts,omitempty"`
	ToolCalls   []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID  string        `json:"tool_call_id,omitempty"`
	// IsToolResult marks a RoleUser message as the inline dialect's merged
	// tool-result block (built by UpdateHistoryInline), so history
	// compaction can recognize it the same way it recognizes a RoleTool
	// message in the structured dialect.
	IsToolResult bool `json:"is_tool_result,omitempty"`
}

// Text concatenates all text content in a message, whichever form it takes.
func (m Message) Text() string {
	if m.ContentPlain != "" {
		return m.ContentPlain
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == ContentText {
			out += p.Text
		}
	}
	return out
}

// NewTextMessage builds a plain-string Message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, ContentPlain: text}
}

// TokenUsage is an additive monoid accumulating provider-reported usage.
type TokenUsage struct {
	Input          int64 `json:"input"`
	Output         int64 `json:"output"`
	InputCached    int64 `json:"input_cached"`
	OutputReasoning int64 `json:"output_reasoning"`
}

// Add returns the element-wise sum of two TokenUsage values.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		Input:           u.Input + o.Input,
		Output:          u.Output + o.Output,
		InputCached:     u.InputCached + o.InputCached,
		OutputReasoning: u.OutputReasoning + o.OutputReasoning,
	}
}

// SessionLimits bounds one AgentSession's execution.
type SessionLimits struct {
	MaxTurns             int
	MaxToolCallsPerTurn  int
	KeepToolResult       int // compact(k); -1 = no compaction, 0 = keep only first
}

// Unlimited reports whether MaxTurns should be treated as unbounded, per the
// original source's max_turns=-1 (or <=0) convention.
func (l SessionLimits) Unlimited() bool {
	return l.MaxTurns <= 0
}

// AgentSession is one running agent instance: the main session or a
// sub-agent session. Sub-agent session ids follow "<agent-name>_<n>".
type AgentSession struct {
	Name             string
	SystemPrompt     string
	History          []Message
	TurnCount        int
	ToolSet          []ToolDefinition
	Limits           SessionLimits
	Usage            TokenUsage
	SubAgentCounter  int
}

// StepStatus classifies a StepRecord.
type StepStatus string

const (
	StepInfo    StepStatus = "info"
	StepWarning StepStatus = "warning"
	StepFailed  StepStatus = "failed"
	StepSuccess StepStatus = "success"
	StepDebug   StepStatus = "debug"
)

// StepRecord is one append-only tracer entry.
type StepRecord struct {
	StepName  string         `json:"step_name"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Status    StepStatus     `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskStatus is the exit status surfaced at run_task's boundary.
type TaskStatus string

const (
	StatusCompleted   TaskStatus = "completed"
	StatusInterrupted TaskStatus = "interrupted"
	StatusFailed      TaskStatus = "failed"
)

// TaskTrace is the full persisted record of one task run.
type TaskTrace struct {
	Status            TaskStatus           `json:"status"`
	TaskID            string               `json:"task_id"`
	StartTime         time.Time            `json:"start_time"`
	EndTime           time.Time            `json:"end_time,omitempty"`
	FinalBoxedAnswer  string               `json:"final_boxed_answer,omitempty"`
	MainHistory       []Message            `json:"main_history"`
	SubSessions       map[string][]Message `json:"sub_sessions,omitempty"`
	StepLog           []StepRecord         `json:"step_log"`
}
