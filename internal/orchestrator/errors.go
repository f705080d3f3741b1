package orchestrator

import (
	"errors"
	"fmt"
)

// ContextLimitError signals that the provider's combined prompt exceeded the
// model's context window. It is the one error class the loop recovers from
// by rollback rather than retry; kept distinct from ProviderError so callers
// can separate it with errors.As instead of inspecting a classification enum.
type ContextLimitError struct {
	Reason string // e.g. "finish_reason=length with empty content"
}

func (e *ContextLimitError) Error() string {
	return fmt.Sprintf("context limit exceeded: %s", e.Reason)
}

// ErrCancelled marks a provider call aborted by task cancellation. It
// propagates immediately, bypassing retry, per spec's ProviderCancelled row.
var ErrCancelled = errors.New("provider call cancelled")

// ToolErrorKind classifies a tool-execution failure for the taxonomy in
// SPEC_FULL §7.
type ToolErrorKind string

const (
	ToolErrorTimeout   ToolErrorKind = "timeout"
	ToolErrorExecution ToolErrorKind = "execution"
	ToolErrorParse     ToolErrorKind = "parse"
)

// ToolError wraps a failed tool call with enough context to synthesize the
// ToolResult the loop feeds back to the model.
type ToolError struct {
	Kind       ToolErrorKind
	ServerName string
	ToolName   string
	CallID     string
	Cause      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("[tool:%s] %s-%s: %v", e.Kind, e.ServerName, e.ToolName, e.Cause)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// LoopPhase names a point in the Agent Loop's state machine, used for
// diagnostics on LoopError and for tracer step names.
type LoopPhase string

const (
	PhaseInit         LoopPhase = "init"
	PhaseSend         LoopPhase = "send"
	PhaseParse        LoopPhase = "parse"
	PhaseDispatch     LoopPhase = "dispatch"
	PhaseHeadroom     LoopPhase = "headroom"
	PhaseSummary      LoopPhase = "summary"
	PhaseComplete     LoopPhase = "complete"
)

// LoopError carries phase/turn context for an unrecoverable loop failure.
type LoopError struct {
	Phase LoopPhase
	Turn  int
	Cause error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("loop error at %s (turn %d): %v", e.Phase, e.Turn, e.Cause)
}

func (e *LoopError) Unwrap() error { return e.Cause }
