package orchestrator

import "context"

// Response is the provider-agnostic result of one LLM call: either raw
// assistant text, a set of structured tool calls, or both (some providers
// emit text commentary alongside tool_calls).
type Response struct {
	Text            string
	ToolCalls       []ToolCall // structured dialect only; inline dialect is parsed from Text
	Usage           TokenUsage
	FinishReasonRaw string
}

// Provider is the capability record a concrete LLM binding implements. It is
// a tagged bundle of function values rather than a class hierarchy: adding a
// new provider means implementing these six methods (spec Design Note).
type Provider interface {
	// Name identifies this provider for logging and config lookup.
	Name() string

	// SendRequest issues one completion call. history has already been
	// passed through Compact by the caller. Implementations apply their own
	// exponential-backoff retry (see internal/providers.Retry) and must
	// return a *ContextLimitError, unwrapped, when the provider signals
	// context overflow.
	SendRequest(ctx context.Context, systemPrompt string, history []Message, tools []ToolDefinition) (*Response, error)

	// ParseResponse extracts the plain assistant text to append to history
	// and reports whether the loop should terminate (a terminal answer with
	// no tool calls pending).
	ParseResponse(resp *Response) (text string, shouldBreak bool)

	// ExtractToolCalls returns well-formed calls and a list of malformed
	// attempts. The inline-XML dialect reports malformed blocks as bad calls;
	// the structured bindings in internal/providers drop a structured call
	// they cannot parse while building the Response (OpenAI: bad name or
	// arguments; Anthropic: bad name), so such a call is in neither list.
	ExtractToolCalls(resp *Response, assistantText string) (good []ToolCall, bad []BadToolCall)

	// UpdateHistoryWithTools folds dispatch results back into history,
	// choosing the structured (one tool message per call) or inline
	// (one merged user message) encoding this provider uses.
	UpdateHistoryWithTools(history []Message, assistantText string, calls []ToolCall, results []DispatchResult, truncated bool) []Message

	// FitsWithinContext estimates whether appending a synthetic summary
	// prompt of average length would still fit the model's context window.
	FitsWithinContext(history []Message, maxContextLength, maxOutputTokens int) bool

	// HandleMaxTurnsSummaryPrompt merges a summary prompt into history,
	// combining with any dangling user message per this provider's policy.
	HandleMaxTurnsSummaryPrompt(history []Message, summaryPrompt string) []Message
}

// BadToolCall is a tool-call attempt that failed to parse.
type BadToolCall struct {
	Error string
	Raw   string
}
