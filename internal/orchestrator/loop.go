package orchestrator

import (
	"context"
	"errors"
	"log/slog"
)

// LoopLimits bounds the whole run, independent of any one session's
// SessionLimits (max_context_length/max_output_tokens are task-wide per
// RunConfig.limits, spec §6).
type LoopLimits struct {
	MaxContextLength int
	MaxOutputTokens  int
}

// Loop drives the agent loop for both the main agent and every sub-agent
// session: the same code path, differing only in configured limits and tool
// set (spec §2, C5). Sub-agent recursion is synchronous — RunSession blocks
// until a recursively-invoked sub-agent session completes.
type Loop struct {
	Provider       Provider
	Tools          ToolCaller
	ListTools      func(ctx context.Context) []ToolDefinition
	SubAgentConfig map[string]SubAgentConfig
	Limits         LoopLimits
	Tracer         *Tracer
	Logger         *slog.Logger
	Metrics        *Metrics
}

// Outcome is the result of running one session to completion.
type Outcome struct {
	Summary      string
	Failed       bool
	Interrupted  bool
	FinalHistory []Message
}

// RunSession runs sess's turn loop until it produces a terminal answer, hits
// max_turns, overflows context, or is cancelled, then enters the summary
// pipeline. The one exception is a session cancelled before any assistant
// message exists: it returns a canned interruption summary without calling
// the provider.
func (l *Loop) RunSession(ctx context.Context, sess *AgentSession) (*Outcome, error) {
	logger := l.logger()
	subAgents := NewSubAgentManager(l, l.SubAgentConfig, sess, l.Tracer)

	toolDefs := sess.ToolSet
	if l.ListTools != nil {
		toolDefs = append(append([]ToolDefinition{}, toolDefs...), l.ListTools(ctx)...)
	}

	failed := false
	interrupted := false

turnLoop:
	for {
		select {
		case <-ctx.Done():
			interrupted = true
			break turnLoop
		default:
		}

		sess.TurnCount++
		if !sess.Limits.Unlimited() && sess.TurnCount > sess.Limits.MaxTurns {
			logger.Warn("max turns reached", "session", sess.Name, "turns", sess.TurnCount)
			l.Metrics.incMaxTurns()
			failed = true
			break
		}
		l.Metrics.incTurn()

		compacted := Compact(sess.History, sess.Limits.KeepToolResult)
		resp, err := l.Provider.SendRequest(ctx, sess.SystemPrompt, compacted, toolDefs)

		if cancelledErr(err) {
			interrupted = true
			break
		}
		if clErr, ok := asContextLimitError(err); ok {
			logger.Warn("context limit hit", "session", sess.Name, "reason", clErr.Reason)
			sess.History, _ = RollbackLastPair(sess.History)
			l.Metrics.incRollback()
			failed = true
			break
		}
		if err != nil || resp == nil {
			loopErr := &LoopError{Phase: PhaseSend, Turn: sess.TurnCount, Cause: err}
			logger.Error("llm call failed after retries", "session", sess.Name, "error", loopErr)
			failed = true
			break
		}
		sess.Usage = sess.Usage.Add(resp.Usage)

		assistantText, shouldBreak := l.Provider.ParseResponse(resp)
		if shouldBreak {
			sess.History = append(sess.History, NewTextMessage(RoleAssistant, assistantText))
			break
		}

		good, bad := l.Provider.ExtractToolCalls(resp, assistantText)
		if len(good) == 0 && len(bad) == 0 {
			sess.History = append(sess.History, NewTextMessage(RoleAssistant, assistantText))
			break // model produced a terminal answer
		}

		results, truncated := Dispatch(ctx, good, bad, sess.Limits.MaxToolCallsPerTurn, l.Tools, subAgents)
		l.Metrics.incToolCalls(len(results))
		sess.History = l.Provider.UpdateHistoryWithTools(sess.History, assistantText, good, results, truncated)

		if !l.Provider.FitsWithinContext(sess.History, l.Limits.MaxContextLength, l.Limits.MaxOutputTokens) {
			logger.Warn("headroom guard tripped; rolling back", "session", sess.Name)
			sess.History, _ = RollbackLastPair(sess.History)
			l.Metrics.incRollback()
			failed = true
			break
		}
	}

	if l.Tracer != nil && sess.Name == "main" {
		l.Tracer.UpdateMainHistory(sess.History)
	}

	if interrupted {
		if !hasAssistantMessage(sess.History) {
			return &Outcome{Summary: "task interrupted before any progress was recorded", Interrupted: true, FinalHistory: sess.History}, nil
		}
	}

	agentType := "main"
	if sess.Name != "main" {
		agentType = sess.Name
	}
	taskDescription := firstUserMessage(sess.History)
	summary, finalHistory, summaryFailed := Summarize(ctx, l.Provider, sess.History, taskDescription, failed, agentType)
	sess.History = finalHistory

	out := &Outcome{
		Summary:      summary,
		Failed:       failed || summaryFailed,
		Interrupted:  interrupted,
		FinalHistory: sess.History,
	}
	return out, nil
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func cancelledErr(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

func asContextLimitError(err error) (*ContextLimitError, bool) {
	var cl *ContextLimitError
	ok := errors.As(err, &cl)
	return cl, ok
}

func hasAssistantMessage(history []Message) bool {
	for _, m := range history {
		if m.Role == RoleAssistant {
			return true
		}
	}
	return false
}

func firstUserMessage(history []Message) string {
	for _, m := range history {
		if m.Role == RoleUser {
			return m.Text()
		}
	}
	return ""
}
