package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// RunResult is run_task's return value (spec §6).
type RunResult struct {
	FinalSummary string
	BoxedAnswer  string
	Trajectory   TaskTrace
	Usage        TokenUsage
}

// Orchestrator composes C1-C7 into the single public operation run_task.
type Orchestrator struct {
	ToolManager *ToolManager
	Provider    Provider
	Config      RunConfig
	Logger      *slog.Logger
	TracePath   string // file the trace JSON is written to; empty disables persistence
	Metrics     *Metrics

	// ExtractionProvider backs the hints and boxed-answer auxiliary calls
	// (§4.5, §4.6), letting RunConfig.Extraction.ExtractionModel name a
	// cheaper or differently-tuned model than the main agent's. Nil falls
	// back to Provider.
	ExtractionProvider Provider
}

// extractionProvider returns the provider backing the auxiliary hints and
// boxed-answer calls, defaulting to the main agent's provider when
// RunConfig.Extraction.ExtractionModel names no distinct one.
func (o *Orchestrator) extractionProvider() Provider {
	if o.ExtractionProvider != nil {
		return o.ExtractionProvider
	}
	return o.Provider
}

// RunTask drives one task to completion: builds the main agent session,
// runs the loop, and returns the summary/boxed-answer/trajectory/usage
// quadruple (spec §6).
func (o *Orchestrator) RunTask(ctx context.Context, taskID, description, filePath string) (*RunResult, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := NewTracer(taskID, o.TracePath, WithLogger(logger))
	tracer.LogStep("task.start", description, StepInfo, map[string]any{"file": filePath})

	userText := description
	if hints, ok := GenerateHints(ctx, ExtractionConfig{
		EnableHints:        o.Config.Extraction.EnableHints,
		ExtractionProvider: o.extractionProvider(),
	}, description); ok {
		userText = "Before you begin, review these notes on subtle or easily misunderstood points in the task below (for reference only, not necessarily exhaustive):\n\n" + hints + "\n\n" + description
	}
	if o.Config.MainAgent.AddMessageID {
		userText = fmt.Sprintf("[%s] %s", generateMessageID(), userText)
	}

	// RunConfig.SubAgents is keyed by the full "agent-<name>" form (spec §6),
	// but Dispatch strips subAgentServerPrefix before calling RunSubAgent, so
	// the lookup map here must be keyed by the bare name to match.
	subAgentConfigs := make(map[string]SubAgentConfig, len(o.Config.SubAgents))
	for name, cfg := range o.Config.SubAgents {
		bareName := strings.TrimPrefix(name, subAgentServerPrefix)
		subAgentConfigs[bareName] = SubAgentConfig{
			Name:               bareName,
			SystemPromptSuffix: cfg.SystemPromptSuffix,
			Limits:             cfg.toSessionLimits(),
		}
	}

	loop := &Loop{
		Provider:       o.Provider,
		Tools:          o.ToolManager,
		ListTools:      func(ctx context.Context) []ToolDefinition { return o.ToolManager.ListTools(ctx) },
		SubAgentConfig: subAgentConfigs,
		Limits: LoopLimits{
			MaxContextLength: o.Config.Limits.MaxContextLength,
			MaxOutputTokens:  o.Config.Limits.MaxOutputTokens,
		},
		Tracer:  tracer,
		Logger:  logger,
		Metrics: o.Metrics,
	}

	sess := &AgentSession{
		Name:         "main",
		SystemPrompt: o.Config.MainAgent.SystemPromptSuffix,
		History:      []Message{NewTextMessage(RoleUser, userText)},
		Limits:       o.Config.MainAgent.toSessionLimits(),
	}

	outcome, err := loop.RunSession(ctx, sess)
	if err != nil {
		tracer.LogStep("task.error", err.Error(), StepFailed, nil)
		tracer.Finish(StatusFailed, "")
		return nil, err
	}

	status := StatusCompleted
	switch {
	case outcome.Interrupted:
		status = StatusInterrupted
	case outcome.Failed:
		status = StatusFailed
	}

	boxed, _ := ExtractBoxedAnswer(ctx, ExtractionConfig{
		EnableBoxedExtraction: o.Config.Extraction.EnableBoxedExtraction,
		ExtractionProvider:    o.extractionProvider(),
	}, description, outcome.Summary)

	summary := outcome.Summary
	if boxed != "" {
		summary = summary + "\n\n" + boxed
	}

	tracer.LogStep("task.finish", string(status), StepInfo, nil)
	tracer.Finish(status, boxed)

	return &RunResult{
		FinalSummary: summary,
		BoxedAnswer:  boxed,
		Trajectory:   tracer.Trace(),
		Usage:        sess.Usage,
	}, nil
}

func generateMessageID() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return "msg_" + hex.EncodeToString(buf[:])
}
