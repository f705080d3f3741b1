package orchestrator

import (
	"context"
	"fmt"
)

// SubAgentConfig describes one sub-agent type: its own turn/fan-out limits,
// tool set, and system-prompt suffix (spec §4.5, §6).
type SubAgentConfig struct {
	Name               string
	SystemPromptSuffix string
	Limits             SessionLimits
	ToolSet            []ToolDefinition
}

// SubAgentManager owns sub-agent session lifetimes. Lifetimes are strictly
// stack-like (spec §3): a session is created when a sub-agent tool call
// begins and closed when it returns, so a single counter per parent session
// is sufficient — no concurrent sub-agents exist by construction, since
// recursion is synchronous (spec §4.5's "no interleaving").
type SubAgentManager struct {
	loop    *Loop
	configs map[string]SubAgentConfig
	parent  *AgentSession
	tracer  *Tracer
}

// NewSubAgentManager builds a manager that recurses back into loop for every
// sub-agent invocation. parent is the session whose SubAgentCounter is
// advanced on each spawn.
func NewSubAgentManager(loop *Loop, configs map[string]SubAgentConfig, parent *AgentSession, tracer *Tracer) *SubAgentManager {
	return &SubAgentManager{loop: loop, configs: configs, parent: parent, tracer: tracer}
}

// RunSubAgent implements SubAgentRunner: it opens a new sub-agent session
// synchronously, runs it to completion, and returns its final summary as the
// string that becomes the parent's tool result (spec §4.5: "a sub-agent's
// final summary string *is* the tool result").
func (m *SubAgentManager) RunSubAgent(ctx context.Context, agentName, subtask string) (string, error) {
	cfg, ok := m.configs[agentName]
	if !ok {
		return "", fmt.Errorf("unknown sub-agent %q", agentName)
	}

	m.parent.SubAgentCounter++
	sessionID := fmt.Sprintf("agent-%s_%d", agentName, m.parent.SubAgentCounter)

	sess := &AgentSession{
		Name:         sessionID,
		SystemPrompt: cfg.SystemPromptSuffix,
		History:      []Message{NewTextMessage(RoleUser, subtask)},
		ToolSet:      cfg.ToolSet,
		Limits:       cfg.Limits,
	}

	if m.tracer != nil {
		m.tracer.StartSubAgentSession(sessionID)
		defer func() { m.tracer.EndSubAgentSession(sessionID, sess.History) }()
	}

	outcome, err := m.loop.RunSession(ctx, sess)
	if err != nil {
		return "", err
	}
	return outcome.Summary, nil
}
