package orchestrator

// AgentConfig is the shape shared by the main agent and every sub-agent
// entry in RunConfig (spec §6).
type AgentConfig struct {
	MaxTurns             int    `yaml:"max_turns" json:"max_turns"`
	MaxToolCallsPerTurn  int    `yaml:"max_tool_calls_per_turn" json:"max_tool_calls_per_turn"`
	KeepToolResult       int    `yaml:"keep_tool_result" json:"keep_tool_result"`
	SystemPromptSuffix   string `yaml:"system_prompt_suffix" json:"system_prompt_suffix"`
	LLMProviderConfig    string `yaml:"llm_provider_config" json:"llm_provider_config"`
	// AddMessageID enables the cache-defeat "[msg_xxxxxxxx]" prefix on the
	// initial user message (SPEC_FULL §12).
	AddMessageID bool `yaml:"add_message_id" json:"add_message_id"`
}

// Limits bounds the task as a whole, independent of any one agent's turn
// budget.
type Limits struct {
	MaxContextLength int `yaml:"max_context_length" json:"max_context_length"`
	MaxOutputTokens  int `yaml:"max_output_tokens" json:"max_output_tokens"`
}

// ExtractionSettings configures the optional hints prefix and boxed-answer
// extraction pass (spec §4.6, SPEC_FULL §12).
type ExtractionSettings struct {
	EnableHints           bool   `yaml:"enable_hints" json:"enable_hints"`
	EnableBoxedExtraction bool   `yaml:"enable_boxed_extraction" json:"enable_boxed_extraction"`
	ExtractionModel       string `yaml:"extraction_model" json:"extraction_model"`
}

// RunConfig is the full configuration accepted by run_task (spec §6).
type RunConfig struct {
	MainAgent  AgentConfig            `yaml:"main_agent" json:"main_agent"`
	SubAgents  map[string]AgentConfig `yaml:"sub_agents" json:"sub_agents"`
	Extraction ExtractionSettings     `yaml:"extraction" json:"extraction"`
	Limits     Limits                 `yaml:"limits" json:"limits"`
}

func (c AgentConfig) toSessionLimits() SessionLimits {
	return SessionLimits{
		MaxTurns:            c.MaxTurns,
		MaxToolCallsPerTurn: c.MaxToolCallsPerTurn,
		KeepToolResult:      c.KeepToolResult,
	}
}
