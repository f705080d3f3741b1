package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/nexus/internal/orchestrator"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int64
	Retry        RetryConfig
}

// AnthropicProvider implements orchestrator.Provider over Claude's
// structured tool-use dialect. Grounded on
// internal/agent/providers/anthropic.go's client construction and message
// conversion, collapsed from that file's streaming API to one blocking call
// per turn, since the orchestrator's ordering guarantees (spec §4.5) never
// need partial tokens mid-turn.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
	maxTok int64
	retry  RetryConfig
}

// NewAnthropicProvider builds a provider from cfg, applying the teacher's
// same default-population pattern.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  cfg.DefaultModel,
		maxTok: cfg.MaxTokens,
		retry:  cfg.Retry,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// SendRequest converts history into Anthropic's MessageParam shape and
// issues one blocking call, retried with exponential backoff.
func (p *AnthropicProvider) SendRequest(ctx context.Context, systemPrompt string, history []orchestrator.Message, tools []orchestrator.ToolDefinition) (*orchestrator.Response, error) {
	msgs, err := p.convertMessages(history)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTok,
		Messages:  msgs,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = p.convertTools(tools)
	}

	resp, err := Retry(ctx, p.retry, func(ctx context.Context) (*anthropic.Message, error) {
		msg, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return nil, NewProviderError(p.Name(), err)
		}
		return msg, nil
	})
	if err != nil {
		if IsContextOverflow(err) {
			return nil, &orchestrator.ContextLimitError{Reason: err.Error()}
		}
		return nil, err
	}

	out := &orchestrator.Response{
		FinishReasonRaw: string(resp.StopReason),
		Usage: orchestrator.TokenUsage{
			Input:       resp.Usage.InputTokens,
			Output:      resp.Usage.OutputTokens,
			InputCached: resp.Usage.CacheReadInputTokens,
		},
	}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += variant.Text
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			_ = json.Unmarshal(variant.Input, &args)
			server, tool, ok := splitToolName(variant.Name)
			if !ok {
				continue
			}
			out.ToolCalls = append(out.ToolCalls, orchestrator.ToolCall{
				ID: variant.ID, ServerName: server, ToolName: tool, Arguments: args,
			})
		}
	}
	if resp.StopReason == "max_tokens" && out.Text == "" {
		return nil, &orchestrator.ContextLimitError{Reason: "stop_reason=max_tokens with empty content"}
	}
	return out, nil
}

func (p *AnthropicProvider) ParseResponse(resp *orchestrator.Response) (text string, shouldBreak bool) {
	return resp.Text, false
}

func (p *AnthropicProvider) ExtractToolCalls(resp *orchestrator.Response, assistantText string) ([]orchestrator.ToolCall, []orchestrator.BadToolCall) {
	return resp.ToolCalls, nil
}

func (p *AnthropicProvider) UpdateHistoryWithTools(history []orchestrator.Message, assistantText string, calls []orchestrator.ToolCall, results []orchestrator.DispatchResult, truncated bool) []orchestrator.Message {
	return orchestrator.UpdateHistoryStructured(history, assistantText, calls, results)
}

func (p *AnthropicProvider) FitsWithinContext(history []orchestrator.Message, maxContextLength, maxOutputTokens int) bool {
	return fitsWithinContext(history, maxContextLength, maxOutputTokens)
}

func (p *AnthropicProvider) HandleMaxTurnsSummaryPrompt(history []orchestrator.Message, summaryPrompt string) []orchestrator.Message {
	return append(append([]orchestrator.Message{}, history...), orchestrator.NewTextMessage(orchestrator.RoleUser, summaryPrompt))
}

func (p *AnthropicProvider) convertMessages(history []orchestrator.Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	for _, m := range history {
		switch m.Role {
		case orchestrator.RoleSystem:
			continue // system is sent via params.System, not as a message
		case orchestrator.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text())))
		case orchestrator.RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Text())}
			for _, tc := range m.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Arguments)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, argsJSON, tc.ServerName+"-"+tc.ToolName))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case orchestrator.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Text(), false)))
		}
	}
	return out, nil
}

func (p *AnthropicProvider) convertTools(defs []orchestrator.ToolDefinition) []anthropic.ToolUnionParam {
	var out []anthropic.ToolUnionParam
	for _, d := range defs {
		var schema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(d.Schema, &schema)
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.QualifiedName(),
				Description: anthropic.String(d.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

func splitToolName(name string) (server, tool string, ok bool) {
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == '-' {
			return name[:i], name[i+1:], true
		}
	}
	return "", "", false
}
