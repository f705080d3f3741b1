package providers

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/internal/orchestrator"
)

// ToolDialect selects which wire form OpenAIProvider encodes/decodes tool
// calls with (spec §6): the provider's structured tool_calls array, or the
// inline <use_mcp_tool> tag form some chat-completion-compatible backends
// (notably models served through OpenRouter) emit as plain text instead.
// Grounded on original_source's split between claude_openrouter_client.py
// (inline tags) and gpt_openai_client.py (structured calls) — both ride the
// same chat-completions request shape, differing only in this one respect.
type ToolDialect int

const (
	DialectStructured ToolDialect = iota
	DialectInlineXML
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	Dialect      ToolDialect
	Retry        RetryConfig
}

// OpenAIProvider implements orchestrator.Provider over an OpenAI-compatible
// chat-completions endpoint. Grounded on
// internal/agent/providers/openai.go's client construction and message
// conversion (convertToOpenAIMessages/convertToOpenAITools), collapsed to a
// single blocking call per the same rationale as AnthropicProvider.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	maxTok  int
	dialect ToolDialect
	retry   RetryConfig
}

// NewOpenAIProvider builds a provider from cfg.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.DefaultModel,
		maxTok:  cfg.MaxTokens,
		dialect: cfg.Dialect,
		retry:   cfg.Retry,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) SendRequest(ctx context.Context, systemPrompt string, history []orchestrator.Message, tools []orchestrator.ToolDefinition) (*orchestrator.Response, error) {
	messages := p.convertMessages(systemPrompt, history)

	req := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: p.maxTok,
	}
	if p.dialect == DialectStructured && len(tools) > 0 {
		req.Tools = p.convertTools(tools)
	}

	resp, err := Retry(ctx, p.retry, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		r, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return openai.ChatCompletionResponse{}, NewProviderError(p.Name(), err)
		}
		return r, nil
	})
	if err != nil {
		if IsContextOverflow(err) {
			return nil, &orchestrator.ContextLimitError{Reason: err.Error()}
		}
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}
	choice := resp.Choices[0]

	out := &orchestrator.Response{
		Text:            choice.Message.Content,
		FinishReasonRaw: string(choice.FinishReason),
		Usage: orchestrator.TokenUsage{
			Input:  int64(resp.Usage.PromptTokens),
			Output: int64(resp.Usage.CompletionTokens),
		},
	}
	if p.dialect == DialectStructured {
		for _, tc := range choice.Message.ToolCalls {
			call, bad := ParseStructuredCall(tc.ID, tc.Function.Name, tc.Function.Arguments)
			if bad == nil {
				out.ToolCalls = append(out.ToolCalls, call)
			}
		}
	}
	if choice.FinishReason == "length" && out.Text == "" {
		return nil, &orchestrator.ContextLimitError{Reason: "finish_reason=length with empty content"}
	}
	return out, nil
}

// ParseStructuredCall exposes orchestrator.ParseStructuredToolCalls under
// this package so provider bindings needn't import orchestrator twice for
// one helper; it is a thin re-export, not independent logic.
func ParseStructuredCall(id, name, argumentsJSON string) (orchestrator.ToolCall, *orchestrator.BadToolCall) {
	return orchestrator.ParseStructuredToolCalls(id, name, argumentsJSON)
}

func (p *OpenAIProvider) ParseResponse(resp *orchestrator.Response) (text string, shouldBreak bool) {
	return resp.Text, false
}

func (p *OpenAIProvider) ExtractToolCalls(resp *orchestrator.Response, assistantText string) ([]orchestrator.ToolCall, []orchestrator.BadToolCall) {
	if p.dialect == DialectStructured {
		return resp.ToolCalls, nil
	}
	return orchestrator.ParseInlineToolCalls(assistantText)
}

func (p *OpenAIProvider) UpdateHistoryWithTools(history []orchestrator.Message, assistantText string, calls []orchestrator.ToolCall, results []orchestrator.DispatchResult, truncated bool) []orchestrator.Message {
	if p.dialect == DialectStructured {
		return orchestrator.UpdateHistoryStructured(history, assistantText, calls, results)
	}
	return orchestrator.UpdateHistoryInline(history, assistantText, results, truncated)
}

func (p *OpenAIProvider) FitsWithinContext(history []orchestrator.Message, maxContextLength, maxOutputTokens int) bool {
	return fitsWithinContext(history, maxContextLength, maxOutputTokens)
}

func (p *OpenAIProvider) HandleMaxTurnsSummaryPrompt(history []orchestrator.Message, summaryPrompt string) []orchestrator.Message {
	if len(history) > 0 && history[len(history)-1].Role == orchestrator.RoleUser {
		merged := make([]orchestrator.Message, len(history)-1)
		copy(merged, history[:len(history)-1])
		last := history[len(history)-1]
		merged = append(merged, orchestrator.NewTextMessage(orchestrator.RoleUser, last.Text()+"\n\n"+summaryPrompt))
		return merged
	}
	return append(append([]orchestrator.Message{}, history...), orchestrator.NewTextMessage(orchestrator.RoleUser, summaryPrompt))
}

func (p *OpenAIProvider) convertMessages(systemPrompt string, history []orchestrator.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if systemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		switch m.Role {
		case orchestrator.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Text()})
		case orchestrator.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text()})
		case orchestrator.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text()}
			for _, tc := range m.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Arguments)
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.ServerName + "-" + tc.ToolName,
						Arguments: string(argsJSON),
					},
				})
			}
			out = append(out, msg)
		case orchestrator.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Text(),
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func (p *OpenAIProvider) convertTools(defs []orchestrator.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, len(defs))
	for i, d := range defs {
		var params map[string]any
		_ = json.Unmarshal(d.Schema, &params)
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.QualifiedName(),
				Description: d.Description,
				Parameters:  params,
			},
		}
	}
	return out
}
