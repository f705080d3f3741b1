package orchestrator

import (
	"context"
	"fmt"
	"regexp"
)

// boxedAnswerPattern matches the original source's
// re.search(r"\boxed{([^}]*)}", result): the contents of the first
// \boxed{...} occurrence in a response, not the whole response text.
var boxedAnswerPattern = regexp.MustCompile(`\\boxed\{([^}]*)\}`)

// canGiveUpSummary is the canned string returned once rollback has exhausted
// the transcript down to just the initial system+user messages, ported
// verbatim from the original source's give-up message.
const canGiveUpSummary = "Unable to generate final summary due to persistent network issues. You should try again."

// AnswerType classifies the expected shape of a boxed final answer.
type AnswerType string

const (
	AnswerNumber AnswerType = "number"
	AnswerDate   AnswerType = "date"
	AnswerTime   AnswerType = "time"
	AnswerString AnswerType = "string"
)

// ExtractionConfig gates the optional hints prefix and boxed-answer
// extraction pass (§4.5, §4.6).
type ExtractionConfig struct {
	EnableHints           bool
	EnableBoxedExtraction bool
	ExtractionProvider    Provider // may differ from the main agent's provider
}

// hintsInstruction asks the extraction provider to flag subtleties in the
// task description without attempting to solve it, ported from the original
// source's _o3_extract_hints instruction (orchestrator.py).
const hintsInstruction = "Carefully analyze the following task description without attempting to solve it. " +
	"Identify points that could cause mistakes, ambiguity, or confusion during solving, especially ones affecting " +
	"information gathering or answer accuracy. Be concise and practical; do not invent hidden meanings or traps " +
	"the author did not intend.\n\nTask: %s"

// GenerateHints issues the auxiliary "hints" call described in §4.5, returning
// a short block of pitfalls to prefix onto the task's initial user message.
// Failure is swallowed (ok=false), exactly as the original source logs a
// warning and continues without hints rather than failing the task.
func GenerateHints(ctx context.Context, cfg ExtractionConfig, taskDescription string) (hints string, ok bool) {
	if !cfg.EnableHints || cfg.ExtractionProvider == nil {
		return "", false
	}

	prompt := fmt.Sprintf(hintsInstruction, taskDescription)
	resp, err := cfg.ExtractionProvider.SendRequest(ctx, "", []Message{NewTextMessage(RoleUser, prompt)}, nil)
	if err != nil || resp == nil || resp.Text == "" {
		return "", false
	}
	return resp.Text, true
}

// buildSummaryPrompt parameterises the summary request by whether the loop
// failed and whether this is the main agent or a sub-agent, per §4.6 step 1.
func buildSummaryPrompt(taskDescription string, taskFailed bool, agentType string) string {
	if taskFailed {
		return fmt.Sprintf("You were unable to complete the task normally. Based on everything above, provide your best final summary of progress and findings for the task: %q. Be explicit that the task was not fully completed.", taskDescription)
	}
	if agentType == "main" {
		return fmt.Sprintf("The task is complete. Provide a final, comprehensive summary of your findings and the answer to: %q.", taskDescription)
	}
	return fmt.Sprintf("Summarize your findings for the sub-task: %q. Provide the answer and the detailed supporting information a parent agent would need.", taskDescription)
}

// Summarize runs the rollback-retry summary loop described in §4.6 steps
// 1-4. It mutates history in place (via the returned slice) by appending the
// summary prompt, and on failure, rolling back to a shorter prefix and
// retrying. taskFailed starts at the caller's prior failure state and is
// forced true the first time any rollback occurs.
func Summarize(ctx context.Context, provider Provider, history []Message, taskDescription string, taskFailed bool, agentType string) (summary string, finalHistory []Message, failed bool) {
	for {
		prompt := buildSummaryPrompt(taskDescription, taskFailed, agentType)
		withPrompt := provider.HandleMaxTurnsSummaryPrompt(history, prompt)

		resp, err := provider.SendRequest(ctx, "", withPrompt, nil)
		if err == nil && resp != nil && resp.Text != "" {
			return resp.Text, withPrompt, taskFailed
		}

		// Pop the just-added prompt, then roll back the most recent
		// assistant/user pair.
		rolledBack := withPrompt
		if len(rolledBack) > 0 && rolledBack[len(rolledBack)-1].Role == RoleUser {
			rolledBack = rolledBack[:len(rolledBack)-1]
		}
		rolledBack, _ = RollbackLastPair(rolledBack)
		taskFailed = true

		if len(rolledBack) <= 2 {
			return canGiveUpSummary, rolledBack, true
		}
		history = rolledBack
	}
}

// ExtractBoxedAnswer issues the two auxiliary calls described in §4.6:
// classify the expected answer type, then extract a \boxed{...} answer using
// a type-specific prompt. Both calls use exponential backoff internally (via
// the configured provider's SendRequest); on persistent failure the
// non-extracted summary is returned alone.
func ExtractBoxedAnswer(ctx context.Context, cfg ExtractionConfig, taskDescription, summary string) (boxed string, ok bool) {
	if !cfg.EnableBoxedExtraction || cfg.ExtractionProvider == nil {
		return "", false
	}

	classifyPrompt := fmt.Sprintf("What type of answer does this task expect: number, date, time, or string?\nTask: %s\nSummary: %s\nRespond with exactly one word.", taskDescription, summary)
	classifyResp, err := cfg.ExtractionProvider.SendRequest(ctx, "", []Message{NewTextMessage(RoleUser, classifyPrompt)}, nil)
	if err != nil || classifyResp == nil || classifyResp.Text == "" {
		return "", false
	}
	answerType := AnswerType(normalizeAnswerType(classifyResp.Text))

	extractPrompt := extractionPromptFor(answerType, taskDescription, summary)
	extractResp, err := cfg.ExtractionProvider.SendRequest(ctx, "", []Message{NewTextMessage(RoleUser, extractPrompt)}, nil)
	if err != nil || extractResp == nil || extractResp.Text == "" {
		return "", false
	}

	match := boxedAnswerPattern.FindStringSubmatch(extractResp.Text)
	if match == nil {
		return "", false
	}
	return match[1], true
}

func normalizeAnswerType(text string) string {
	for _, candidate := range []string{"number", "date", "time", "string"} {
		if containsFold(text, candidate) {
			return candidate
		}
	}
	return "string"
}

func containsFold(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if equalFold(haystack[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// extractionPromptFor encodes type-specific formatting rules and common
// pitfalls, per §4.6's "type-specific prompt" requirement. The prompt
// templates here are original to this implementation; the two-call shape
// and retry discipline are grounded on the original source (see DESIGN.md).
func extractionPromptFor(t AnswerType, taskDescription, summary string) string {
	var rules string
	switch t {
	case AnswerNumber:
		rules = "Answer with digits only, no units, no thousands separators, using '.' as decimal point."
	case AnswerDate:
		rules = "Answer in YYYY-MM-DD format."
	case AnswerTime:
		rules = "Answer in 24-hour HH:MM format."
	default:
		rules = "Answer with the shortest exact string that satisfies the task, no surrounding explanation."
	}
	return fmt.Sprintf("Task: %s\nSummary: %s\n%s\nRespond with the final answer wrapped exactly as \\boxed{ANSWER}.", taskDescription, summary, rules)
}
