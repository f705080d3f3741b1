package providers

import (
	"github.com/haasonsaas/nexus/internal/orchestrator"
)

// contextBufferFactor scales the headroom estimate to leave margin for
// tokenizer drift between our estimator and the provider's real one (spec
// §4.5: "scaled by a 1.2 buffer").
const contextBufferFactor = 1.2

// avgSummaryPromptTokens approximates the length of the synthetic summary
// prompt the headroom guard must reserve room for (spec §4.5: "simulate the
// worst case by adding a summary prompt of average length").
const avgSummaryPromptTokens = 400

// fitsWithinContext sums EstimateTokens over every message in history (not
// the provider-reported counts of the last call), adds
// avgSummaryPromptTokens and maxOutputTokens, scales the total by
// contextBufferFactor, and compares it against maxContextLength (spec
// §4.5). Shared by every
// provider binding since the estimator itself is provider-agnostic.
func fitsWithinContext(history []orchestrator.Message, maxContextLength, maxOutputTokens int) bool {
	if maxContextLength <= 0 {
		return true // unbounded
	}
	total := 0
	for _, m := range history {
		total += orchestrator.EstimateTokens(m.Text())
	}
	estimate := float64(total+avgSummaryPromptTokens+maxOutputTokens) * contextBufferFactor
	return int(estimate) <= maxContextLength
}
