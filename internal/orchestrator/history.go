package orchestrator

// compactPlaceholder replaces the content of a truncated tool-result message.
// Kept short and unmistakable so a model re-reading history recognizes it
// as elided rather than as real tool output.
const compactPlaceholder = "[earlier tool output omitted]"

// isToolProducing reports whether a message carries tool-result content: a
// RoleTool message in the structured dialect, or a RoleUser message marked
// IsToolResult — the merged inline-dialect tool-result block built by
// UpdateHistoryInline.
func isToolProducing(m Message) bool {
	return m.Role == RoleTool || (m.Role == RoleUser && m.IsToolResult)
}

// Compact returns a copy of history where all but the first and the last k
// tool-result messages have their content replaced by a fixed placeholder.
// k = -1 means no compaction; k = 0 keeps only the first tool-result message
// verbatim. The first tool-producing message is always retained verbatim
// since it typically carries the user's original task framing.
func Compact(history []Message, k int) []Message {
	if k < 0 {
		return history
	}

	out := make([]Message, len(history))
	copy(out, history)

	var toolIdx []int
	for i, m := range out {
		if isToolProducing(m) {
			toolIdx = append(toolIdx, i)
		}
	}
	if len(toolIdx) == 0 {
		return out
	}

	keep := map[int]bool{toolIdx[0]: true}
	if k > 0 {
		start := len(toolIdx) - k
		if start < 1 {
			start = 1
		}
		for _, idx := range toolIdx[start:] {
			keep[idx] = true
		}
	}

	for _, idx := range toolIdx {
		if keep[idx] {
			continue
		}
		clone := out[idx]
		clone.ContentPlain = compactPlaceholder
		clone.Parts = nil
		out[idx] = clone
	}
	return out
}

// RollbackLastPair pops a trailing user message if there is one, then pops
// the entry that is now last if it is an assistant message (whether or not a
// user message was popped first), restoring a well-formed prefix before a
// summary retry. Returns true iff at least one entry was removed.
func RollbackLastPair(history []Message) ([]Message, bool) {
	if len(history) == 0 {
		return history, false
	}
	removed := false
	out := history
	if out[len(out)-1].Role == RoleUser {
		out = out[:len(out)-1]
		removed = true
	}
	if len(out) > 0 && out[len(out)-1].Role == RoleAssistant {
		out = out[:len(out)-1]
		removed = true
	}
	return out, removed
}

// PrependOrReplaceSystem replaces the system prompt if history already
// starts with one, otherwise inserts it at position 0.
func PrependOrReplaceSystem(history []Message, prompt string) []Message {
	sysMsg := NewTextMessage(RoleSystem, prompt)
	if len(history) > 0 && history[0].Role == RoleSystem {
		out := make([]Message, len(history))
		copy(out, history)
		out[0] = sysMsg
		return out
	}
	out := make([]Message, 0, len(history)+1)
	out = append(out, sysMsg)
	out = append(out, history...)
	return out
}

// EstimateTokens is a deterministic, BPE-shaped approximation used only for
// headroom checks, never for billing: roughly one token per four characters,
// with a minimum of one token per word to avoid under-counting dense
// punctuation-heavy text (tool-call JSON, code).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	byChars := len(text) / 4
	words := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inWord {
			words++
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	if words > byChars {
		return words
	}
	return byChars
}
