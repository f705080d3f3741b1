package orchestrator

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// useMCPToolPattern matches a well-formed inline-XML tool-call block.
// Case-insensitive and tolerant of attributes on the tags, per spec §6.
var useMCPToolPattern = regexp.MustCompile(`(?is)<use_mcp_tool[^>]*?>\s*<server_name[^>]*?>(.*?)</server_name>\s*<tool_name[^>]*?>(.*?)</tool_name>\s*<arguments[^>]*?>\s*([\s\S]*?)\s*</arguments>\s*</use_mcp_tool>`)

// unclosedArgumentsPattern finds an <arguments> tag that opened but never
// found a matching </arguments> before the end of the block or the next tag.
var unclosedArgumentsPattern = regexp.MustCompile(`(?is)<arguments[^>]*?>\s*([\s\S]*?)(?:</use_mcp_tool>|\z)`)

// unclosedOuterPattern finds <use_mcp_tool> opening tags; one with no
// </use_mcp_tool> anywhere after it is a block missing its own closing tag
// entirely (distinct from a missing </arguments>).
var unclosedOuterPattern = regexp.MustCompile(`(?is)<use_mcp_tool[^>]*?>`)

var closeOuterPattern = regexp.MustCompile(`(?i)</use_mcp_tool>`)

// ParseStructuredToolCalls splits a provider's structured tool_calls array
// into good/bad calls, per spec §4.2/§6: function.name is
// "<server>-<tool>" split on the last hyphen, and function.arguments is a
// JSON string.
func ParseStructuredToolCalls(id, name, argumentsJSON string) (ToolCall, *BadToolCall) {
	server, tool, ok := splitQualifiedName(name)
	if !ok {
		return ToolCall{}, &BadToolCall{Error: "malformed tool name: " + name, Raw: argumentsJSON}
	}
	args, err := robustJSONLoads(argumentsJSON)
	if err != nil {
		return ToolCall{}, &BadToolCall{Error: "failed to parse arguments: " + err.Error(), Raw: argumentsJSON}
	}
	return ToolCall{ID: id, ServerName: server, ToolName: tool, Arguments: args}, nil
}

// splitQualifiedName splits "<server>-<tool>" on the last hyphen, the Go
// equivalent of the Python original's name.rsplit("-", maxsplit=1).
func splitQualifiedName(name string) (server, tool string, ok bool) {
	idx := strings.LastIndex(name, "-")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

// ParseInlineToolCalls extracts <use_mcp_tool> blocks from assistant text.
// Lenient: tolerates a missing </arguments> by synthesizing one before the
// next tag opening and retrying once (the one repair strategy found in the
// original source; see DESIGN.md's Open Question resolution).
func ParseInlineToolCalls(text string) ([]ToolCall, []BadToolCall) {
	return parseInlineToolCalls(text, true)
}

func parseInlineToolCalls(text string, allowRepair bool) ([]ToolCall, []BadToolCall) {
	var good []ToolCall
	var bad []BadToolCall

	matches := useMCPToolPattern.FindAllStringSubmatchIndex(text, -1)
	consumed := make([]bool, len(text)+1)
	for _, m := range matches {
		server := strings.TrimSpace(text[m[2]:m[3]])
		tool := strings.TrimSpace(text[m[4]:m[5]])
		argsStr := strings.TrimSpace(text[m[6]:m[7]])
		for i := m[0]; i < m[1] && i < len(consumed); i++ {
			consumed[i] = true
		}

		args, err := robustJSONLoads(argsStr)
		if err != nil {
			bad = append(bad, BadToolCall{Error: "failed to parse arguments: " + err.Error(), Raw: argsStr})
			continue
		}
		good = append(good, ToolCall{ServerName: server, ToolName: tool, Arguments: args})
	}

	// Scan the remainder for an incomplete block: a <use_mcp_tool> or
	// <arguments> opening tag with no matching close, anywhere not already
	// consumed by a well-formed match.
	if repaired, ok := tryRepairUnclosedArguments(text, consumed); ok && allowRepair {
		g2, b2 := parseInlineToolCalls(repaired, false)
		return append(good, g2...), append(bad, b2...)
	}

	for _, loc := range unclosedOuterPattern.FindAllStringIndex(text, -1) {
		if consumed[loc[0]] || closeOuterPattern.MatchString(text[loc[1]:]) {
			continue
		}
		bad = append(bad, BadToolCall{Error: "unclosed use_mcp_tool block", Raw: text[loc[0]:]})
		break
	}

	return good, bad
}

// tryRepairUnclosedArguments looks for an <arguments> tag that never closed
// and splices in a synthetic </arguments> immediately before the next tag
// opening (or end of string), mirroring the one lenient-repair strategy
// found in the original parser.
func tryRepairUnclosedArguments(text string, consumed []bool) (string, bool) {
	openIdx := regexp.MustCompile(`(?is)<arguments[^>]*?>`).FindStringIndex(text)
	if openIdx == nil {
		return "", false
	}
	start := openIdx[0]
	if start < len(consumed) && consumed[start] {
		return "", false
	}
	closeIdx := strings.Index(text, "</arguments>")
	if closeIdx != -1 && closeIdx > openIdx[1] {
		return "", false // already well-formed; nothing to repair
	}

	// Find the next tag opening after the <arguments> tag to splice before.
	rest := text[openIdx[1]:]
	nextTag := regexp.MustCompile(`<`).FindStringIndex(rest)
	insertAt := len(text)
	if nextTag != nil {
		insertAt = openIdx[1] + nextTag[0]
	}
	fixed := text[:insertAt] + "</arguments>" + text[insertAt:]
	return fixed, true
}

func findUnconsumed(pattern *regexp.Regexp, text string, consumed []bool) []int {
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		if loc[0] < len(consumed) && !consumed[loc[0]] {
			return loc
		}
	}
	return nil
}

// robustJSONLoads parses a JSON object string, applying the same fallback
// fixups the original source applies before giving up: single quotes to
// double quotes, Python-style None/True/False to JSON null/true/false.
func robustJSONLoads(s string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out, nil
	}

	fixed := s
	fixed = strings.ReplaceAll(fixed, "None", "null")
	fixed = strings.ReplaceAll(fixed, "True", "true")
	fixed = strings.ReplaceAll(fixed, "False", "false")
	fixed = fixSingleQuotes(fixed)

	var out2 map[string]any
	if err := json.Unmarshal([]byte(fixed), &out2); err == nil {
		return out2, nil
	}
	return nil, errors.New("invalid JSON after repair fixups")
}

// fixSingleQuotes converts a Python-dict-literal-style single-quoted string
// to double quotes, naively: it only fires when no double quotes are
// present at all, avoiding corruption of strings that already mix quote
// styles intentionally.
func fixSingleQuotes(s string) string {
	if strings.Contains(s, `"`) {
		return s
	}
	return strings.ReplaceAll(s, "'", `"`)
}
