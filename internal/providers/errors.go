// Package providers implements concrete LLMProvider capability-record
// bindings (Anthropic, OpenAI-compatible) over the
// internal/orchestrator.Provider interface, plus the shared retry and error
// classification machinery they all use.
package providers

import (
	"errors"
	"fmt"
	"strings"
)

// FailoverReason classifies why a provider call failed, mirroring the
// teacher's providers.FailoverReason but trimmed to what the retry loop
// actually branches on.
type FailoverReason string

const (
	ReasonTransient    FailoverReason = "transient"
	ReasonRateLimit    FailoverReason = "rate_limit"
	ReasonAuth         FailoverReason = "auth"
	ReasonContentFilter FailoverReason = "content_filter"
	ReasonServerError  FailoverReason = "server_error"
	ReasonUnknown      FailoverReason = "unknown"
)

// IsRetryable reports whether a failure of this kind is worth retrying.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case ReasonTransient, ReasonRateLimit, ReasonServerError:
		return true
	default:
		return false
	}
}

// ProviderError wraps a classified provider-call failure.
type ProviderError struct {
	Provider string
	Reason   FailoverReason
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[provider:%s] %s: %v", e.Provider, e.Reason, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError classifies cause and wraps it.
func NewProviderError(provider string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Reason: ClassifyError(cause), Cause: cause}
}

// ClassifyError applies the same string-contains heuristics the teacher's
// providers.ClassifyError uses, since provider SDKs surface failures as
// plain errors with a descriptive message rather than a typed taxonomy.
func ClassifyError(err error) FailoverReason {
	if err == nil {
		return ReasonUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return ReasonRateLimit
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return ReasonAuth
	case strings.Contains(msg, "content filter"), strings.Contains(msg, "safety"):
		return ReasonContentFilter
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "connection"):
		return ReasonTransient
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"):
		return ReasonServerError
	default:
		return ReasonUnknown
	}
}

// IsRetryable reports whether err (optionally wrapped in a ProviderError)
// should be retried.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason.IsRetryable()
	}
	return ClassifyError(err).IsRetryable()
}

// contextOverflowMarkers are the substrings the spec calls out as signaling
// a ContextLimitError: "input too long" / "maximum context length" /
// "prompt is too long", or an equivalent provider-specific phrase.
var contextOverflowMarkers = []string{
	"input too long",
	"maximum context length",
	"prompt is too long",
	"context length exceeded",
	"context_length_exceeded",
}

// IsContextOverflow reports whether err's message matches one of the known
// context-overflow phrasings (spec §4.2).
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range contextOverflowMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
