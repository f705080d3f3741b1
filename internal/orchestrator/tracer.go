package orchestrator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// TracerOption configures a Tracer at construction, following the teacher's
// functional-options style for its own trace plugin.
type TracerOption func(*Tracer)

// WithLogger overrides the logger used for swallowed I/O failures.
func WithLogger(logger *slog.Logger) TracerOption {
	return func(t *Tracer) { t.logger = logger }
}

// Tracer implements C7: an append-only step log plus a periodic atomic
// snapshot of the full TaskTrace. Save never raises — any I/O failure is
// logged and swallowed, per spec §7's TracerIO row.
type Tracer struct {
	mu       sync.Mutex
	path     string
	logger   *slog.Logger
	trace    TaskTrace
	current  string // name of the currently-open sub-agent session, if any
}

// NewTracer creates a tracer that snapshots to path on every Save. path may
// be empty to disable persistence (Save becomes a no-op beyond in-memory
// bookkeeping), useful for tests.
func NewTracer(taskID, path string, opts ...TracerOption) *Tracer {
	t := &Tracer{
		path:   path,
		logger: slog.Default(),
		trace: TaskTrace{
			TaskID:      taskID,
			StartTime:   time.Now(),
			SubSessions: map[string][]Message{},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LogStep appends one StepRecord to the step log.
func (t *Tracer) LogStep(name, message string, status StepStatus, metadata map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trace.StepLog = append(t.trace.StepLog, StepRecord{
		StepName:  name,
		Message:   message,
		Timestamp: time.Now(),
		Status:    status,
		Metadata:  metadata,
	})
}

// StartSubAgentSession brackets the tracer's notion of the current
// sub-agent. Concurrent sub-agents are disallowed by design (spec §4.7); a
// second call before EndSubAgentSession indicates a caller bug in the loop's
// synchronous-recursion invariant, not a recoverable runtime condition.
func (t *Tracer) StartSubAgentSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != "" {
		panic(fmt.Sprintf("orchestrator: sub-agent session %q started while %q is still open", sessionID, t.current))
	}
	t.current = sessionID
}

// EndSubAgentSession records the finished sub-agent's history and clears the
// tracer's current-session marker.
func (t *Tracer) EndSubAgentSession(sessionID string, history []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trace.SubSessions[sessionID] = history
	t.current = ""
}

// UpdateMainHistory replaces the recorded main-agent transcript.
func (t *Tracer) UpdateMainHistory(history []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trace.MainHistory = history
}

// Finish sets the final status, end time, and boxed answer, then saves.
func (t *Tracer) Finish(status TaskStatus, boxedAnswer string) {
	t.mu.Lock()
	t.trace.Status = status
	t.trace.EndTime = time.Now()
	t.trace.FinalBoxedAnswer = boxedAnswer
	t.mu.Unlock()
	t.Save()
}

// Trace returns a copy of the current trace snapshot.
func (t *Tracer) Trace() TaskTrace {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trace
}

// Save atomically persists the full TaskTrace as JSON. Idempotent; any I/O
// failure is logged and swallowed rather than returned, per spec §7.
func (t *Tracer) Save() {
	if t.path == "" {
		return
	}
	t.mu.Lock()
	snapshot := t.trace
	t.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.logger.Error("tracer: failed to marshal trace", "error", err)
		return
	}

	tmp := t.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		t.logger.Error("tracer: failed to open trace file", "error", err)
		return
	}
	if _, err := f.Write(data); err != nil {
		t.logger.Error("tracer: failed to write trace", "error", err)
		f.Close()
		return
	}
	if err := f.Sync(); err != nil {
		t.logger.Warn("tracer: fsync failed", "error", err)
	}
	if err := f.Close(); err != nil {
		t.logger.Error("tracer: failed to close trace file", "error", err)
		return
	}
	if err := os.Rename(tmp, t.path); err != nil {
		t.logger.Error("tracer: failed to rename trace file into place", "error", err)
	}
}
