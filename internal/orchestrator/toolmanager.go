package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ToolServer is the uniform interface every tool server implements, whatever
// its transport. The only implementation in this tree is the in-process
// CalculatorServer; there is no transport-specific handle type.
type ToolServer interface {
	Name() string
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// BrowserSession is the long-lived session kept alive for the duration of a
// task when a "playwright" tool server is configured (§4.1). It is shared
// across calls within one task but never across tasks. The ToolManager does
// not serialize calls to it: Browser hands out the session itself.
type BrowserSession interface {
	Fetch(ctx context.Context, url string) (markdown string, err error)
	Close() error
}

// blacklistEntry identifies one (server, tool) pair the manager refuses to
// list or execute regardless of what the server advertises.
type blacklistEntry struct {
	Server, Tool string
}

// protectedURLSubstrings are dataset URL fragments the scrape policy filter
// refuses to fetch, returning a refusal message rather than an error so the
// agent can adapt its approach instead of treating it as a transient
// failure. Ported from the original source's
// _is_huggingface_dataset_or_space_url, which checks substring containment
// (not a URL prefix, since scheme/host casing and query strings vary).
var protectedURLSubstrings = []string{
	"huggingface.co/datasets",
	"huggingface.co/spaces",
}

const toolCallTimeout = 600 * time.Second

// ToolManager implements C1: tool discovery and dispatch across an arbitrary
// number of tool servers, tolerant of individual server failures.
type ToolManager struct {
	mu         sync.Mutex
	servers    []ToolServer
	blacklist  map[blacklistEntry]bool
	browser    BrowserSession
	httpFetch  func(ctx context.Context, url string) (string, error)
	logger     *slog.Logger
}

// NewToolManager builds a manager over the given servers. browser may be nil
// if no playwright server is configured; httpFetch backs the scrape-tool
// fallback path and may be nil to disable it.
func NewToolManager(servers []ToolServer, blacklist []blacklistEntry, browser BrowserSession, httpFetch func(context.Context, string) (string, error), logger *slog.Logger) *ToolManager {
	if logger == nil {
		logger = slog.Default()
	}
	bl := make(map[blacklistEntry]bool, len(blacklist))
	for _, e := range blacklist {
		bl[e] = true
	}
	return &ToolManager{servers: servers, blacklist: bl, browser: browser, httpFetch: httpFetch, logger: logger}
}

// ListTools connects to every configured server and returns the union of
// their catalogs, minus blacklisted entries. A server that fails to respond
// contributes nothing but never aborts assembly of the rest (§4.1).
func (m *ToolManager) ListTools(ctx context.Context) []ToolDefinition {
	var all []ToolDefinition
	for _, srv := range m.servers {
		defs, err := srv.ListTools(ctx)
		if err != nil {
			m.logger.Warn("tool server catalog fetch failed", "server", srv.Name(), "error", err)
			continue
		}
		for _, d := range defs {
			if m.blacklist[blacklistEntry{d.ServerName, d.ToolName}] {
				continue
			}
			all = append(all, d)
		}
	}
	return all
}

// CallTool invokes one tool under a hard timeout, applying policy filters
// before dispatch and normalizing empty output into an explanatory result.
func (m *ToolManager) CallTool(ctx context.Context, server, name string, args map[string]any) (ToolResult, error) {
	if refusal, refused := m.checkPolicy(server, name, args); refused {
		return NewOKResult(refusal), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
	defer cancel()

	srv := m.find(server)
	if srv == nil {
		return ToolResult{}, fmt.Errorf("unknown tool server %q", server)
	}

	text, err := srv.CallTool(callCtx, name, args)
	if err != nil {
		if name == "scrape" && m.httpFetch != nil {
			if url, ok := args["url"].(string); ok {
				if fallback, fbErr := m.httpFetch(callCtx, url); fbErr == nil {
					return NewOKResult(fallback), nil
				}
			}
		}
		return ToolResult{}, err
	}
	return NewOKResult(text), nil
}

func (m *ToolManager) find(server string) ToolServer {
	for _, srv := range m.servers {
		if srv.Name() == server {
			return srv
		}
	}
	return nil
}

// checkPolicy applies the small set of static refusal filters described in
// §4.1: scraping a protected dataset URL is refused, never erred, so the
// model sees an adaptable message rather than a retryable failure.
func (m *ToolManager) checkPolicy(server, name string, args map[string]any) (refusal string, refused bool) {
	if name != "scrape" {
		return "", false
	}
	url, _ := args["url"].(string)
	for _, substr := range protectedURLSubstrings {
		if strings.Contains(url, substr) {
			return "refused: this URL hosts a protected benchmark dataset and cannot be scraped", true
		}
	}
	return "", false
}

// Browser returns the task's shared browser session, lazily usable by tools
// that need it. Callers must not call it concurrently from multiple
// goroutines; the manager itself is only ever driven by one task at a time
// (§5).
func (m *ToolManager) Browser() BrowserSession {
	return m.browser
}

// Close releases the browser session, if one was opened.
func (m *ToolManager) Close() error {
	if m.browser != nil {
		return m.browser.Close()
	}
	return nil
}
