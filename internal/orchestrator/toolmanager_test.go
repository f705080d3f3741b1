package orchestrator

import (
	"context"
	"errors"
	"testing"
)

type fakeServer struct {
	name    string
	defs    []ToolDefinition
	listErr error
	callFn  func(ctx context.Context, name string, args map[string]any) (string, error)
}

func (f *fakeServer) Name() string { return f.name }

func (f *fakeServer) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.defs, nil
}

func (f *fakeServer) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	return f.callFn(ctx, name, args)
}

func TestListToolsToleratesServerFailure(t *testing.T) {
	good := &fakeServer{name: "good", defs: []ToolDefinition{{ServerName: "good", ToolName: "ping"}}}
	bad := &fakeServer{name: "bad", listErr: errors.New("connection refused")}

	mgr := NewToolManager([]ToolServer{bad, good}, nil, nil, nil, nil)
	defs := mgr.ListTools(context.Background())

	if len(defs) != 1 || defs[0].ToolName != "ping" {
		t.Fatalf("expected the healthy server's catalog despite the other failing, got %+v", defs)
	}
}

func TestListToolsFiltersBlacklist(t *testing.T) {
	srv := &fakeServer{name: "s", defs: []ToolDefinition{
		{ServerName: "s", ToolName: "ok"},
		{ServerName: "s", ToolName: "forbidden"},
	}}
	mgr := NewToolManager([]ToolServer{srv}, []blacklistEntry{{Server: "s", Tool: "forbidden"}}, nil, nil, nil)

	defs := mgr.ListTools(context.Background())
	if len(defs) != 1 || defs[0].ToolName != "ok" {
		t.Fatalf("expected blacklisted tool filtered out, got %+v", defs)
	}
}

func TestCallToolReturnsOKResult(t *testing.T) {
	srv := &fakeServer{name: "s", callFn: func(ctx context.Context, name string, args map[string]any) (string, error) {
		return "42", nil
	}}
	mgr := NewToolManager([]ToolServer{srv}, nil, nil, nil, nil)

	res, err := mgr.CallTool(context.Background(), "s", "calc", nil)
	if err != nil || !res.OK || res.Text != "42" {
		t.Fatalf("unexpected result: %+v err=%v", res, err)
	}
}

func TestCallToolUnknownServerErrors(t *testing.T) {
	mgr := NewToolManager(nil, nil, nil, nil, nil)
	_, err := mgr.CallTool(context.Background(), "missing", "x", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown server")
	}
}

func TestCallToolFallsBackToScrapeOnError(t *testing.T) {
	srv := &fakeServer{name: "web", callFn: func(ctx context.Context, name string, args map[string]any) (string, error) {
		return "", errors.New("server-side scrape failed")
	}}
	fetch := func(ctx context.Context, url string) (string, error) {
		return "fallback markdown for " + url, nil
	}
	mgr := NewToolManager([]ToolServer{srv}, nil, nil, fetch, nil)

	res, err := mgr.CallTool(context.Background(), "web", "scrape", map[string]any{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("expected the fallback to absorb the error, got %v", err)
	}
	if !res.OK || res.Text != "fallback markdown for https://example.com" {
		t.Fatalf("unexpected fallback result: %+v", res)
	}
}

func TestCallToolScrapeRefusalIsOKNotError(t *testing.T) {
	cases := []string{
		"https://huggingface.co/datasets/gsm8k",
		"https://huggingface.co/spaces/some/demo",
	}
	for _, url := range cases {
		srv := &fakeServer{name: "web", callFn: func(ctx context.Context, name string, args map[string]any) (string, error) {
			t.Fatal("refused calls must never reach the underlying server")
			return "", nil
		}}
		mgr := NewToolManager([]ToolServer{srv}, nil, nil, nil, nil)

		res, err := mgr.CallTool(context.Background(), "web", "scrape", map[string]any{"url": url})
		if err != nil {
			t.Fatalf("a policy refusal must be an ok result, not an error: %v", err)
		}
		if !res.OK {
			t.Fatalf("refusal must be reported as ToolResult.ok per the policy design, url=%s", url)
		}
	}
}

func TestCallToolScrapeAllowsUnprotectedURL(t *testing.T) {
	srv := &fakeServer{name: "web", callFn: func(ctx context.Context, name string, args map[string]any) (string, error) {
		return "page content", nil
	}}
	mgr := NewToolManager([]ToolServer{srv}, nil, nil, nil, nil)

	res, err := mgr.CallTool(context.Background(), "web", "scrape", map[string]any{"url": "https://example.com/article"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK || res.Text != "page content" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
