package config

import (
	"os"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/orchestrator"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "miroflow.yaml", `
main_agent:
  max_turns: 5
  llm_provider_config: anthropic
`)

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if w.Current().MainAgent.MaxTurns != 5 {
		t.Fatalf("unexpected initial max_turns: %d", w.Current().MainAgent.MaxTurns)
	}

	reloaded := make(chan *orchestrator.RunConfig, 1)
	go w.Run(func(cfg *orchestrator.RunConfig) {
		reloaded <- cfg
	})

	if err := os.WriteFile(path, []byte(`
main_agent:
  max_turns: 9
  llm_provider_config: anthropic
`), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.MainAgent.MaxTurns != 9 {
			t.Errorf("unexpected reloaded max_turns: %d", cfg.MainAgent.MaxTurns)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestNewWatcherPropagatesInitialLoadError(t *testing.T) {
	if _, err := NewWatcher("", nil); err == nil {
		t.Fatal("expected an error for an empty config path")
	}
}
