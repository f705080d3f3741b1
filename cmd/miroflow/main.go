// Command miroflow runs a single MiroFlow task end to end: it loads a
// RunConfig, constructs the configured LLM provider and tool manager, and
// drives the Orchestrator's run_task operation to completion.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/providers"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "miroflow",
		Short: "Run a MiroFlow agent task",
	}
	root.AddCommand(buildRunCmd())
	return root
}

func buildRunCmd() *cobra.Command {
	var (
		task        string
		file        string
		configPath  string
		traceOut    string
		jsonLogs    bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one task and print its final summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return fmt.Errorf("--task is required")
			}

			logger := buildLogger(jsonLogs)

			cfg, err := config.LoadRunConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			provider, err := buildProvider(*cfg)
			if err != nil {
				return fmt.Errorf("build provider: %w", err)
			}

			extractionProvider, err := buildExtractionProvider(*cfg, provider)
			if err != nil {
				return fmt.Errorf("build extraction provider: %w", err)
			}

			calculator, err := orchestrator.NewCalculatorServer()
			if err != nil {
				return fmt.Errorf("build calculator tool: %w", err)
			}
			toolMgr := orchestrator.NewToolManager([]orchestrator.ToolServer{calculator}, nil, nil, nil, logger)

			metrics := orchestrator.NewMetrics(prometheus.DefaultRegisterer)
			if metricsAddr != "" {
				go serveMetrics(metricsAddr, logger)
			}

			orch := &orchestrator.Orchestrator{
				ToolManager:        toolMgr,
				Provider:           provider,
				Config:             *cfg,
				Logger:             logger,
				TracePath:          traceOut,
				Metrics:            metrics,
				ExtractionProvider: extractionProvider,
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			result, err := orch.RunTask(ctx, uuid.NewString(), task, file)
			if err != nil {
				return fmt.Errorf("run task: %w", err)
			}

			fmt.Println(result.FinalSummary)
			if result.BoxedAnswer != "" {
				fmt.Println()
				fmt.Println(result.BoxedAnswer)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "task description (required)")
	cmd.Flags().StringVar(&file, "file", "", "optional attached file path")
	cmd.Flags().StringVar(&configPath, "config", "miroflow.yaml", "path to RunConfig YAML/JSON5")
	cmd.Flags().StringVar(&traceOut, "trace-out", "", "path to write the task trajectory JSON")
	cmd.Flags().BoolVar(&jsonLogs, "json-logs", true, "emit structured JSON logs")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

func buildLogger(jsonLogs bool) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// buildProvider selects a concrete binding from environment-populated
// credentials, per the Design Note that environment is only a
// default-population source at startup, never read mid-task.
func buildProvider(cfg orchestrator.RunConfig) (orchestrator.Provider, error) {
	switch cfg.MainAgent.LLMProviderConfig {
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			DefaultModel: os.Getenv("OPENAI_MODEL"),
		})
	default:
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       os.Getenv("ANTHROPIC_API_KEY"),
			DefaultModel: os.Getenv("ANTHROPIC_MODEL"),
		})
	}
}

// buildExtractionProvider builds the provider backing the hints and
// boxed-answer auxiliary calls (§4.5, §4.6) when
// RunConfig.Extraction.ExtractionModel names a distinct model, reusing the
// main provider's family and credentials. An empty ExtractionModel reuses
// the main provider unchanged.
func buildExtractionProvider(cfg orchestrator.RunConfig, main orchestrator.Provider) (orchestrator.Provider, error) {
	model := cfg.Extraction.ExtractionModel
	if model == "" {
		return main, nil
	}
	switch cfg.MainAgent.LLMProviderConfig {
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			DefaultModel: model,
		})
	default:
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       os.Getenv("ANTHROPIC_API_KEY"),
			DefaultModel: model,
		})
	}
}
