// File: cmd/serve.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/conductor/internal/agent"
	"github.com/xkilldash9x/conductor/internal/capability"
	"github.com/xkilldash9x/conductor/internal/llmclient"
	"github.com/xkilldash9x/conductor/internal/observability"
	"github.com/xkilldash9x/conductor/internal/planner"
	"github.com/xkilldash9x/conductor/internal/resolve"
	"github.com/xkilldash9x/conductor/internal/server"
	"github.com/xkilldash9x/conductor/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent orchestration server.",
	Long: `Starts the HTTP and WebSocket surface, wires the capability registry
against the configured document, page and screen surfaces, and serves
conversation turns until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		cfg := appCfg

		llm, err := llmclient.NewClient(cfg.LLM, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize LLM client: %w", err)
		}

		toolset := capability.Toolset{
			Doc:             capability.NewSurfaceClient(cfg.Surfaces.DocumentURL, cfg.Surfaces.RequestTimeout, logger),
			Page:            capability.NewSurfaceClient(cfg.Surfaces.PageURL, cfg.Surfaces.RequestTimeout, logger),
			Screen:          capability.NewSurfaceClient(cfg.Surfaces.ScreenURL, cfg.Surfaces.RequestTimeout, logger),
			Planner:         planner.NewPlanner(llm, cfg.Planner, logger),
			Resolver:        resolve.NewResolver(cfg.Resolver, logger),
			ScrollIncrement: cfg.Resolver.ScrollIncrement,
		}

		registry := capability.NewRegistry(logger)
		capability.RegisterStandard(registry, toolset)

		store := session.NewMemoryStore(cfg.Session, logger)
		controller := agent.NewController(llm, registry, store, cfg.Agent, logger)

		return server.New(cfg.Server, controller, logger).Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
