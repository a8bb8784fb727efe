// stickyboard: AI context assembly and streaming relay for a sticky-note board.
//
// Usage:
//
//	stickyboard serve                       # HTTP API with SSE streaming
//	stickyboard mcp                         # MCP server (stdio transport)
//	stickyboard models set openai --api-base https://api.openai.com/v1 --api-key sk-... --model gpt-4o
//	stickyboard models list
//	stickyboard config init                 # write the default config file
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/HendryAvila/stickyboard/internal/config"
	"github.com/HendryAvila/stickyboard/internal/logging"
	sbserver "github.com/HendryAvila/stickyboard/internal/server"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	logLevel   string
	devLogs    bool

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "stickyboard",
	Short:         "AI context assembly and streaming relay for a sticky-note board",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if devLogs {
			cfg.Log.Development = true
		}

		logger, err = logging.New(logging.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves POST /api/ai/generate (Server-Sent Events), POST /api/ai/context,
GET /api/health and GET /metrics.

Relay tunables, the default provider and the default context depth are
reloaded when the config file changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server (stdio transport)",
	Long: `Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "stickyboard": {
        "command": "stickyboard",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stickyboard v%s\n", sbserver.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&devLogs, "dev", false, "human-readable development logs")

	rootCmd.AddCommand(serveCmd, mcpCmd, modelsCmd, configCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, cleanup, err := sbserver.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Listen, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Serve(ctx, ln) })
	g.Go(func() error {
		if err := config.Watch(ctx, configPath, logger.Named("config"), app.Apply); err != nil {
			// Hot reload is optional; the server keeps running without it.
			logger.Warn("config hot reload disabled", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func runMCP(cmd *cobra.Command, args []string) error {
	app, cleanup, err := sbserver.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// The stdio server manages its own lifecycle and stops on SIGINT/SIGTERM.
	return server.ServeStdio(app.MCPServer())
}

// withStore opens the configured board store for one-shot commands.
func withStore(ctx context.Context, fn func(ctx context.Context, app *sbserver.App) error) error {
	app, cleanup, err := sbserver.New(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, app)
}
