// Package server wires all components and creates the HTTP and MCP servers.
//
// This is the composition root: it creates concrete implementations and
// injects them into the components that depend on interfaces. No business
// logic lives here, only wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/HendryAvila/stickyboard/internal/aitools"
	"github.com/HendryAvila/stickyboard/internal/api"
	"github.com/HendryAvila/stickyboard/internal/assist"
	"github.com/HendryAvila/stickyboard/internal/board"
	"github.com/HendryAvila/stickyboard/internal/config"
	"github.com/HendryAvila/stickyboard/internal/contextgraph"
	"github.com/HendryAvila/stickyboard/internal/provider"
	"github.com/HendryAvila/stickyboard/internal/relay"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags.
var Version = "dev"

// shutdownTimeout bounds how long Shutdown waits for handlers to return.
// Request contexts derive from the serve context, so open streams are
// cancelled as soon as shutdown begins.
const shutdownTimeout = 10 * time.Second

// App holds the wired components.
type App struct {
	Store   *board.Store
	Service *assist.Service

	providers *provider.Resolver
	relay     *relay.Relay
	logger    *zap.Logger
}

// New opens the store and wires the pipeline.
//
// The returned cleanup function closes the store's database connection and
// must be called on shutdown (typically via defer). It is always non-nil.
func New(cfg *config.Config, logger *zap.Logger) (*App, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	storeCfg := board.DefaultConfig()
	storeCfg.DataDir = cfg.DataDir
	store, err := board.New(storeCfg)
	if err != nil {
		return nil, noop, fmt.Errorf("opening board store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("board store close", zap.Error(err))
		}
	}

	providers := provider.NewResolver(store, cfg.ProviderSettings())
	rl := relay.New(relay.NewHTTPOpener(nil), cfg.RelaySettings(), logger.Named("relay"))
	svc := assist.NewService(
		store,
		providers,
		contextgraph.NewResolver(store, logger.Named("contextgraph")),
		rl,
		logger.Named("assist"),
	)
	svc.SetDefaultDepth(cfg.Context.DefaultDepth)

	return &App{
		Store:     store,
		Service:   svc,
		providers: providers,
		relay:     rl,
		logger:    logger,
	}, cleanup, nil
}

// noop is the cleanup returned when nothing was opened.
func noop() {}

// Apply pushes the runtime-tunable parts of cfg into the running
// components. Listen address and data directory need a restart.
func (a *App) Apply(cfg *config.Config) {
	a.providers.Update(cfg.ProviderSettings())
	a.relay.Update(cfg.RelaySettings())
	a.Service.SetDefaultDepth(cfg.Context.DefaultDepth)
	a.logger.Info("runtime settings applied",
		zap.String("default_provider", cfg.DefaultProvider),
		zap.Int("default_depth", a.Service.DefaultDepth()),
		zap.Duration("idle_timeout", cfg.Relay.IdleTimeout),
	)
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return api.NewRouter(a.Service, a.logger.Named("http"))
}

// MCPServer creates the MCP server with the board tools registered.
func (a *App) MCPServer() *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(
		"stickyboard",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(serverInstructions),
	)

	contextTool := aitools.NewContextTool(a.Service)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	generateTool := aitools.NewGenerateTool(a.Service)
	s.AddTool(generateTool.Definition(), generateTool.Handle)

	return s
}

// Serve runs the HTTP API on ln until ctx ends, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: event streams are bounded by the relay idle timeout.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

const serverInstructions = `You have access to stickyboard, a sticky-note board with AI assistance.

Notes are linked by directed connections: a connection from A to B means A informs B.
When you ask about a note, its ancestors (the notes that lead into it) are sent to the
model as prior conversation, most distant first.

- board_context: inspect which ancestor notes a note would pull in, grouped by distance.
- board_generate: ask the configured model a question, optionally in the context of a note.`
