// Package mcpserver exposes trending proposals, triage, quick debates and
// async snapshot generation as MCP tools over streamable HTTP.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/apresai/robodebate/internal/llm"
	"github.com/apresai/robodebate/internal/market"
	"github.com/mark3labs/mcp-go/server"
)

// Config holds server configuration.
type Config struct {
	Port      int
	MaxTasks  int
	Turns     int
	Language  string
	TurnDelay time.Duration
	OutputDir string
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Port:      8000,
		MaxTasks:  2,
		Turns:     7,
		Language:  "ko",
		TurnDelay: 500 * time.Millisecond,
		OutputDir: filepath.Join(os.TempDir(), "robodebate-snapshots"),
	}
}

// Deps are the collaborators the tools call into.
type Deps struct {
	// Trending should use market.FallbackStatic so get_trending always answers.
	Trending market.Source
	Client   llm.Client
	// KeyEnv names the provider key in "not configured" errors.
	KeyEnv string
	Runner Runner
}

// Server is the MCP server.
type Server struct {
	cfg      Config
	mcp      *server.MCPServer
	tasks    *TaskManager
	handlers *Handlers
	log      *slog.Logger
}

// New creates and configures the MCP server. baseCtx bounds background
// snapshot tasks and should be cancelled on shutdown.
func New(baseCtx context.Context, cfg Config, deps Deps, version string, logger *slog.Logger) *Server {
	if deps.KeyEnv == "" {
		deps.KeyEnv = "OPENROUTER_API_KEY"
	}

	store := NewStore()
	taskMgr := NewTaskManager(baseCtx, store, deps.Runner, cfg, logger)
	handlers := NewHandlers(taskMgr, store, deps, cfg, logger)

	mcpServer := server.NewMCPServer(
		"robodebate",
		version,
		server.WithToolCapabilities(true),
	)

	tools := ToolDefs()
	mcpServer.AddTool(tools[0], handlers.HandleGetTrending)
	mcpServer.AddTool(tools[1], handlers.HandleTriageProposal)
	mcpServer.AddTool(tools[2], handlers.HandleQuickDebate)
	mcpServer.AddTool(tools[3], handlers.HandleGenerateSnapshot)
	mcpServer.AddTool(tools[4], handlers.HandleGetSnapshotTask)
	mcpServer.AddTool(tools[5], handlers.HandleListSnapshotTasks)
	mcpServer.AddTool(tools[6], handlers.HandleCancelSnapshotTask)

	return &Server{
		cfg:      cfg,
		mcp:      mcpServer,
		tasks:    taskMgr,
		handlers: handlers,
		log:      logger,
	}
}

// Start serves MCP over HTTP until ctx is cancelled, then shuts down and
// waits for running tasks to wind up.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.log.Info("Starting MCP server", "addr", addr)

	httpServer := server.NewStreamableHTTPServer(s.mcp,
		server.WithStateLess(true),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start(addr) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down MCP server", "running_tasks", s.tasks.Running())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.tasks.Wait()
	return nil
}
