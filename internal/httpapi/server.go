// Package httpapi serves the trending feed, on-demand debates and the latest
// snapshot over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/apresai/robodebate/internal/llm"
	"github.com/apresai/robodebate/internal/market"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Config wires the server to its collaborators.
type Config struct {
	// Source should use market.FallbackStatic so /trending always answers.
	Source market.Source
	// Client is nil when no provider credential is configured.
	Client llm.Client
	// KeyEnv names the missing credential in 500 responses.
	KeyEnv string

	SnapshotPath string
	Turns        int
	TurnDelay    time.Duration

	// RateLimitPerMinute of zero disables the per-IP limit.
	RateLimitPerMinute int
	// ServiceName enables otelgin spans when set.
	ServiceName string

	Now func() time.Time
}

// Server is the gin application.
type Server struct {
	cfg     Config
	router  *gin.Engine
	limiter *IPRateLimiter
}

func NewServer(cfg Config) *Server {
	if cfg.KeyEnv == "" {
		cfg.KeyEnv = "OPENROUTER_API_KEY"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{cfg: cfg, router: gin.New()}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = NewIPRateLimiter(cfg.RateLimitPerMinute)
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router
	r.HandleMethodNotAllowed = true

	// otelgin first so recovery and logging see the span.
	if s.cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(s.cfg.ServiceName))
	}
	r.Use(Recovery())
	r.Use(Logger())

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	r.GET("/health", s.health)
	r.GET("/trending", s.trending)
	r.GET("/data/debates.json", s.snapshotFile)

	llmRoutes := r.Group("/debate")
	if s.limiter != nil {
		llmRoutes.Use(RateLimit(s.limiter))
	}
	llmRoutes.POST("", s.debate)
	llmRoutes.GET("/stream", s.debateStream)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.limiter != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.limiter.Sweep(time.Hour)
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.InfoContext(shutdownCtx, "shutdown complete")
	return nil
}
