package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/apresai/robodebate/internal/app"
	"github.com/apresai/robodebate/internal/config"
	"github.com/apresai/robodebate/internal/llm"
	"github.com/apresai/robodebate/internal/market"
	"github.com/apresai/robodebate/internal/mcpserver"
	"github.com/apresai/robodebate/internal/observability"
	"github.com/apresai/robodebate/internal/pipeline"
)

var version = "1.0.0"

func main() {
	cfg := config.Load()
	logger := observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	logger.Info("Robodebate MCP Server starting...")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := observability.InitTracer(ctx, "robodebate-mcp", version, cfg.Env)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
	} else if tp != nil {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("Tracer shutdown error", "error", err)
			}
		}()
	}

	awsCfg, err := app.LoadAWS(ctx, cfg)
	if err != nil {
		logger.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	if cfg.SecretPrefix != "" {
		config.LoadSecrets(ctx, awsCfg, cfg.SecretPrefix, logger)
		cfg.RefreshLLMKeys()
	}

	client, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		logger.Warn("LLM client unavailable, debate tools will fail", "provider", cfg.LLM.Provider, "error", err)
		client = nil
	}

	trending, closeCache := app.NewTrendingSource(ctx, cfg, logger)
	defer closeCache()

	runner := &pipeline.Runner{
		Source: app.NewFetcher(market.FallbackSecondary, logger),
		Client: client,
		Logger: logger,
	}
	if pub := app.NewPublisher(awsCfg, cfg); pub != nil {
		runner.Publisher = pub
	}

	mcpCfg := mcpserver.DefaultConfig()
	if port, err := strconv.Atoi(os.Getenv("MCP_PORT")); err == nil && port > 0 {
		mcpCfg.Port = port
	}
	mcpCfg.Turns = cfg.Turns
	mcpCfg.Language = cfg.TargetLanguage
	mcpCfg.TurnDelay = cfg.TurnDelay

	srv := mcpserver.New(ctx, mcpCfg, mcpserver.Deps{
		Trending: trending,
		Client:   client,
		KeyEnv:   llm.APIKeyEnv(cfg.LLM.Provider),
		Runner:   runner,
	}, version, logger)

	if err := srv.Start(ctx); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
