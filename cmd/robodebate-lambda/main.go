//go:build lambda.norpc

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/apresai/robodebate/internal/app"
	"github.com/apresai/robodebate/internal/config"
	"github.com/apresai/robodebate/internal/llm"
	"github.com/apresai/robodebate/internal/market"
	"github.com/apresai/robodebate/internal/observability"
	"github.com/apresai/robodebate/internal/pipeline"
)

// outputPath is the only writable location inside the Lambda sandbox.
const outputPath = "/tmp/debates.json"

var (
	cfg    config.Config
	log    *slog.Logger
	runner *pipeline.Runner
)

func init() {
	cfg = config.Load()
	log = observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.S3Bucket == "" {
		log.Error("S3_BUCKET environment variable is required")
		os.Exit(1)
	}

	ctx := context.Background()
	awsCfg, err := app.LoadAWS(ctx, cfg)
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	if cfg.SecretPrefix != "" {
		config.LoadSecrets(ctx, awsCfg, cfg.SecretPrefix, log)
		cfg.RefreshLLMKeys()
	}

	client, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		log.Error("Failed to create LLM client", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}

	runner = &pipeline.Runner{
		Source:    app.NewFetcher(market.FallbackSecondary, log),
		Client:    client,
		Publisher: app.NewPublisher(awsCfg, cfg),
		Logger:    log,
	}
}

func main() {
	lambda.Start(handler)
}

type response struct {
	Proposals   int    `json:"proposals"`
	GeneratedAt string `json:"generatedAt"`
	URL         string `json:"url"`
}

func handler(ctx context.Context, evt events.CloudWatchEvent) (response, error) {
	log.InfoContext(ctx, "Scheduled snapshot run", "event_id", evt.ID, "source", evt.Source)

	res, err := runner.Run(ctx, pipeline.Options{
		Output:    outputPath,
		Turns:     cfg.Turns,
		Language:  cfg.TargetLanguage,
		TurnDelay: cfg.TurnDelay,
		Publish:   true,
	})
	if err != nil {
		return response{}, fmt.Errorf("snapshot run: %w", err)
	}

	return response{
		Proposals:   len(res.Snapshot.Proposals),
		GeneratedAt: res.Snapshot.GeneratedAt,
		URL:         res.URL,
	}, nil
}
