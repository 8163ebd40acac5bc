// Package app assembles the runtime collaborators shared by the CLI, the MCP
// server and the scheduled lambda from a loaded config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/apresai/robodebate/internal/config"
	"github.com/apresai/robodebate/internal/market"
	"github.com/apresai/robodebate/internal/snapshot"
)

// LoadAWS loads the default AWS config for the configured region with tracing
// middleware attached.
func LoadAWS(ctx context.Context, cfg config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return awsCfg, nil
}

// NewPublisher returns an S3 publisher for the configured bucket, or nil when
// no bucket is set.
func NewPublisher(awsCfg aws.Config, cfg config.Config) *snapshot.S3Publisher {
	if cfg.S3Bucket == "" {
		return nil
	}
	return snapshot.NewS3Publisher(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.CDNBaseURL)
}

// NewFetcher builds the market fetcher with the given fallback depth.
func NewFetcher(depth market.FallbackDepth, logger *slog.Logger) *market.Fetcher {
	return market.NewFetcher(
		market.WithHTTPClient(&http.Client{Timeout: 15 * time.Second}),
		market.WithFallbackDepth(depth),
		market.WithLogger(logger),
	)
}

// NewTrendingSource wraps a static-fallback fetcher in the trending cache:
// Redis when REDIS_URL is set and reachable, otherwise process memory. The
// returned close func releases the Redis connection.
func NewTrendingSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (market.Source, func() error) {
	fetcher := NewFetcher(market.FallbackStatic, logger)
	key := market.TrendingCacheKey(market.FallbackStatic)
	noop := func() error { return nil }

	if cfg.RedisURL != "" {
		rc, err := market.NewRedisCacheFromURL(ctx, cfg.RedisURL)
		if err == nil {
			logger.Info("Trending cache using Redis")
			return market.NewCachedSource(fetcher, rc, key, cfg.TrendingCacheTTL, logger), rc.Close
		}
		logger.Warn("Redis unavailable, using in-memory trending cache", "error", err)
	}
	return market.NewCachedSource(fetcher, market.NewMemoryCache(), key, cfg.TrendingCacheTTL, logger), noop
}
