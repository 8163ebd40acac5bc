package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
)

// Config holds process-wide settings read from the environment.
type Config struct {
	Env      string
	LogLevel string
	// LogFormat is "json" or "text".
	LogFormat string

	LLM LLMConfig

	Port               int
	RedisURL           string
	TrendingCacheTTL   time.Duration
	RateLimitPerMinute int

	S3Bucket     string
	CDNBaseURL   string
	AWSRegion    string
	SecretPrefix string // e.g. "/robodebate/"

	SnapshotPath   string
	Turns          int
	TurnDelay      time.Duration
	TargetLanguage string
}

// LLMConfig selects and authenticates the chat-completion provider.
type LLMConfig struct {
	Provider string // openrouter, anthropic, bedrock, gemini
	Model    string
	BaseURL  string

	OpenRouterAPIKey string
	AnthropicAPIKey  string
	GeminiAPIKey     string

	// Referer and Title are sent to OpenRouter for app attribution.
	Referer string
	Title   string
}

// Load reads configuration from the environment. Outside production a local
// .env file is loaded first; variables already set in the environment win.
func Load() Config {
	env := envOr("ENV", "development")
	if env != "production" {
		_ = godotenv.Load(".env")
	}

	return Config{
		Env:       env,
		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),
		LLM: LLMConfig{
			Provider:         strings.ToLower(envOr("LLM_PROVIDER", "openrouter")),
			Model:            os.Getenv("LLM_MODEL"),
			BaseURL:          os.Getenv("LLM_BASE_URL"),
			OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
			AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
			Referer:          envOr("APP_REFERER", "https://proper-prediction-market.vercel.app"),
			Title:            envOr("APP_TITLE", "Proper Prediction Market"),
		},
		Port:               envInt("PORT", 3000),
		RedisURL:           os.Getenv("REDIS_URL"),
		TrendingCacheTTL:   envDuration("TRENDING_CACHE_TTL", 6*time.Hour),
		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 0),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		CDNBaseURL:         envOr("CDN_BASE_URL", ""),
		AWSRegion:          envOr("AWS_REGION", "us-east-1"),
		SecretPrefix:       os.Getenv("SECRET_PREFIX"),
		SnapshotPath:       envOr("SNAPSHOT_PATH", "public/data/debates.json"),
		Turns:              envInt("DEBATE_TURNS", 7),
		TurnDelay:          envDuration("TURN_DELAY", 500*time.Millisecond),
		TargetLanguage:     envOr("TARGET_LANGUAGE", "ko"),
	}
}

// IsProduction reports whether the process runs with ENV=production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// secretEnvVars are the API keys that may live in Secrets Manager.
var secretEnvVars = []string{
	"OPENROUTER_API_KEY",
	"ANTHROPIC_API_KEY",
	"GEMINI_API_KEY",
}

// LoadSecrets fetches API keys from Secrets Manager and sets them as env vars.
// Keys already present in the environment are left alone. A missing secret is
// logged and skipped.
func LoadSecrets(ctx context.Context, cfg aws.Config, prefix string, logger *slog.Logger) {
	client := secretsmanager.NewFromConfig(cfg)

	for _, envVar := range secretEnvVars {
		if os.Getenv(envVar) != "" {
			continue
		}

		secretID := prefix + envVar
		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretID),
		})
		if err != nil {
			logger.InfoContext(ctx, "Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil {
			os.Setenv(envVar, *result.SecretString)
			logger.InfoContext(ctx, "Loaded secret", "secret_id", secretID)
		}
	}
}

// RefreshLLMKeys re-reads provider keys from the environment, e.g. after LoadSecrets.
func (c *Config) RefreshLLMKeys() {
	c.LLM.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	c.LLM.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.LLM.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
