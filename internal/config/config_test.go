package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"LLM_PROVIDER", "PORT", "DEBATE_TURNS", "TURN_DELAY", "TARGET_LANGUAGE",
		"TRENDING_CACHE_TTL", "SNAPSHOT_PATH", "RATE_LIMIT_PER_MINUTE",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("ENV", "production")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "openrouter", cfg.LLM.Provider)
	assert.Equal(t, "Proper Prediction Market", cfg.LLM.Title)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 7, cfg.Turns)
	assert.Equal(t, 500*time.Millisecond, cfg.TurnDelay)
	assert.Equal(t, "ko", cfg.TargetLanguage)
	assert.Equal(t, 6*time.Hour, cfg.TrendingCacheTTL)
	assert.Equal(t, "public/data/debates.json", cfg.SnapshotPath)
	assert.Zero(t, cfg.RateLimitPerMinute)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("PORT", "8080")
	t.Setenv("DEBATE_TURNS", "4")
	t.Setenv("TURN_DELAY", "2s")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")

	cfg := Load()

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 4, cfg.Turns)
	assert.Equal(t, 2*time.Second, cfg.TurnDelay)
	assert.Equal(t, "sk-or-test", cfg.LLM.OpenRouterAPIKey)
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func(t *testing.T)
	}{
		{"bad int", "seven", func(t *testing.T) {
			assert.Equal(t, 7, envInt("X_TEST_VALUE", 7))
		}},
		{"bad duration", "soon", func(t *testing.T) {
			assert.Equal(t, time.Minute, envDuration("X_TEST_VALUE", time.Minute))
		}},
		{"empty string", "", func(t *testing.T) {
			assert.Equal(t, "fallback", envOr("X_TEST_VALUE", "fallback"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("X_TEST_VALUE", tt.value)
			tt.check(t)
		})
	}
}

func TestRefreshLLMKeys(t *testing.T) {
	var cfg Config
	t.Setenv("OPENROUTER_API_KEY", "a")
	t.Setenv("ANTHROPIC_API_KEY", "b")
	t.Setenv("GEMINI_API_KEY", "c")

	cfg.RefreshLLMKeys()

	assert.Equal(t, "a", cfg.LLM.OpenRouterAPIKey)
	assert.Equal(t, "b", cfg.LLM.AnthropicAPIKey)
	assert.Equal(t, "c", cfg.LLM.GeminiAPIKey)
}
