package debate

import (
	"context"
	"errors"
	"testing"

	"github.com/apresai/robodebate/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"roast", ModeRoast},
		{"  ROAST\n", ModeRoast},
		{"debate", ModeDebate},
		{"roast.", ModeDebate},
		{"I think roast", ModeDebate},
		{"", ModeDebate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseVerdict(tt.in), "input %q", tt.in)
	}
}

func TestClassify(t *testing.T) {
	var got llm.Request
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return "Roast", nil
	})

	mode, err := NewTriager(client).Classify(context.Background(), "Will the sun rise tomorrow?", "Obviously.")
	require.NoError(t, err)
	assert.Equal(t, ModeRoast, mode)

	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, 10, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	prompt := got.Messages[0].Content
	assert.Contains(t, prompt, "60-70%")
	assert.Contains(t, prompt, `"Will the sun rise tomorrow?"`)
	assert.Contains(t, prompt, "Obviously.")
}

func TestClassifyProviderErrorDefaultsToDebate(t *testing.T) {
	client := llm.ClientFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("rate limited")
	})

	mode, err := NewTriager(client).Classify(context.Background(), "Anything", "")
	assert.Error(t, err)
	assert.Equal(t, ModeDebate, mode)
}

func TestClassifyEmptyTitle(t *testing.T) {
	called := false
	client := llm.ClientFunc(func(context.Context, llm.Request) (string, error) {
		called = true
		return "roast", nil
	})

	mode, err := NewTriager(client).Classify(context.Background(), "  ", "desc")
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.Equal(t, ModeDebate, mode)
	assert.False(t, called)
}
