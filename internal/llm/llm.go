// Package llm wraps the hosted chat-completion providers behind one small
// interface: an ordered list of role-tagged messages in, free text out.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apresai/robodebate/internal/config"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("robodebate-llm")

// ErrMissingAPIKey is returned when the selected provider has no credential.
var ErrMissingAPIKey = errors.New("llm: missing API key")

// Provider names accepted by New.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderBedrock    = "bedrock"
	ProviderGemini     = "gemini"
)

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in a chat request.
type Message struct {
	Role    Role
	Content string
}

// System, User and Assistant build messages of the matching role.
func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Request is a single chat-completion call.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Client sends a chat request and returns the first choice's text, trimmed.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a plain function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// New builds the client for cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenRouter:
		return NewOpenRouterClient(cfg)
	case ProviderAnthropic:
		return NewClaudeClient(cfg)
	case ProviderBedrock:
		return NewBedrockClient(ctx, cfg)
	case ProviderGemini:
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: must be openrouter, anthropic, bedrock, or gemini", cfg.Provider)
	}
}

// APIKeyEnv names the environment variable holding the provider's key, or ""
// when the provider authenticates another way.
func APIKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "", ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// splitSystem separates system messages (joined with blank lines) from the
// conversational ones, for providers that take the system prompt out of band.
func splitSystem(msgs []Message) (string, []Message) {
	var sys []string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(sys, "\n\n"), rest
}
