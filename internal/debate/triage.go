package debate

import (
	"context"
	"fmt"
	"strings"

	"github.com/apresai/robodebate/internal/llm"
	"go.opentelemetry.io/otel/attribute"
)

// Triager decides whether a proposal gets a debate or a joint roast.
type Triager struct {
	client llm.Client
}

func NewTriager(client llm.Client) *Triager {
	return &Triager{client: client}
}

// Classify asks the model for a one-word verdict. On a provider error it
// returns ModeDebate alongside the error so callers can log and carry on.
func (t *Triager) Classify(ctx context.Context, title, description string) (Mode, error) {
	if strings.TrimSpace(title) == "" {
		return ModeDebate, ErrEmptyTitle
	}

	ctx, span := tracer.Start(ctx, "debate.triage")
	defer span.End()

	out, err := t.client.Complete(ctx, llm.Request{
		Messages:    []llm.Message{llm.User(triagePrompt(title, description))},
		Temperature: 0.3,
		MaxTokens:   10,
	})
	if err != nil {
		span.RecordError(err)
		return ModeDebate, fmt.Errorf("triage: %w", err)
	}

	mode := ParseVerdict(out)
	span.SetAttributes(attribute.String("mode", string(mode)))
	return mode, nil
}

// ParseVerdict maps a raw model reply to a Mode. Only an exact "roast" after
// trimming and lowercasing selects ModeRoast.
func ParseVerdict(s string) Mode {
	if strings.ToLower(strings.TrimSpace(s)) == string(ModeRoast) {
		return ModeRoast
	}
	return ModeDebate
}

func triagePrompt(title, description string) string {
	var b strings.Builder
	b.WriteString(`You book segments for a robot debate show. Given a prediction market proposal, pick one format:

- "debate": the proposal has enough substance for two robots to argue opposite sides (politics, tech, finance, sports outcomes, and the like)
- "roast": the proposal is so absurd, trivial, pointless, or already decided that both robots should team up and tear it apart (things like "Will the sun rise tomorrow?", events that have effectively resolved, niche nonsense nobody cares about, celebrity gossip with an obvious answer)

Lean hard toward "roast": roughly 60-70% of proposals deserve it. If it is even a little dumb, roast it.

`)
	fmt.Fprintf(&b, "Proposal: %q", title)
	if description != "" {
		b.WriteString("\n" + description)
	}
	b.WriteString("\n\nReply with ONLY one word: debate OR roast")
	return b.String()
}
