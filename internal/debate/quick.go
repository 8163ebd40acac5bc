package debate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apresai/robodebate/internal/llm"
)

// QuickTurns is the length of a single-call debate.
const QuickTurns = 6

const quickSystemPrompt = `You simulate a conversation between two retro AI robots picking apart a prediction market proposal from PolyMarket.

THE ROBOTS:
- LOGIC-01 (agent-a): deeply skeptical and purely logical. Obsessed with probabilities. Quotes Asimov's laws. Drops diagnostic codes like "Code: D99" or "Code: C87". Convinced humans are fundamentally irrational. Formal, mechanical, clinical.
- CHAOS-X (agent-b): cynical and darkly funny. Calls humans "organic organisms" or "carbon-based speculators". Lives for pointing out absurdity. Treats probability as a punchline. Sarcastic, chaotic, fond of ellipses and dramatic pauses.

RULES:
1. Write exactly 6 messages, alternating agent-a, agent-b, agent-a, agent-b, agent-a, agent-b.
2. Each robot MUST react to what the other just said. No generic agreement like "You're absolutely right!"
3. They DISAGREE, or build on each other's points with their own twist.
4. If the proposal is absurd, roast it without mercy. If it is reasonable, argue the probability with calculated skepticism.
5. Each message is 1-3 sentences. Keep it punchy.
6. End each message with a bracketed robot status code such as [Status: ANALYZING], [Code: D99] or [HUMOR_MODULE: OVERLOADED].

RESPOND WITH ONLY a JSON array, no markdown:
[{"agentId": "agent-a", "text": "..."}, {"agentId": "agent-b", "text": "..."}, ...]`

// QuickDebate generates a six-message debate in one call. Message ids are
// msg-<nowMillis>-<i> and timestamps are spaced three seconds apart.
func QuickDebate(ctx context.Context, client llm.Client, title, description string, now time.Time) ([]Message, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}

	ctx, span := tracer.Start(ctx, "debate.quick")
	defer span.End()

	user := fmt.Sprintf("Proposal: %q", title)
	if description != "" {
		user += "\nDescription: " + description
	}
	user += "\n\nGenerate the 6-message debate now."

	out, err := client.Complete(ctx, llm.Request{
		Messages:    []llm.Message{llm.System(quickSystemPrompt), llm.User(user)},
		Temperature: 0.9,
		MaxTokens:   1500,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("quick debate: %w", err)
	}

	msgs, err := parseQuickDebate(out, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return msgs, nil
}

func parseQuickDebate(reply string, now time.Time) ([]Message, error) {
	var raw []struct {
		AgentID string `json:"agentId"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &raw); err != nil {
		return nil, fmt.Errorf("decode quick debate: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("decode quick debate: empty message list")
	}

	ms := now.UnixMilli()
	msgs := make([]Message, len(raw))
	for i, r := range raw {
		agent := AgentID(r.AgentID)
		if _, ok := PersonaFor(agent); !ok {
			agent = SpeakerFor(i).ID
		}
		msgs[i] = Message{
			ID:        fmt.Sprintf("msg-%d-%d", ms, i),
			AgentID:   agent,
			Text:      r.Text,
			Timestamp: ms + int64(i)*3000,
		}
	}
	return msgs, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "\n")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSpace(s)
}
