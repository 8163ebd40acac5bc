package debate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/apresai/robodebate/internal/llm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultTurns       = 7
	DefaultTurnDelay   = 500 * time.Millisecond
	DefaultTemperature = 1.0
	DefaultMaxTokens   = 300
)

// Engine runs a fixed-length, strictly alternating two-persona dialogue. An
// Engine is not safe for concurrent use because it owns its random source.
type Engine struct {
	client      llm.Client
	rng         *rand.Rand
	turns       int
	delay       time.Duration
	temperature float64
	maxTokens   int
	onTurn      func(Message)
	log         *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRand injects the random source used for every template pick.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) { e.rng = rng }
}

func WithTurns(n int) EngineOption {
	return func(e *Engine) { e.turns = n }
}

// WithTurnDelay sets the pause between turns. Zero disables it.
func WithTurnDelay(d time.Duration) EngineOption {
	return func(e *Engine) { e.delay = d }
}

func WithSampling(temperature float64, maxTokens int) EngineOption {
	return func(e *Engine) {
		e.temperature = temperature
		e.maxTokens = maxTokens
	}
}

// WithOnTurn registers a hook called after each accepted message.
func WithOnTurn(fn func(Message)) EngineOption {
	return func(e *Engine) { e.onTurn = fn }
}

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

func NewEngine(client llm.Client, opts ...EngineOption) *Engine {
	e := &Engine{
		client:      client,
		turns:       DefaultTurns,
		delay:       DefaultTurnDelay,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// Turns reports the configured dialogue length.
func (e *Engine) Turns() int { return e.turns }

// Generate produces exactly Turns messages about topic in mode. Any failed
// turn aborts the dialogue; a partial history is never returned.
func (e *Engine) Generate(ctx context.Context, topic Topic, mode Mode) ([]Message, error) {
	if strings.TrimSpace(topic.Title) == "" {
		return nil, ErrEmptyTitle
	}
	if e.turns < 1 {
		return nil, fmt.Errorf("dialogue needs at least one turn, got %d", e.turns)
	}

	ctx, span := tracer.Start(ctx, "debate.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("mode", string(mode)),
		attribute.Int("turns", e.turns),
	)

	pools := poolsFor(mode)
	opener := pick(e.rng, pools.openers)
	angle := pick(e.rng, angleHints)

	history := make([]Message, 0, e.turns)
	for t := 0; t < e.turns; t++ {
		speaker := SpeakerFor(t)
		msgs := e.turnMessages(speaker, mode, pools, opener, angle, topic, history)

		text, err := e.client.Complete(ctx, llm.Request{
			Messages:    msgs,
			Temperature: e.temperature,
			MaxTokens:   e.maxTokens,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "turn failed")
			return nil, fmt.Errorf("turn %d/%d (%s): %w", t+1, e.turns, speaker.Name, err)
		}

		msg := Message{
			ID:      fmt.Sprintf("msg-%d", t+1),
			AgentID: speaker.ID,
			Text:    text,
		}
		history = append(history, msg)
		e.log.DebugContext(ctx, "Turn accepted",
			"turn", t+1, "of", e.turns, "speaker", speaker.Name, "preview", preview(text, 60))
		if e.onTurn != nil {
			e.onTurn(msg)
		}

		if t < e.turns-1 && e.delay > 0 {
			if err := sleep(ctx, e.delay); err != nil {
				return nil, fmt.Errorf("turn %d/%d: %w", t+1, e.turns, err)
			}
		}
	}
	return history, nil
}

// turnMessages assembles the request for one turn: persona prompt with the
// angle, the opener, the replayed history and, if the speaker spoke last, a
// continuation nudge.
func (e *Engine) turnMessages(speaker Persona, mode Mode, pools modePools, opener openerFunc, angle string, topic Topic, history []Message) []llm.Message {
	rival := speaker.Rival().Name
	msgs := make([]llm.Message, 0, len(history)+3)
	msgs = append(msgs,
		llm.System(withAngle(SystemPrompt(speaker, mode), angle)),
		llm.User(opener(topic.Title, topic.Description, rival)),
	)

	for _, h := range history {
		if h.AgentID == speaker.ID {
			msgs = append(msgs, llm.Assistant(h.Text))
			continue
		}
		nudge := pick(e.rng, pools.replies)
		msgs = append(msgs, llm.User(nudge(rival, h.Text)))
	}

	if n := len(history); n > 0 && history[n-1].AgentID == speaker.ID {
		msgs = append(msgs, llm.User(pick(e.rng, pools.continues)(rival)))
	}
	return msgs
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
