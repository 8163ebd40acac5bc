package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apresai/robodebate/internal/llm"
	"go.opentelemetry.io/otel/attribute"
)

// Language describes a translation target.
type Language struct {
	Code     string
	Name     string
	Guidance string // extra style notes appended to the prompt
}

var languages = map[string]Language{
	"ko": {
		Code: "ko",
		Name: "Korean",
		Guidance: `For the censored swear words, use:
- F#@K -> '씨X'
- SH#T -> '개x끼'
Use the everyday swearing and slang a Korean speaker would actually reach for.
Sound like a native Korean speaker: carry the cultural tone so it reads as if a real Korean person said it.`,
	},
	"ja": {
		Code: "ja",
		Name: "Japanese",
		Guidance: `Keep censored swear words censored in Japanese (for example クソ -> ク○).
Use casual, punchy spoken Japanese rather than textbook phrasing; LOGIC-01 may stay stiff and formal, CHAOS-X should sound like an online shitposter.`,
	},
}

// LookupLanguage returns the table entry for code, or generic guidance built
// from the code itself when it is unknown.
func LookupLanguage(code string) Language {
	code = strings.ToLower(strings.TrimSpace(code))
	if l, ok := languages[code]; ok {
		return l
	}
	return Language{
		Code:     code,
		Name:     code,
		Guidance: fmt.Sprintf("Sound like a native %s speaker, using natural colloquial slang for the censored swearing.", code),
	}
}

// Translator produces the localized variant of a dialogue in one call.
type Translator struct {
	client llm.Client
	lang   Language
}

func NewTranslator(client llm.Client, langCode string) *Translator {
	return &Translator{client: client, lang: LookupLanguage(langCode)}
}

func (t *Translator) Language() Language { return t.lang }

// Translate returns messages with the same ids and speakers as src and
// translated text. A message the model drops keeps its source text.
func (t *Translator) Translate(ctx context.Context, src []Message) ([]Message, error) {
	if len(src) == 0 {
		return []Message{}, nil
	}

	ctx, span := tracer.Start(ctx, "debate.translate")
	defer span.End()
	span.SetAttributes(attribute.String("language", t.lang.Code), attribute.Int("messages", len(src)))

	out, err := t.client.Complete(ctx, llm.Request{
		Messages:    []llm.Message{llm.User(translatePrompt(t.lang, src))},
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("translate to %s: %w", t.lang.Code, err)
	}
	return ParseTranslation(out, src), nil
}

func translatePrompt(lang Language, src []Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Translate these robot debate lines into %s. Keep each robot's personality, the censored profanity (F#@K, SH#T, B.S., etc.), diagnostic codes, bracketed status codes, and formatting intact. Translate naturally rather than literally.
%s
Return ONLY the translations, in exactly this format:
[1] translated text
[2] translated text
...and so on

Messages:
`, lang.Name, lang.Guidance)
	for i, m := range src {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, m.Text)
	}
	return b.String()
}

// ParseTranslation maps a model reply back onto src. A JSON array of exactly
// len(src) strings wins; otherwise each [i] marker's span is used, up to the
// next [i+1] marker or the end of the reply.
func ParseTranslation(reply string, src []Message) []Message {
	texts := parseStructured(reply, len(src))
	if texts == nil {
		texts = make([]string, len(src))
		for i := range src {
			texts[i] = markerSpan(reply, i+1, len(src))
		}
	}

	out := make([]Message, len(src))
	for i, m := range src {
		text := texts[i]
		if text == "" {
			text = m.Text
		}
		out[i] = Message{ID: m.ID, AgentID: m.AgentID, Text: text}
	}
	return out
}

func parseStructured(reply string, n int) []string {
	var texts []string
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &texts); err != nil {
		return nil
	}
	if len(texts) != n {
		return nil
	}
	for i := range texts {
		texts[i] = strings.TrimSpace(texts[i])
	}
	return texts
}

// markerSpan returns the trimmed text after the first "[i]" up to "[i+1]",
// or "" if the marker is absent. When "[i+1]" itself was dropped the span
// stops at the nearest later marker instead, up to "[n]".
func markerSpan(reply string, i, n int) string {
	marker := fmt.Sprintf("[%d]", i)
	start := strings.Index(reply, marker)
	if start < 0 {
		return ""
	}
	rest := reply[start+len(marker):]
	for j := i + 1; j <= n; j++ {
		if end := strings.Index(rest, fmt.Sprintf("[%d]", j)); end >= 0 {
			rest = rest[:end]
			break
		}
	}
	return strings.TrimSpace(rest)
}
