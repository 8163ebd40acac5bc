package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apresai/robodebate/internal/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessages() []Message {
	return []Message{
		System("you are LOGIC-01"),
		User("opening"),
		Assistant("previous reply"),
		User("rival says hi"),
	}
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := config.LLMConfig{
		OpenRouterAPIKey: "or",
		AnthropicAPIKey:  "ant",
		GeminiAPIKey:     "gem",
	}

	tests := []struct {
		provider string
		want     any
	}{
		{"", &OpenRouterClient{}},
		{"openrouter", &OpenRouterClient{}},
		{"Anthropic", &ClaudeClient{}},
		{"gemini", &GeminiClient{}},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			c := cfg
			c.Provider = tt.provider
			client, err := New(context.Background(), c)
			require.NoError(t, err)
			assert.IsType(t, tt.want, client)
		})
	}

	_, err := New(context.Background(), config.LLMConfig{Provider: "ollama"})
	assert.ErrorContains(t, err, "unknown LLM provider")
}

func TestNewMissingKeys(t *testing.T) {
	for _, provider := range []string{"openrouter", "anthropic", "gemini"} {
		t.Run(provider, func(t *testing.T) {
			_, err := New(context.Background(), config.LLMConfig{Provider: provider})
			assert.ErrorIs(t, err, ErrMissingAPIKey)
			assert.ErrorContains(t, err, APIKeyEnv(provider))
		})
	}
	assert.Empty(t, APIKeyEnv("bedrock"))
}

func TestClientFunc(t *testing.T) {
	var got Request
	c := ClientFunc(func(_ context.Context, req Request) (string, error) {
		got = req
		return "ok", nil
	})

	text, err := c.Complete(context.Background(), Request{MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 10, got.MaxTokens)
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{System("a"), User("u"), System("b")})
	assert.Equal(t, "a\n\nb", system)
	assert.Equal(t, []Message{User("u")}, rest)
}

func TestOpenRouterComplete(t *testing.T) {
	var body map[string]any
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		headers = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"google/gemini-2.0-flash-001",
			"choices":[{"index":0,"message":{"role":"assistant","content":"  Code: D99. Illogical.  "},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":5,"total_tokens":17}}`)
	}))
	defer srv.Close()

	client, err := NewOpenRouterClient(config.LLMConfig{
		OpenRouterAPIKey: "sk-or-test",
		BaseURL:          srv.URL + "/",
		Referer:          "https://example.test",
		Title:            "Proper Prediction Market",
	})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), Request{
		Messages:    testMessages(),
		Temperature: 1.0,
		MaxTokens:   300,
	})
	require.NoError(t, err)
	assert.Equal(t, "Code: D99. Illogical.", text)

	assert.Equal(t, "Bearer sk-or-test", headers.Get("Authorization"))
	assert.Equal(t, "https://example.test", headers.Get("HTTP-Referer"))
	assert.Equal(t, "Proper Prediction Market", headers.Get("X-Title"))

	assert.Equal(t, "google/gemini-2.0-flash-001", body["model"])
	assert.EqualValues(t, 300, body["max_tokens"])
	assert.EqualValues(t, 1.0, body["temperature"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 4)
	roles := make([]string, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, m.(map[string]any)["role"].(string))
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}

func TestOpenRouterUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error":{"message":"upstream down"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenRouterClient(config.LLMConfig{OpenRouterAPIKey: "k", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Messages: []Message{User("hi")}})
	assert.ErrorContains(t, err, "openrouter chat completion")
}

func TestClaudeComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5-20251001",
			"content":[{"type":"text","text":" roast "}],"stop_reason":"end_turn","stop_sequence":null,
			"usage":{"input_tokens":20,"output_tokens":1}}`)
	}))
	defer srv.Close()

	client, err := NewClaudeClient(config.LLMConfig{AnthropicAPIKey: "sk-ant", BaseURL: srv.URL + "/", Model: "haiku"})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), Request{
		Messages:    testMessages(),
		Temperature: 1.1,
		MaxTokens:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, "roast", text)

	assert.Equal(t, "claude-haiku-4-5-20251001", body["model"])
	assert.EqualValues(t, 10, body["max_tokens"])
	assert.EqualValues(t, 1.0, body["temperature"])
	system := body["system"].([]any)
	assert.Equal(t, "you are LOGIC-01", system[0].(map[string]any)["text"])
	assert.Len(t, body["messages"], 3)
}

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	return f.out, f.err
}

func TestBedrockComplete(t *testing.T) {
	fake := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: " debate\n"}},
		}},
	}}
	client := NewBedrockClientWithAPI(fake, "")

	text, err := client.Complete(context.Background(), Request{Messages: testMessages(), Temperature: 0.3, MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "debate", text)

	require.NotNil(t, fake.input)
	assert.Equal(t, novaModels["nova-lite"], *fake.input.ModelId)
	assert.Equal(t, int32(10), *fake.input.InferenceConfig.MaxTokens)
	require.Len(t, fake.input.System, 1)
	require.Len(t, fake.input.Messages, 3)
	assert.Equal(t, types.ConversationRoleAssistant, fake.input.Messages[1].Role)
}

func TestBedrockError(t *testing.T) {
	client := NewBedrockClientWithAPI(&fakeConverse{err: errors.New("throttled")}, "nova-pro")
	_, err := client.Complete(context.Background(), Request{Messages: []Message{User("x")}})
	assert.ErrorContains(t, err, "throttled")
	assert.Empty(t, extractConverseText(nil))
}

func TestGeminiComplete(t *testing.T) {
	var body geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "gem-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"[1] 안녕"},{"text":"하세요"}]}}]}`)
	}))
	defer srv.Close()

	client, err := NewGeminiClient(config.LLMConfig{GeminiAPIKey: "gem-key", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), Request{Messages: testMessages(), Temperature: 0.3, MaxTokens: 2000})
	require.NoError(t, err)
	assert.Equal(t, "[1] 안녕하세요", text)

	require.NotNil(t, body.SystemInstruction)
	assert.Equal(t, 2000, body.GenerationConfig.MaxOutputTokens)
	require.Len(t, body.Contents, 3)
	assert.Equal(t, "model", body.Contents[1].Role)
}

func TestGeminiHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `quota`)
	}))
	defer srv.Close()

	client, err := NewGeminiClient(config.LLMConfig{GeminiAPIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Messages: []Message{User("x")}})
	assert.ErrorContains(t, err, "status 429")
}
