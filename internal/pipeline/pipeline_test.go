package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apresai/robodebate/internal/debate"
	"github.com/apresai/robodebate/internal/llm"
	"github.com/apresai/robodebate/internal/market"
	"github.com/apresai/robodebate/internal/progress"
	"github.com/apresai/robodebate/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	props []market.Proposal
	err   error
}

func (s staticSource) Fetch(context.Context) ([]market.Proposal, error) {
	return s.props, s.err
}

func testProposals() []market.Proposal {
	return []market.Proposal{
		{ID: "m1", Title: "Will the Fed cut in March?", Category: "Breaking", Volume: "$2.5M",
			Conditions: []market.Condition{{Question: "Will the Fed cut in March?", Outcomes: []string{"Yes", "No"}, Prices: []int{40, 60}}}},
		{ID: "m2", Title: "Will a hot dog be eaten?", Category: "Breaking", Volume: "$12K"},
	}
}

// stubLLM answers triage, dialogue and translation prompts deterministically
// and records every system prompt used for dialogue turns.
type stubLLM struct {
	mu           sync.Mutex
	verdict      string
	triageErr    error
	failTurn     int
	translateErr error

	turns   int
	systems []string
}

func (s *stubLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	first := req.Messages[0]
	switch {
	case strings.Contains(first.Content, "Reply with ONLY one word"):
		return s.verdict, s.triageErr
	case strings.HasPrefix(first.Content, "Translate these"):
		if s.translateErr != nil {
			return "", s.translateErr
		}
		var b strings.Builder
		for i := 1; strings.Contains(first.Content, fmt.Sprintf("[%d] ", i)); i++ {
			fmt.Fprintf(&b, "[%d] 번역 %d\n", i, i)
		}
		return b.String(), nil
	}

	s.turns++
	s.systems = append(s.systems, first.Content)
	if s.failTurn > 0 && s.turns == s.failTurn {
		return "", errors.New("upstream 500")
	}
	return fmt.Sprintf("line %d", s.turns), nil
}

type fakePublisher struct {
	data []byte
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, data []byte) (string, error) {
	f.data = data
	return "https://cdn.example.com/data/debates.json", f.err
}

func newRunner(client llm.Client, src market.Source) (*Runner, *bytes.Buffer) {
	var out bytes.Buffer
	return &Runner{
		Source: src,
		Client: client,
		Out:    &out,
		Now:    func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}, &out
}

func baseOptions(t *testing.T) Options {
	return Options{
		Output:   filepath.Join(t.TempDir(), "data", "debates.json"),
		Turns:    7,
		Language: "ko",
		Seed:     7,
	}
}

func TestRunWritesSnapshot(t *testing.T) {
	client := &stubLLM{verdict: "debate"}
	r, out := newRunner(client, staticSource{props: testProposals()})
	opts := baseOptions(t)

	var events []progress.Event
	opts.OnProgress = func(e progress.Event) { events = append(events, e) }

	res, err := r.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, opts.Output, res.Path)
	assert.Empty(t, res.URL)
	assert.Equal(t, "2026-01-02T03:04:05Z", res.Snapshot.GeneratedAt)
	require.Len(t, res.Snapshot.Proposals, 2)

	for _, e := range res.Snapshot.Proposals {
		assert.Equal(t, debate.ModeDebate, e.Mode)
		en, ko := e.Debates["en"], e.Debates["ko"]
		require.Len(t, en, 7)
		require.Len(t, ko, 7)
		for i := range en {
			assert.Equal(t, debate.SpeakerFor(i).ID, en[i].AgentID)
			assert.Equal(t, en[i].ID, ko[i].ID)
			assert.Equal(t, en[i].AgentID, ko[i].AgentID)
			assert.Equal(t, fmt.Sprintf("번역 %d", i+1), ko[i].Text)
		}
	}

	loaded, err := snapshot.Load(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, res.Snapshot, loaded)

	assert.Contains(t, out.String(), "  Fetching proposals... done (2 proposals)")
	assert.Contains(t, out.String(), "  Translating to Korean... done")

	require.NotEmpty(t, events)
	assert.Equal(t, progress.StageFetch, events[0].Stage)
	last := events[len(events)-1]
	assert.Equal(t, progress.StageComplete, last.Stage)
	assert.Equal(t, 2, last.Count)
}

func TestRunIsStableForSameSeed(t *testing.T) {
	run := func() []byte {
		r, _ := newRunner(&stubLLM{verdict: "roast"}, staticSource{props: testProposals()})
		opts := baseOptions(t)
		_, err := r.Run(context.Background(), opts)
		require.NoError(t, err)
		data, err := os.ReadFile(opts.Output)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, run(), run())
}

func TestRunRoastUsesRoastPrompts(t *testing.T) {
	client := &stubLLM{verdict: "roast"}
	r, _ := newRunner(client, staticSource{props: testProposals()[:1]})

	res, err := r.Run(context.Background(), baseOptions(t))
	require.NoError(t, err)
	assert.Equal(t, debate.ModeRoast, res.Snapshot.Proposals[0].Mode)

	require.Len(t, client.systems, 7)
	for i, sys := range client.systems {
		want := debate.SystemPrompt(debate.SpeakerFor(i), debate.ModeRoast)
		assert.True(t, strings.HasPrefix(sys, want), "turn %d did not use the roast prompt", i+1)
	}
}

func TestRunTriageFailureFallsBackToDebate(t *testing.T) {
	client := &stubLLM{triageErr: errors.New("429")}
	r, out := newRunner(client, staticSource{props: testProposals()[:1]})

	res, err := r.Run(context.Background(), baseOptions(t))
	require.NoError(t, err)
	assert.Equal(t, debate.ModeDebate, res.Snapshot.Proposals[0].Mode)
	assert.Contains(t, out.String(), "(triage failed)")
}

func TestRunFailuresWriteNothing(t *testing.T) {
	tests := []struct {
		name   string
		client *stubLLM
		src    staticSource
		stage  string
	}{
		{"fetch error", &stubLLM{}, staticSource{err: errors.New("both feeds down")}, "fetch"},
		{"no proposals", &stubLLM{}, staticSource{}, "fetch"},
		{"turn 3 fails", &stubLLM{verdict: "debate", failTurn: 3}, staticSource{props: testProposals()}, "dialogue"},
		{"second proposal fails", &stubLLM{verdict: "debate", failTurn: 9}, staticSource{props: testProposals()}, "dialogue"},
		{"translation fails", &stubLLM{verdict: "debate", translateErr: errors.New("timeout")}, staticSource{props: testProposals()}, "translate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newRunner(tt.client, tt.src)
			opts := baseOptions(t)

			res, err := r.Run(context.Background(), opts)
			assert.Nil(t, res)

			var perr *PipelineError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.stage, perr.Stage)

			_, statErr := os.Stat(opts.Output)
			assert.True(t, os.IsNotExist(statErr), "snapshot must not be written on failure")
		})
	}
}

func TestRunPublishes(t *testing.T) {
	pub := &fakePublisher{}
	r, _ := newRunner(&stubLLM{verdict: "debate"}, staticSource{props: testProposals()[:1]})
	r.Publisher = pub
	opts := baseOptions(t)
	opts.Publish = true

	res, err := r.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/data/debates.json", res.URL)

	written, err := os.ReadFile(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, written, pub.data)
}

func TestRunValidatesOptions(t *testing.T) {
	r, _ := newRunner(&stubLLM{}, staticSource{props: testProposals()})

	opts := baseOptions(t)
	opts.Turns = 1
	_, err := r.Run(context.Background(), opts)
	assert.ErrorContains(t, err, "turns must be between 2 and 20")

	opts = baseOptions(t)
	opts.Publish = true
	_, err = r.Run(context.Background(), opts)
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "publish", perr.Stage)

	r.Client = nil
	_, err = r.Run(context.Background(), baseOptions(t))
	assert.ErrorContains(t, err, "no LLM client configured")
}

func TestRunRejectsSourceLanguage(t *testing.T) {
	for _, lang := range []string{"en", " EN "} {
		t.Run(lang, func(t *testing.T) {
			r, _ := newRunner(&stubLLM{}, staticSource{props: testProposals()})
			opts := baseOptions(t)
			opts.Language = lang

			_, err := r.Run(context.Background(), opts)
			var perr *PipelineError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "translate", perr.Stage)
			assert.ErrorIs(t, err, ErrSourceLanguage)
			assert.NoFileExists(t, opts.Output)
		})
	}
}

func TestRunNormalizesLanguageKey(t *testing.T) {
	r, _ := newRunner(&stubLLM{verdict: "debate"}, staticSource{props: testProposals()})
	opts := baseOptions(t)
	opts.Language = " KO"

	res, err := r.Run(context.Background(), opts)
	require.NoError(t, err)

	for _, e := range res.Snapshot.Proposals {
		assert.Len(t, e.Debates, 2)
		assert.Contains(t, e.Debates, "en")
		assert.Contains(t, e.Debates, "ko")
		assert.True(t, strings.HasPrefix(e.Debates["en"][0].Text, "line "))
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "ko", false},
		{"ja", "ja", false},
		{" Es ", "es", false},
		{"en", "", true},
		{"En", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeLanguage(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrSourceLanguage, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestPipelineError(t *testing.T) {
	inner := errors.New("boom")
	err := &PipelineError{Stage: "write", Message: "failed to write snapshot", Err: inner}
	assert.Equal(t, "[write] failed to write snapshot: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "[fetch] nothing", (&PipelineError{Stage: "fetch", Message: "nothing"}).Error())
}
