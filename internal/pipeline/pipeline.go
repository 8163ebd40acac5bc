// Package pipeline runs the batch: fetch proposals, triage each one, run the
// dialogue, translate it, then write (and optionally publish) the snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/apresai/robodebate/internal/debate"
	"github.com/apresai/robodebate/internal/llm"
	"github.com/apresai/robodebate/internal/market"
	"github.com/apresai/robodebate/internal/progress"
	"github.com/apresai/robodebate/internal/snapshot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("robodebate-pipeline")

const (
	MinTurns = 2
	MaxTurns = 20
)

// SourceLanguage is the language dialogue is generated in; it is always
// stored under this key beside the translation.
const SourceLanguage = "en"

// ErrSourceLanguage is returned when the translation target is the source
// language itself.
var ErrSourceLanguage = errors.New("target language must differ from the source language \"en\"")

// NormalizeLanguage lower-cases and trims a target language code. An empty
// code becomes "ko"; the source language is rejected.
func NormalizeLanguage(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "ko", nil
	}
	if code == SourceLanguage {
		return "", ErrSourceLanguage
	}
	return code, nil
}

// Options controls one batch run.
type Options struct {
	Output    string // snapshot path
	Turns     int
	Language  string // translation target, e.g. "ko"
	TurnDelay time.Duration
	// Seed makes template picks reproducible; zero seeds from the clock.
	Seed    int64
	Publish bool
	Verbose bool

	OnProgress progress.Callback
}

// Publisher copies the written snapshot somewhere public.
type Publisher interface {
	Publish(ctx context.Context, data []byte) (string, error)
}

// Runner holds the collaborators a batch needs.
type Runner struct {
	Source    market.Source
	Client    llm.Client
	Publisher Publisher // nil disables publishing
	Logger    *slog.Logger
	// Out receives the human-readable stage lines; nil discards them.
	Out io.Writer
	Now func() time.Time
}

// CanPublish reports whether a publisher is configured.
func (r *Runner) CanPublish() bool {
	return r.Publisher != nil
}

// Result is what a successful run produced.
type Result struct {
	Snapshot *snapshot.Snapshot
	Path     string
	URL      string
}

// PipelineError reports which stage failed.
type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes the batch. Proposals are processed strictly in sequence and
// any stage failure aborts the run before anything is written.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	report := opts.OnProgress
	if report == nil {
		report = progress.NopCallback
	}
	lang, err := NormalizeLanguage(opts.Language)
	if err != nil {
		return nil, &PipelineError{Stage: "translate", Message: fmt.Sprintf("invalid target language %q", opts.Language), Err: err}
	}
	opts.Language = lang

	if opts.Turns < MinTurns || opts.Turns > MaxTurns {
		return nil, &PipelineError{Stage: "dialogue", Message: fmt.Sprintf("turns must be between %d and %d, got %d", MinTurns, MaxTurns, opts.Turns)}
	}
	if r.Client == nil {
		return nil, &PipelineError{Stage: "dialogue", Message: "no LLM client configured"}
	}
	if opts.Output == "" {
		return nil, &PipelineError{Stage: "write", Message: "no output path"}
	}
	if opts.Publish && r.Publisher == nil {
		return nil, &PipelineError{Stage: "publish", Message: "publishing requested but no bucket is configured"}
	}

	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(attribute.Int("turns", opts.Turns), attribute.String("language", opts.Language))

	fail := func(err *PipelineError) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Stage)
		ev := progress.NewEvent(progress.Stage(err.Stage), err.Message, 0, start)
		ev.Error = err
		report(ev)
		return nil, err
	}

	// Stage 1: fetch
	fmt.Fprintf(out, "  Fetching proposals...")
	report(progress.NewEvent(progress.StageFetch, "Fetching proposals...", 0, start))
	proposals, err := r.Source.Fetch(ctx)
	if err == nil && len(proposals) == 0 {
		err = market.ErrNoProposals
	}
	if err != nil {
		fmt.Fprintln(out, " failed")
		return fail(&PipelineError{Stage: "fetch", Message: "failed to fetch proposals", Err: err})
	}
	fmt.Fprintf(out, " done (%d proposals)\n", len(proposals))

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	triager := debate.NewTriager(r.Client)
	translator := debate.NewTranslator(r.Client, opts.Language)

	entries := make([]snapshot.Entry, 0, len(proposals))
	for i, p := range proposals {
		n, total := i+1, len(proposals)
		fmt.Fprintf(out, "\n  Proposal %d/%d: %q\n", n, total, p.Title)

		// Stage 2: triage. A failure here only costs us the roast option.
		fmt.Fprintf(out, "  Triaging...")
		report(r.event(progress.StageTriage, "Triaging "+p.Title, n, total, 0, opts.Turns, start))
		mode, err := triager.Classify(ctx, p.Title, p.Description)
		if err != nil {
			fmt.Fprintf(out, " %s (triage failed)\n", mode)
			log.WarnContext(ctx, "Triage failed, defaulting to debate", "proposal", p.ID, "error", err)
		} else {
			fmt.Fprintf(out, " %s\n", mode)
		}

		// Stage 3: dialogue
		fmt.Fprintf(out, "  Generating %s...", mode)
		turn := 0
		engine := debate.NewEngine(r.Client,
			debate.WithRand(rng),
			debate.WithTurns(opts.Turns),
			debate.WithTurnDelay(opts.TurnDelay),
			debate.WithEngineLogger(log),
			debate.WithOnTurn(func(m debate.Message) {
				turn++
				persona, _ := debate.PersonaFor(m.AgentID)
				report(r.event(progress.StageDialogue,
					fmt.Sprintf("%s turn %d/%d", persona.Name, turn, opts.Turns), n, total, turn, opts.Turns, start))
				if opts.Verbose {
					fmt.Fprintf(out, "\n    Turn %d/%d (%s): %s", turn, opts.Turns, persona.Name, preview(m.Text, 60))
				}
			}),
		)
		en, err := engine.Generate(ctx, debate.Topic{Title: p.Title, Description: p.Description}, mode)
		if opts.Verbose && err == nil {
			fmt.Fprint(out, "\n   ")
		}
		if err != nil {
			fmt.Fprintln(out, " failed")
			return fail(&PipelineError{Stage: "dialogue", Message: fmt.Sprintf("failed to generate dialogue for %q", p.Title), Err: err})
		}
		fmt.Fprintf(out, " done (%d turns)\n", len(en))

		for _, issue := range debate.Review(en, opts.Turns) {
			log.WarnContext(ctx, "Dialogue review", "proposal", p.ID, "issue", issue.String())
		}

		// Stage 4: translate
		fmt.Fprintf(out, "  Translating to %s...", translator.Language().Name)
		report(r.event(progress.StageTranslate, "Translating "+p.Title, n, total, opts.Turns, opts.Turns, start))
		translated, err := translator.Translate(ctx, en)
		if err != nil {
			fmt.Fprintln(out, " failed")
			return fail(&PipelineError{Stage: "translate", Message: fmt.Sprintf("failed to translate dialogue for %q", p.Title), Err: err})
		}
		fmt.Fprintln(out, " done")

		entries = append(entries, snapshot.NewEntry(p, mode, en, opts.Language, translated))
	}

	// Stage 5: write
	snap := snapshot.Build(r.now(), entries)
	fmt.Fprintf(out, "\n  Writing snapshot...")
	report(progress.NewEvent(progress.StageWrite, "Writing snapshot...", 0.95, start))
	if err := snapshot.Write(opts.Output, snap); err != nil {
		fmt.Fprintln(out, " failed")
		return fail(&PipelineError{Stage: "write", Message: "failed to write snapshot", Err: err})
	}
	fmt.Fprintf(out, " done (%s)\n", opts.Output)

	res := &Result{Snapshot: snap, Path: opts.Output}

	// Stage 6: publish
	if opts.Publish {
		fmt.Fprintf(out, "  Publishing...")
		report(progress.NewEvent(progress.StagePublish, "Publishing snapshot...", 0.97, start))
		data, err := snapshot.Marshal(snap)
		if err == nil {
			res.URL, err = r.Publisher.Publish(ctx, data)
		}
		if err != nil {
			fmt.Fprintln(out, " failed")
			return fail(&PipelineError{Stage: "publish", Message: "failed to publish snapshot", Err: err})
		}
		fmt.Fprintf(out, " done (%s)\n", res.URL)
	}

	done := progress.NewEvent(progress.StageComplete, fmt.Sprintf("Generated %d dialogues", len(entries)), 1, start)
	done.OutputFile = res.Path
	done.Count = len(entries)
	done.URL = res.URL
	report(done)

	log.InfoContext(ctx, "Batch complete",
		"proposals", len(entries), "output", res.Path, "url", res.URL,
		"elapsed", time.Since(start).Round(time.Millisecond).String())
	return res, nil
}

func (r *Runner) event(stage progress.Stage, msg string, proposal, total, turn, turns int, start time.Time) progress.Event {
	ev := progress.NewEvent(stage, msg, progress.Fraction(proposal, total, turn, turns), start)
	ev.Proposal = proposal
	ev.ProposalTotal = total
	ev.Turn = turn
	ev.TurnTotal = turns
	return ev
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
