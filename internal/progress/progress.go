// Package progress carries batch pipeline progress to whatever is rendering
// it: a terminal bar, log lines, or an MCP task record.
package progress

import "time"

// Stage identifies which pipeline stage is active.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageTriage    Stage = "triage"
	StageDialogue  Stage = "dialogue"
	StageTranslate Stage = "translate"
	StageWrite     Stage = "write"
	StagePublish   Stage = "publish"
	StageComplete  Stage = "complete"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage   Stage
	Message string
	Percent float64 // 0.0–1.0

	// Proposal is 1-based; zero outside per-proposal stages.
	Proposal      int
	ProposalTotal int
	Turn          int
	TurnTotal     int

	Elapsed time.Duration
	Error   error

	// OutputFile, Count and URL are set on StageComplete.
	OutputFile string
	Count      int
	URL        string
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}

// Fraction maps a position inside the per-proposal work onto 0..1. Fetch takes
// the first 5%, write and publish the last 5%; each proposal gets an equal
// share of the rest, split between dialogue turns and translation.
func Fraction(proposal, proposalTotal, turn, turnTotal int) float64 {
	if proposalTotal <= 0 {
		return 0.05
	}
	per := 0.90 / float64(proposalTotal)
	base := 0.05 + per*float64(proposal-1)
	if turnTotal <= 0 {
		return base
	}
	// Translation counts as one extra step after the last turn.
	return base + per*float64(turn)/float64(turnTotal+1)
}
