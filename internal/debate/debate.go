// Package debate turns a prediction-market proposal into a scripted exchange
// between two robot personas: triage picks the mode, the engine runs the
// alternating dialogue, and the translator produces the localized copy.
package debate

import (
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("robodebate-debate")

// ErrEmptyTitle is returned when a proposal has no title to argue about.
var ErrEmptyTitle = errors.New("debate: proposal title is required")

// Mode selects whether the personas argue with each other or jointly roast
// the proposal.
type Mode string

const (
	ModeDebate Mode = "debate"
	ModeRoast  Mode = "roast"
)

// ParseMode accepts "debate" or "roast", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDebate:
		return ModeDebate, nil
	case ModeRoast:
		return ModeRoast, nil
	}
	return "", fmt.Errorf("invalid mode %q: must be debate or roast", s)
}

// AgentID identifies which side of the exchange spoke.
type AgentID string

const (
	AgentA AgentID = "agent-a"
	AgentB AgentID = "agent-b"
)

// Persona is one of the two robots.
type Persona struct {
	ID   AgentID
	Name string
}

var (
	Logic01 = Persona{ID: AgentA, Name: "LOGIC-01"}
	ChaosX  = Persona{ID: AgentB, Name: "CHAOS-X"}
)

// SpeakerFor returns the persona speaking on the zero-based turn t. agent-a
// always opens.
func SpeakerFor(t int) Persona {
	if t%2 == 0 {
		return Logic01
	}
	return ChaosX
}

func (p Persona) Rival() Persona {
	if p.ID == AgentA {
		return ChaosX
	}
	return Logic01
}

// PersonaFor looks up a persona by agent id.
func PersonaFor(id AgentID) (Persona, bool) {
	switch id {
	case AgentA:
		return Logic01, true
	case AgentB:
		return ChaosX, true
	}
	return Persona{}, false
}

// Message is one accepted line of a dialogue. Timestamp is Unix milliseconds
// and only set by the quick debate.
type Message struct {
	ID        string  `json:"id"`
	AgentID   AgentID `json:"agentId"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Topic is the proposal under discussion.
type Topic struct {
	Title       string
	Description string
}
