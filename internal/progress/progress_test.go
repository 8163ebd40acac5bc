package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFraction(t *testing.T) {
	assert.InDelta(t, 0.05, Fraction(0, 0, 0, 0), 1e-9)
	assert.InDelta(t, 0.05, Fraction(1, 3, 0, 7), 1e-9)
	assert.InDelta(t, 0.35, Fraction(2, 3, 0, 7), 1e-9)
	assert.InDelta(t, 0.35, Fraction(1, 3, 8, 7), 1e-9)

	prev := 0.0
	for p := 1; p <= 3; p++ {
		for turn := 0; turn <= 8; turn++ {
			f := Fraction(p, 3, turn, 7)
			assert.GreaterOrEqual(t, f, prev-1e-9)
			assert.LessOrEqual(t, f, 0.95+1e-9)
			prev = f
		}
	}
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "[..........]", renderBar(-1, 10))
	assert.Equal(t, "[#####.....]", renderBar(0.5, 10))
	assert.Equal(t, "[##########]", renderBar(2, 10))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:00", formatElapsed(0))
	assert.Equal(t, "1:05", formatElapsed(65*time.Second))
	assert.Equal(t, "12:00", formatElapsed(12*time.Minute))
}

func TestPlainRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := newBarRenderer(&buf, false, 80)

	r.Handle(Event{Stage: StageFetch, Message: "Fetching proposals..."})
	r.Handle(Event{Stage: StageDialogue, Message: "LOGIC-01 turn 1/7", Proposal: 2, ProposalTotal: 3})
	r.Handle(Event{Stage: StageComplete, Message: "Done", OutputFile: "out.json", Count: 3, URL: "https://cdn/data/debates.json"})
	r.Finish()

	out := buf.String()
	assert.Contains(t, out, "] Fetching proposals...\n")
	assert.Contains(t, out, "] [2/3] LOGIC-01 turn 1/7\n")
	assert.Contains(t, out, "Snapshot saved to out.json (3 proposals, ")
	assert.Contains(t, out, "Published: https://cdn/data/debates.json")
}

func TestRendererFinishWithError(t *testing.T) {
	var buf bytes.Buffer
	r := newBarRenderer(&buf, true, 100)

	r.Handle(Event{Stage: StageTranslate, Message: "Translating...", Error: errors.New("boom")})
	r.Finish()

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "  Translating...\n  ["))
	assert.Contains(t, out, "\r\033[2K")
	assert.True(t, strings.HasSuffix(out, "  Error: boom\n"))
}
