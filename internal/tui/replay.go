// Package tui plays a snapshot back in the terminal with a typewriter effect.
package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/apresai/robodebate/internal/debate"
	"github.com/apresai/robodebate/internal/snapshot"
)

const (
	baseCharDelay = 30 * time.Millisecond
	// pauseTicks is how many ticks a finished message lingers before the next.
	pauseTicks = 25
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	roastBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#FF5555")).
			Padding(0, 1)

	debateBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#04B575")).
			Padding(0, 1)

	speakerStyles = map[debate.AgentID]lipgloss.Style{
		debate.AgentA: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4FC3F7")),
		debate.AgentB: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5370")),
	}

	textStyle = lipgloss.NewStyle().PaddingLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)
)

type tickMsg struct{}

// Model is the bubbletea model for snapshot replay.
type Model struct {
	snap      *snapshot.Snapshot
	lang      string
	charDelay time.Duration

	proposal int
	msg      int // index of the message being typed
	shown    int // runes of the current message revealed
	hold     int
	ticking  bool
	width    int
	quitting bool
}

// New builds a replay model. speed scales the typing rate; 2 types twice as
// fast as 1, and values <= 0 mean 1.
func New(snap *snapshot.Snapshot, lang string, speed float64) Model {
	if speed <= 0 {
		speed = 1
	}
	if lang == "" {
		lang = "en"
	}
	return Model{
		snap:      snap,
		lang:      lang,
		charDelay: time.Duration(float64(baseCharDelay) / speed),
		ticking:   true,
	}
}

// Run plays snap until the user quits.
func Run(snap *snapshot.Snapshot, lang string, speed float64) error {
	p := tea.NewProgram(New(snap, lang, speed), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.charDelay, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) dialogue() []debate.Message {
	if len(m.snap.Proposals) == 0 {
		return nil
	}
	return m.snap.Proposals[m.proposal].Dialogue(m.lang)
}

// Finished reports whether the current proposal has been fully typed out.
func (m Model) Finished() bool {
	msgs := m.dialogue()
	if len(msgs) == 0 {
		return true
	}
	last := len(msgs) - 1
	return m.msg == last && m.shown >= utf8.RuneCountInString(msgs[last].Text)
}

// advance moves the typewriter one step and reports whether more steps remain.
func (m *Model) advance() bool {
	msgs := m.dialogue()
	if m.msg >= len(msgs) {
		return false
	}
	if m.shown < utf8.RuneCountInString(msgs[m.msg].Text) {
		m.shown++
		return true
	}
	if m.msg == len(msgs)-1 {
		return false
	}
	if m.hold < pauseTicks {
		m.hold++
		return true
	}
	m.msg++
	m.shown = 0
	m.hold = 0
	return true
}

func (m *Model) skip() {
	msgs := m.dialogue()
	if m.msg < len(msgs) {
		m.shown = utf8.RuneCountInString(msgs[m.msg].Text)
		m.hold = pauseTicks
	}
}

func (m *Model) selectProposal(i int) {
	m.proposal = i
	m.msg = 0
	m.shown = 0
	m.hold = 0
}

// restart schedules a tick unless one is already pending.
func (m Model) restart() (tea.Model, tea.Cmd) {
	if m.ticking {
		return m, nil
	}
	m.ticking = true
	return m, m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.ticking = false
		if m.advance() {
			m.ticking = true
			return m, m.tick()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit

		case " ", "enter":
			m.skip()
			return m.restart()

		case "n", "right", "l":
			if m.proposal < len(m.snap.Proposals)-1 {
				m.selectProposal(m.proposal + 1)
			}
			return m.restart()

		case "p", "left", "h":
			if m.proposal > 0 {
				m.selectProposal(m.proposal - 1)
			}
			return m.restart()
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if len(m.snap.Proposals) == 0 {
		return "No proposals in snapshot.\n"
	}

	var b strings.Builder
	entry := m.snap.Proposals[m.proposal]

	badge := debateBadge.Render("DEBATE")
	if entry.Mode == debate.ModeRoast {
		badge = roastBadge.Render("ROAST")
	}
	title := fmt.Sprintf("[%d/%d] %s", m.proposal+1, len(m.snap.Proposals), entry.Title)
	b.WriteString(headerBorder.Render(titleStyle.Render(title) + " " + badge))
	b.WriteString("\n")

	meta := []string{entry.Category, entry.Volume}
	for _, c := range entry.Conditions {
		parts := make([]string, 0, len(c.Outcomes))
		for i, o := range c.Outcomes {
			if i < len(c.Prices) {
				parts = append(parts, fmt.Sprintf("%s %d%%", o, c.Prices[i]))
			}
		}
		meta = append(meta, strings.Join(parts, " / "))
	}
	b.WriteString(metaStyle.Render(strings.Join(meta, " | ")))
	b.WriteString("\n\n")

	wrap := textStyle
	if m.width > 4 {
		wrap = wrap.Width(m.width - 2)
	}

	msgs := m.dialogue()
	for i := 0; i <= m.msg && i < len(msgs); i++ {
		text := msgs[i].Text
		if i == m.msg {
			text = string([]rune(text)[:m.shown])
			if !m.Finished() && m.shown < utf8.RuneCountInString(msgs[i].Text) {
				text += "_"
			}
		}
		name := string(msgs[i].AgentID)
		if p, ok := debate.PersonaFor(msgs[i].AgentID); ok {
			name = p.Name
		}
		style, ok := speakerStyles[msgs[i].AgentID]
		if !ok {
			style = lipgloss.NewStyle().Bold(true)
		}
		b.WriteString(style.Render(name) + "\n")
		b.WriteString(wrap.Render(text) + "\n\n")
	}

	b.WriteString(helpStyle.Render("  space skip | n/p next/prev proposal | q quit"))
	b.WriteString("\n")
	return b.String()
}
