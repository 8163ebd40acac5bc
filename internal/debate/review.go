package debate

import (
	"fmt"
	"strings"
)

// ReviewIssue describes a quality problem found in a dialogue.
type ReviewIssue struct {
	Category string // "count", "alternation", "empty", "label", "format", "length"
	Message  string
	Severity string // "error" or "warning"
}

func (i ReviewIssue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Category, i.Message)
}

const maxMessageLen = 600

// Review runs heuristic checks over a generated dialogue. It never calls the
// model; callers log what it finds.
func Review(msgs []Message, turns int) []ReviewIssue {
	var issues []ReviewIssue
	issues = append(issues, checkCount(msgs, turns)...)
	issues = append(issues, checkAlternation(msgs)...)
	issues = append(issues, checkText(msgs)...)
	return issues
}

// HasErrors reports whether any issue is an error rather than a warning.
func HasErrors(issues []ReviewIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}

func checkCount(msgs []Message, turns int) []ReviewIssue {
	if len(msgs) == turns {
		return nil
	}
	return []ReviewIssue{{
		Category: "count",
		Message:  fmt.Sprintf("Dialogue has %d messages, expected %d", len(msgs), turns),
		Severity: "error",
	}}
}

func checkAlternation(msgs []Message) []ReviewIssue {
	for i, m := range msgs {
		if want := SpeakerFor(i).ID; m.AgentID != want {
			return []ReviewIssue{{
				Category: "alternation",
				Message:  fmt.Sprintf("Message %d is from %s, expected %s", i+1, m.AgentID, want),
				Severity: "error",
			}}
		}
	}
	return nil
}

var personaLabels = []string{"logic-01:", "chaos-x:", "agent-a:", "agent-b:"}

func checkText(msgs []Message) []ReviewIssue {
	var issues []ReviewIssue
	for i, m := range msgs {
		text := strings.TrimSpace(m.Text)
		lower := strings.ToLower(text)

		if text == "" {
			issues = append(issues, ReviewIssue{
				Category: "empty",
				Message:  fmt.Sprintf("Message %d is empty", i+1),
				Severity: "error",
			})
			continue
		}

		for _, label := range personaLabels {
			if strings.HasPrefix(lower, label) {
				issues = append(issues, ReviewIssue{
					Category: "label",
					Message:  fmt.Sprintf("Message %d starts with a speaker label", i+1),
					Severity: "warning",
				})
				break
			}
		}

		if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[{") || strings.HasPrefix(text, "```") {
			issues = append(issues, ReviewIssue{
				Category: "format",
				Message:  fmt.Sprintf("Message %d looks like JSON or markup", i+1),
				Severity: "warning",
			})
		}

		if n := len([]rune(text)); n > maxMessageLen {
			issues = append(issues, ReviewIssue{
				Category: "length",
				Message:  fmt.Sprintf("Message %d is %d characters, limit is %d", i+1, n, maxMessageLen),
				Severity: "warning",
			})
		}
	}
	return issues
}
