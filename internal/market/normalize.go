package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// moverMarket is one entry of the biggest-movers feed.
type moverMarket struct {
	ID              flexString   `json:"id"`
	Question        string       `json:"question"`
	Slug            string       `json:"slug"`
	Image           string       `json:"image"`
	OutcomePrices   stringList   `json:"outcomePrices"`
	LivePriceChange flexFloat    `json:"livePriceChange"`
	Events          []moverEvent `json:"events"`
}

type moverEvent struct {
	Volume flexFloat `json:"volume"`
	Image  string    `json:"image"`
}

// gammaEvent is one entry of the Gamma events feed.
type gammaEvent struct {
	ID          flexString    `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Slug        string        `json:"slug"`
	Image       string        `json:"image"`
	Category    string        `json:"category"`
	Volume      flexFloat     `json:"volume"`
	Markets     []gammaMarket `json:"markets"`
}

type gammaMarket struct {
	Question      string     `json:"question"`
	Outcomes      stringList `json:"outcomes"`
	OutcomePrices stringList `json:"outcomePrices"`
}

var defaultOutcomes = []string{"Yes", "No"}

// decodeMovers accepts either {"markets": [...]} or a bare array.
func decodeMovers(body []byte, out *[]moverMarket) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}
	var wrapper struct {
		Markets []moverMarket `json:"markets"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return err
	}
	*out = wrapper.Markets
	return nil
}

func normalizeMovers(markets []moverMarket, now func() time.Time) []Proposal {
	props := make([]Proposal, 0, MaxProposals)
	for _, m := range markets {
		if m.Question == "" {
			continue
		}
		if len(props) == MaxProposals {
			break
		}

		var volume float64
		image := m.Image
		if len(m.Events) > 0 {
			volume = float64(m.Events[0].Volume)
			if image == "" {
				image = m.Events[0].Image
			}
		}

		id := string(m.ID)
		if id == "" {
			id = fallbackID(now)
		}

		props = append(props, Proposal{
			ID:          id,
			Title:       m.Question,
			Description: "",
			Volume:      FormatVolume(volume),
			Image:       image,
			Category:    "Breaking",
			Slug:        m.Slug,
			Conditions: []Condition{
				NewCondition(m.Question, defaultOutcomes, m.OutcomePrices),
			},
			PriceChange: float64(m.LivePriceChange),
		})
	}
	return props
}

func normalizeEvents(events []gammaEvent, now func() time.Time) []Proposal {
	props := make([]Proposal, 0, MaxProposals)
	for _, e := range events {
		if e.Title == "" || e.Image == "" {
			continue
		}
		if len(props) == MaxProposals {
			break
		}

		id := string(e.ID)
		if id == "" {
			id = fallbackID(now)
		}
		category := e.Category
		if category == "" {
			category = "General"
		}

		conds := make([]Condition, 0, 3)
		for i, m := range e.Markets {
			if i == 3 {
				break
			}
			question := m.Question
			if question == "" {
				question = e.Title
			}
			outcomes := []string(m.Outcomes)
			if len(outcomes) == 0 {
				outcomes = defaultOutcomes
			}
			conds = append(conds, NewCondition(question, outcomes, m.OutcomePrices))
		}

		props = append(props, Proposal{
			ID:          id,
			Title:       e.Title,
			Description: e.Description,
			Volume:      FormatEventVolume(float64(e.Volume)),
			Image:       e.Image,
			Category:    category,
			Slug:        e.Slug,
			Conditions:  conds,
		})
	}
	return props
}

// NewCondition builds a Condition whose prices line up one-to-one with
// outcomes: missing prices become 0 and surplus prices are dropped.
func NewCondition(question string, outcomes []string, rawPrices []string) Condition {
	out := append([]string(nil), outcomes...)
	prices := make([]int, len(out))
	for i := range prices {
		if i < len(rawPrices) {
			prices[i] = ParsePrice(rawPrices[i])
		}
	}
	return Condition{Question: question, Outcomes: out, Prices: prices}
}

// ParsePrice converts a 0..1 probability string to a rounded 0..100
// percentage. Anything unparseable is 0.
func ParsePrice(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	p := int(math.Round(f * 100))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// FormatVolume renders a dollar volume as $X.XM, $XK or $N.
func FormatVolume(v float64) string {
	switch {
	case v > 1_000_000:
		return fmt.Sprintf("$%.1fM", v/1_000_000)
	case v > 1_000:
		return fmt.Sprintf("$%.0fK", v/1_000)
	default:
		return fmt.Sprintf("$%d", int64(math.Round(v)))
	}
}

// FormatEventVolume renders a Gamma event volume in millions, or N/A.
func FormatEventVolume(v float64) string {
	if v == 0 {
		return "N/A"
	}
	return fmt.Sprintf("$%.1fM", v/1_000_000)
}

// stringList decodes a JSON array of strings or numbers, or a string that
// itself holds such an array (Gamma encodes outcomes that way). A value that
// is neither decodes to an empty list, or to one element for a bare scalar,
// so one malformed market never fails the whole feed.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*l = nil
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	switch data[0] {
	case '"':
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return nil
		}
		if !strings.HasPrefix(inner, "[") {
			// A bare scalar; keep it so prices still line up by position.
			*l = stringList{inner}
			return nil
		}
		data = []byte(inner)
	case '[':
	case '{':
		return nil
	default:
		*l = stringList{string(data)}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make(stringList, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(bytes.TrimSpace(r)))
	}
	*l = out
	return nil
}

// flexFloat decodes a number or a numeric string; anything else is 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) {
			*f = 0
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// flexString decodes a string or a number into its textual form.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}
