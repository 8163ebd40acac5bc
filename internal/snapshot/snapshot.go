// Package snapshot freezes generated dialogues into the flat JSON artifact
// the front-end and replay read.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apresai/robodebate/internal/debate"
	"github.com/apresai/robodebate/internal/market"
)

// ErrEmpty is returned by Load for a snapshot with no proposals.
var ErrEmpty = errors.New("snapshot: no proposals")

// Snapshot is the debates.json document.
type Snapshot struct {
	GeneratedAt string  `json:"generatedAt"`
	Proposals   []Entry `json:"proposals"`
}

// Entry is a proposal flattened together with its mode and both language
// variants of its dialogue.
type Entry struct {
	market.Proposal
	Mode    debate.Mode                 `json:"mode"`
	Debates map[string][]debate.Message `json:"debates"`
}

// NewEntry pairs a proposal with its dialogue. The English variant is keyed
// "en"; the translation is keyed by lang.
func NewEntry(p market.Proposal, mode debate.Mode, en []debate.Message, lang string, translated []debate.Message) Entry {
	if p.Conditions == nil {
		p.Conditions = []market.Condition{}
	}
	return Entry{
		Proposal: p,
		Mode:     mode,
		Debates: map[string][]debate.Message{
			"en": en,
			lang: translated,
		},
	}
}

// Build stamps entries with generatedAt in RFC 3339 UTC.
func Build(generatedAt time.Time, entries []Entry) *Snapshot {
	if entries == nil {
		entries = []Entry{}
	}
	return &Snapshot{
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		Proposals:   entries,
	}
}

// Marshal renders s with two-space indentation.
func Marshal(s *Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Write creates parent directories and writes s to path.
func Write(path string, s *Snapshot) error {
	data, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot from path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if len(s.Proposals) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return &s, nil
}

// Dialogue returns the entry's messages for lang, falling back to English.
func (e Entry) Dialogue(lang string) []debate.Message {
	if msgs, ok := e.Debates[lang]; ok && len(msgs) > 0 {
		return msgs
	}
	return e.Debates["en"]
}
