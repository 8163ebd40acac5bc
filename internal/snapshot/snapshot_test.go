package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apresai/robodebate/internal/debate"
	"github.com/apresai/robodebate/internal/market"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() Entry {
	p := market.Proposal{
		ID:       "m1",
		Title:    "Will it snow in Miami?",
		Volume:   "$1.2M",
		Category: "Breaking",
		Conditions: []market.Condition{
			{Question: "Will it snow in Miami?", Outcomes: []string{"Yes", "No"}, Prices: []int{3, 97}},
		},
	}
	en := []debate.Message{
		{ID: "msg-1", AgentID: debate.AgentA, Text: "Zero."},
		{ID: "msg-2", AgentID: debate.AgentB, Text: "LOL."},
	}
	ko := []debate.Message{
		{ID: "msg-1", AgentID: debate.AgentA, Text: "영."},
		{ID: "msg-2", AgentID: debate.AgentB, Text: "ㅋㅋ."},
	}
	return NewEntry(p, debate.ModeRoast, en, "ko", ko)
}

func TestEntryIsFlattened(t *testing.T) {
	s := Build(time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("KST", 9*3600)), []Entry{sampleEntry()})
	assert.Equal(t, "2026-03-01T00:30:00Z", s.GeneratedAt)

	data, err := Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	props := raw["proposals"].([]any)
	require.Len(t, props, 1)

	entry := props[0].(map[string]any)
	assert.Equal(t, "m1", entry["id"])
	assert.Equal(t, "roast", entry["mode"])
	assert.Equal(t, "Breaking", entry["category"])
	assert.NotContains(t, entry, "Proposal")

	debates := entry["debates"].(map[string]any)
	assert.Len(t, debates["en"], 2)
	assert.Len(t, debates["ko"], 2)

	msg := debates["en"].([]any)[0].(map[string]any)
	assert.Equal(t, "agent-a", msg["agentId"])
	assert.NotContains(t, msg, "timestamp")
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "data", "debates.json")
	want := Build(time.Unix(0, 0), []Entry{sampleEntry()})

	require.NoError(t, Write(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Stable output for identical input.
	first, _ := os.ReadFile(path)
	require.NoError(t, Write(path, want))
	second, _ := os.ReadFile(path)
	assert.Equal(t, first, second)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, Write(empty, Build(time.Now(), nil)))
	_, err = Load(empty)
	assert.ErrorIs(t, err, ErrEmpty)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestEntryDialogue(t *testing.T) {
	e := sampleEntry()
	assert.Equal(t, "영.", e.Dialogue("ko")[0].Text)
	assert.Equal(t, "Zero.", e.Dialogue("ja")[0].Text)
	assert.Equal(t, "Zero.", e.Dialogue("en")[0].Text)
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Publisher(t *testing.T) {
	fake := &fakeS3{}
	url, err := NewS3Publisher(fake, "debates-bucket", "https://cdn.example.com/").Publish(context.Background(), []byte(`{"proposals":[]}`))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/data/debates.json", url)
	assert.Equal(t, "debates-bucket", *fake.input.Bucket)
	assert.Equal(t, ObjectKey, *fake.input.Key)
	assert.Equal(t, "application/json", *fake.input.ContentType)
	assert.Equal(t, "public, max-age=60", *fake.input.CacheControl)
	assert.Equal(t, int64(16), *fake.input.ContentLength)
	assert.Equal(t, `{"proposals":[]}`, string(fake.body))

	url, err = NewS3Publisher(fake, "b", "").Publish(context.Background(), []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "s3://b/data/debates.json", url)

	_, err = NewS3Publisher(&fakeS3{err: errors.New("denied")}, "b", "").Publish(context.Background(), nil)
	assert.ErrorContains(t, err, "denied")
}
