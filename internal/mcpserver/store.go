package mcpserver

import (
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TaskStatus is the lifecycle state of a snapshot task.
type TaskStatus string

const (
	TaskStatusSubmitted  TaskStatus = "submitted"
	TaskStatusFetching   TaskStatus = "fetching"
	TaskStatusDebating   TaskStatus = "debating"
	TaskStatusWriting    TaskStatus = "writing"
	TaskStatusPublishing TaskStatus = "publishing"
	TaskStatusComplete   TaskStatus = "complete"
	TaskStatusFailed     TaskStatus = "failed"
)

// Done reports whether the status is terminal.
func (s TaskStatus) Done() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed
}

// Task is the record kept for one generate_snapshot call.
type Task struct {
	ID              string     `json:"task_id"`
	Status          TaskStatus `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	StageMessage    string     `json:"stage_message,omitempty"`
	Turns           int        `json:"turns"`
	Language        string     `json:"language"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
	CompletedAt     string     `json:"completed_at,omitempty"`
	OutputPath      string     `json:"output_path,omitempty"`
	URL             string     `json:"url,omitempty"`
	ProposalCount   int        `json:"proposal_count,omitempty"`
	ErrorMessage    string     `json:"error,omitempty"`
}

// Store keeps task records in memory. Records are lost on restart.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

// NewStore creates an empty task store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*Task), now: time.Now}
}

// NewTaskID generates a ULID (time-ordered, lexicographically sortable).
func NewTaskID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// CreateTask inserts a task with status=submitted.
func (s *Store) CreateTask(id string, turns int, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; ok {
		return fmt.Errorf("task %s already exists", id)
	}
	now := s.stamp()
	s.tasks[id] = &Task{
		ID:        id,
		Status:    TaskStatusSubmitted,
		Turns:     turns,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// UpdateProgress records the current stage of a running task. Updates to a
// finished task are ignored.
func (s *Store) UpdateProgress(id string, status TaskStatus, percent float64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status.Done() {
		return
	}
	t.Status = status
	t.ProgressPercent = percent
	t.StageMessage = message
	t.UpdatedAt = s.stamp()
}

// CompleteTask marks a task complete with its output location.
func (s *Store) CompleteTask(id, outputPath, url string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return
	}
	now := s.stamp()
	t.Status = TaskStatusComplete
	t.ProgressPercent = 1.0
	t.StageMessage = "Complete"
	t.OutputPath = outputPath
	t.URL = url
	t.ProposalCount = count
	t.UpdatedAt = now
	t.CompletedAt = now
}

// FailTask marks a task failed. A task that already finished keeps its state.
func (s *Store) FailTask(id, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status.Done() {
		return
	}
	now := s.stamp()
	t.Status = TaskStatusFailed
	t.ErrorMessage = errMsg
	t.UpdatedAt = now
	t.CompletedAt = now
}

// GetTask returns a copy of the task, or false if it does not exist.
func (s *Store) GetTask(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// ListTasks returns up to limit tasks, newest first.
func (s *Store) ListTasks(limit int) []Task {
	s.mu.RLock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	s.mu.RUnlock()

	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
