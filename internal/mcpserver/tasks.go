package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/apresai/robodebate/internal/observability"
	"github.com/apresai/robodebate/internal/pipeline"
	"github.com/apresai/robodebate/internal/progress"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrTooManyTasks is returned when the concurrent task cap is reached.
var ErrTooManyTasks = errors.New("max concurrent tasks reached")

// ErrTaskNotRunning is returned when cancelling a task that is unknown or
// already finished.
var ErrTaskNotRunning = errors.New("task is not running")

// errTaskCancelled is the cancel cause for a task stopped on request.
var errTaskCancelled = errors.New("task cancelled")

const cancelledMessage = "cancelled by request"

// GenerateRequest holds parameters for a snapshot task.
type GenerateRequest struct {
	Turns    int
	Language string
	Seed     int64
	// Publish uploads the snapshot when the runner has a publisher.
	Publish bool
}

// Runner is the batch the task manager drives. *pipeline.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
	CanPublish() bool
}

// TaskManager runs snapshot generations in the background.
type TaskManager struct {
	store     *Store
	runner    Runner
	outputDir string
	turnDelay time.Duration
	log       *slog.Logger
	baseCtx   context.Context // cancelled on SIGTERM for graceful shutdown

	mu       sync.Mutex
	cancels  map[string]context.CancelCauseFunc
	maxTasks int
	running  int
	wg       sync.WaitGroup
}

// NewTaskManager creates a task manager. Snapshots are written under
// outputDir as <task id>.json.
func NewTaskManager(baseCtx context.Context, store *Store, runner Runner, cfg Config, logger *slog.Logger) *TaskManager {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 2
	}
	return &TaskManager{
		store:     store,
		runner:    runner,
		outputDir: cfg.OutputDir,
		turnDelay: cfg.TurnDelay,
		log:       logger,
		baseCtx:   baseCtx,
		cancels:   make(map[string]context.CancelCauseFunc),
		maxTasks:  maxTasks,
	}
}

// StartTask records a task and starts the pipeline in a goroutine. It returns
// the task ID immediately.
func (tm *TaskManager) StartTask(ctx context.Context, req GenerateRequest) (string, error) {
	if req.Turns < pipeline.MinTurns || req.Turns > pipeline.MaxTurns {
		return "", fmt.Errorf("turns must be between %d and %d, got %d", pipeline.MinTurns, pipeline.MaxTurns, req.Turns)
	}
	lang, err := pipeline.NormalizeLanguage(req.Language)
	if err != nil {
		return "", err
	}
	req.Language = lang

	id, err := NewTaskID()
	if err != nil {
		return "", err
	}

	tm.mu.Lock()
	if tm.running >= tm.maxTasks {
		tm.mu.Unlock()
		return "", fmt.Errorf("%w (%d)", ErrTooManyTasks, tm.maxTasks)
	}
	tm.running++

	// The request context ends when the tool call returns; keep its trace only.
	taskCtx := observability.DetachTraceContextFrom(ctx, tm.baseCtx)
	taskCtx, cancel := context.WithCancelCause(taskCtx)
	tm.cancels[id] = cancel
	tm.mu.Unlock()

	if err := tm.store.CreateTask(id, req.Turns, req.Language); err != nil {
		cancel(nil)
		tm.release(id)
		return "", fmt.Errorf("create task: %w", err)
	}

	tm.wg.Add(1)
	go tm.runPipeline(taskCtx, id, req)

	return id, nil
}

// CancelTask stops a running task and marks it failed.
func (tm *TaskManager) CancelTask(id string) error {
	tm.mu.Lock()
	cancel, ok := tm.cancels[id]
	tm.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotRunning, id)
	}
	// Fail first so the runner's own ctx error never wins the status.
	tm.store.FailTask(id, cancelledMessage)
	cancel(errTaskCancelled)
	tm.log.Info("Task cancelled", "task_id", id)
	return nil
}

// Wait blocks until every started task has finished.
func (tm *TaskManager) Wait() {
	tm.wg.Wait()
}

// Running returns the number of tasks in flight.
func (tm *TaskManager) Running() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.running
}

func (tm *TaskManager) release(id string) {
	tm.mu.Lock()
	delete(tm.cancels, id)
	tm.running--
	tm.mu.Unlock()
}

func (tm *TaskManager) runPipeline(ctx context.Context, id string, req GenerateRequest) {
	defer tm.wg.Done()

	ctx, span := tracer.Start(ctx, "snapshot_task.run",
		trace.WithAttributes(attribute.String("task_id", id)),
	)
	defer span.End()

	defer func() {
		switch {
		case errors.Is(context.Cause(ctx), errTaskCancelled):
			tm.store.FailTask(id, cancelledMessage)
		case ctx.Err() != nil:
			tm.store.FailTask(id, "server shutdown during processing")
			tm.log.Info("Marked task as failed due to shutdown", "task_id", id)
		}
		tm.release(id)
	}()

	log := tm.log.With("task_id", id)

	var lastStage progress.Stage
	progressCb := func(evt progress.Event) {
		if evt.Error != nil {
			return
		}
		if evt.Stage != lastStage {
			span.AddEvent("stage_transition",
				trace.WithAttributes(
					attribute.String("stage", string(evt.Stage)),
					attribute.Float64("percent", evt.Percent),
				),
			)
			lastStage = evt.Stage
		}
		tm.store.UpdateProgress(id, mapStage(evt.Stage), evt.Percent, evt.Message)
	}

	if err := os.MkdirAll(tm.outputDir, 0755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create output dir failed")
		tm.store.FailTask(id, fmt.Sprintf("create output dir: %v", err))
		return
	}

	opts := pipeline.Options{
		Output:     filepath.Join(tm.outputDir, id+".json"),
		Turns:      req.Turns,
		Language:   req.Language,
		TurnDelay:  tm.turnDelay,
		Seed:       req.Seed,
		Publish:    req.Publish && tm.runner.CanPublish(),
		OnProgress: progressCb,
	}

	start := time.Now()
	log.InfoContext(ctx, "Snapshot task starting",
		"turns", opts.Turns, "language", opts.Language, "publish", opts.Publish)

	res, err := tm.runner.Run(ctx, opts)
	if err != nil {
		elapsed := time.Since(start).Round(time.Second)
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		log.ErrorContext(ctx, "Snapshot task failed", "error", err, "elapsed", elapsed.String())
		tm.store.FailTask(id, err.Error())
		return
	}

	count := len(res.Snapshot.Proposals)
	tm.store.CompleteTask(id, res.Path, res.URL, count)

	span.SetAttributes(
		attribute.Int("proposals", count),
		attribute.String("url", res.URL),
	)
	span.SetStatus(codes.Ok, "complete")
	log.InfoContext(ctx, "Snapshot task complete",
		"proposals", count, "path", res.Path, "url", res.URL,
		"elapsed", time.Since(start).Round(time.Second).String())
}

// mapStage maps a pipeline progress stage to a task status.
func mapStage(stage progress.Stage) TaskStatus {
	switch stage {
	case progress.StageFetch:
		return TaskStatusFetching
	case progress.StageTriage, progress.StageDialogue, progress.StageTranslate:
		return TaskStatusDebating
	case progress.StageWrite:
		return TaskStatusWriting
	case progress.StagePublish:
		return TaskStatusPublishing
	case progress.StageComplete:
		// CompleteTask sets the terminal state once the result is in hand.
		return TaskStatusWriting
	default:
		return TaskStatusSubmitted
	}
}
