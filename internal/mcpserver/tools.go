package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/apresai/robodebate/internal/debate"
	"github.com/apresai/robodebate/internal/llm"
	"github.com/apresai/robodebate/internal/market"
	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("robodebate-mcp")

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	proposalProps := map[string]any{
		"title": map[string]any{
			"type":        "string",
			"description": "Proposal title, e.g. \"Will Bitcoin reach $100K by end of 2025?\"",
		},
		"description": map[string]any{
			"type":        "string",
			"description": "Optional proposal description for extra context",
		},
	}

	return []mcp.Tool{
		{
			Name:        "get_trending",
			Description: "List the current trending prediction-market proposals (title, category, volume, outcomes and prices). Falls back to a built-in set when the feeds are down.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
		{
			Name:        "triage_proposal",
			Description: "Decide whether a proposal deserves a serious debate or a roast. Returns \"debate\" or \"roast\".",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: proposalProps,
				Required:   []string{"title"},
			},
		},
		{
			Name:        "quick_debate",
			Description: "Generate a 6-message debate between LOGIC-01 and CHAOS-X about a proposal in a single model call.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: proposalProps,
				Required:   []string{"title"},
			},
		},
		{
			Name:        "generate_snapshot",
			Description: "Run the full batch: fetch trending proposals, triage each, generate a multi-turn dialogue, translate it, and write the debates.json snapshot. Starts an async task and returns a task ID. Use get_snapshot_task to check progress.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"turns": map[string]any{
						"type":        "integer",
						"description": "Messages per dialogue (2-20)",
						"default":     7,
					},
					"language": map[string]any{
						"type":        "string",
						"description": "Translation target language code, e.g. ko, ja",
						"default":     "ko",
					},
					"seed": map[string]any{
						"type":        "integer",
						"description": "Seed for template selection; omit for a random run",
					},
					"publish": map[string]any{
						"type":        "boolean",
						"description": "Upload the snapshot to S3 when a bucket is configured",
						"default":     true,
					},
				},
			},
		},
		{
			Name:        "get_snapshot_task",
			Description: "Get the status of a snapshot task by ID, including progress and, once complete, where the snapshot was written and published.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "The task ID returned from generate_snapshot",
					},
				},
				Required: []string{"task_id"},
			},
		},
		{
			Name:        "list_snapshot_tasks",
			Description: "List snapshot tasks started since the server came up, newest first.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 20)",
						"default":     20,
					},
				},
			},
		},
		{
			Name:        "cancel_snapshot_task",
			Description: "Cancel a running snapshot task. The task is marked failed and nothing is written.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "The task ID returned from generate_snapshot",
					},
				},
				Required: []string{"task_id"},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	tasks    *TaskManager
	store    *Store
	trending market.Source
	client   llm.Client // nil when no provider key is configured
	keyEnv   string
	defaults GenerateRequest
	now      func() time.Time
	log      *slog.Logger
}

// NewHandlers creates tool handlers.
func NewHandlers(tasks *TaskManager, store *Store, deps Deps, cfg Config, logger *slog.Logger) *Handlers {
	return &Handlers{
		tasks:    tasks,
		store:    store,
		trending: deps.Trending,
		client:   deps.Client,
		keyEnv:   deps.KeyEnv,
		defaults: GenerateRequest{Turns: cfg.Turns, Language: cfg.Language, Publish: true},
		now:      time.Now,
		log:      logger,
	}
}

// HandleGetTrending returns the trending proposals.
func (h *Handlers) HandleGetTrending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.get_trending")
	defer span.End()

	props, err := h.trending.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch proposals: %v", err)), nil
	}
	span.SetAttributes(attribute.Int("result_count", len(props)))

	return jsonResult(map[string]any{
		"proposals": props,
		"count":     len(props),
	})
}

// HandleTriageProposal classifies a proposal as debate or roast.
func (h *Handlers) HandleTriageProposal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.triage_proposal")
	defer span.End()

	title := mcp.ParseString(req, "title", "")
	description := mcp.ParseString(req, "description", "")
	if title == "" {
		span.SetStatus(codes.Error, "missing title")
		return mcp.NewToolResultError("title is required"), nil
	}
	if h.client == nil {
		span.SetStatus(codes.Error, "no client")
		return mcp.NewToolResultError(h.keyEnv + " not configured"), nil
	}

	mode, err := debate.NewTriager(h.client).Classify(ctx, title, description)
	result := map[string]any{"mode": mode}
	if err != nil {
		// Classification errors default to debate; report the cause alongside.
		span.RecordError(err)
		result["note"] = fmt.Sprintf("classifier unavailable, defaulted to debate: %v", err)
	}
	span.SetAttributes(attribute.String("mode", string(mode)))

	return jsonResult(result)
}

// HandleQuickDebate generates a 6-message debate in one call.
func (h *Handlers) HandleQuickDebate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.quick_debate")
	defer span.End()

	title := mcp.ParseString(req, "title", "")
	description := mcp.ParseString(req, "description", "")
	if title == "" {
		span.SetStatus(codes.Error, "missing title")
		return mcp.NewToolResultError("title is required"), nil
	}
	if h.client == nil {
		span.SetStatus(codes.Error, "no client")
		return mcp.NewToolResultError(h.keyEnv + " not configured"), nil
	}

	msgs, err := debate.QuickDebate(ctx, h.client, title, description, h.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		h.log.ErrorContext(ctx, "Quick debate failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate debate: %v", err)), nil
	}
	span.SetAttributes(attribute.Int("messages", len(msgs)))

	return jsonResult(map[string]any{
		"messages": msgs,
		"count":    len(msgs),
	})
}

// HandleGenerateSnapshot starts a snapshot task.
func (h *Handlers) HandleGenerateSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.generate_snapshot")
	defer span.End()

	genReq := GenerateRequest{
		Turns:    parseIntParam(req, "turns", h.defaults.Turns),
		Language: mcp.ParseString(req, "language", h.defaults.Language),
		Seed:     int64(parseIntParam(req, "seed", 0)),
		Publish:  parseBoolParam(req, "publish", h.defaults.Publish),
	}

	span.SetAttributes(
		attribute.Int("turns", genReq.Turns),
		attribute.String("language", genReq.Language),
		attribute.Bool("publish", genReq.Publish),
	)

	id, err := h.tasks.StartTask(ctx, genReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start task failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to start task: %v", err)), nil
	}

	span.SetAttributes(attribute.String("task_id", id))
	h.log.InfoContext(ctx, "Snapshot generation started", "task_id", id, "turns", genReq.Turns, "language", genReq.Language)

	return jsonResult(map[string]any{
		"task_id": id,
		"status":  TaskStatusSubmitted,
		"message": "Snapshot generation started. Use get_snapshot_task with this task_id to check progress.",
	})
}

// HandleGetSnapshotTask returns a task's status.
func (h *Handlers) HandleGetSnapshotTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.get_snapshot_task")
	defer span.End()

	id := mcp.ParseString(req, "task_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing task_id")
		return mcp.NewToolResultError("task_id is required"), nil
	}
	span.SetAttributes(attribute.String("task_id", id))

	task, ok := h.store.GetTask(id)
	if !ok {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("task %s not found", id)), nil
	}
	return jsonResult(task)
}

// HandleListSnapshotTasks lists recent tasks.
func (h *Handlers) HandleListSnapshotTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.list_snapshot_tasks")
	defer span.End()

	limit := parseIntParam(req, "limit", 20)
	tasks := h.store.ListTasks(limit)
	span.SetAttributes(attribute.Int("result_count", len(tasks)))

	return jsonResult(map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// HandleCancelSnapshotTask stops a running task.
func (h *Handlers) HandleCancelSnapshotTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.cancel_snapshot_task")
	defer span.End()

	id := mcp.ParseString(req, "task_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing task_id")
		return mcp.NewToolResultError("task_id is required"), nil
	}
	span.SetAttributes(attribute.String("task_id", id))

	if err := h.tasks.CancelTask(id); err != nil {
		span.SetStatus(codes.Error, "not running")
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, _ := h.store.GetTask(id)
	return jsonResult(task)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return defaultVal
		}
		return int(n)
	default:
		return defaultVal
	}
}

func parseBoolParam(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	if v, ok := args[key].(bool); ok {
		return v
	}
	return defaultVal
}
