package httpapi

import (
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"

	"github.com/apresai/robodebate/internal/debate"
	"github.com/gin-gonic/gin"
)

const (
	trendingCacheControl = "s-maxage=21600, max-age=60, stale-while-revalidate=3600"
	errGenerateFailed    = "Failed to generate debate. Please try again."
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "system": "Proper Prediction Market Node"})
}

func (s *Server) trending(c *gin.Context) {
	props, err := s.cfg.Source.Fetch(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch trending markets"})
		return
	}
	c.Header("Cache-Control", trendingCacheControl)
	c.JSON(http.StatusOK, props)
}

type debateRequest struct {
	ProposalTitle       string `json:"proposalTitle"`
	ProposalDescription string `json:"proposalDescription"`
}

func (s *Server) debate(c *gin.Context) {
	var req debateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProposalTitle) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposalTitle is required"})
		return
	}
	if s.cfg.Client == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": s.cfg.KeyEnv + " not configured"})
		return
	}

	msgs, err := debate.QuickDebate(c.Request.Context(), s.cfg.Client, req.ProposalTitle, req.ProposalDescription, s.cfg.Now())
	if err != nil {
		_ = c.Error(err)
		slog.ErrorContext(c.Request.Context(), "Error generating debate", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errGenerateFailed})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// debateStream runs the full turn-by-turn engine and pushes each message as a
// server-sent event.
func (s *Server) debateStream(c *gin.Context) {
	ctx := c.Request.Context()
	title := strings.TrimSpace(c.Query("title"))
	description := c.Query("description")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	var mode debate.Mode
	if raw := c.Query("mode"); raw != "" {
		m, err := debate.ParseMode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be debate or roast"})
			return
		}
		mode = m
	}
	if s.cfg.Client == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": s.cfg.KeyEnv + " not configured"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	if mode == "" {
		m, err := debate.NewTriager(s.cfg.Client).Classify(ctx, title, description)
		if err != nil {
			slog.WarnContext(ctx, "Triage failed, defaulting to debate", "error", err)
		}
		mode = m
	}

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	sseWrite(c.Writer, "mode", gin.H{"mode": mode})
	flusher.Flush()

	opts := []debate.EngineOption{
		debate.WithRand(rand.New(rand.NewSource(s.cfg.Now().UnixNano()))),
		debate.WithTurnDelay(s.cfg.TurnDelay),
		debate.WithOnTurn(func(m debate.Message) {
			sseWrite(c.Writer, "message", m)
			flusher.Flush()
		}),
	}
	if s.cfg.Turns > 0 {
		opts = append(opts, debate.WithTurns(s.cfg.Turns))
	}

	msgs, err := debate.NewEngine(s.cfg.Client, opts...).
		Generate(ctx, debate.Topic{Title: title, Description: description}, mode)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		_ = c.Error(err)
		slog.ErrorContext(ctx, "Streamed debate failed", "error", err)
		sseWrite(c.Writer, "error", gin.H{"error": errGenerateFailed})
		flusher.Flush()
		return
	}

	sseWrite(c.Writer, "done", gin.H{"count": len(msgs), "mode": mode})
	flusher.Flush()
}

func (s *Server) snapshotFile(c *gin.Context) {
	info, err := os.Stat(s.cfg.SnapshotPath)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot generated yet"})
		return
	}
	c.Header("Cache-Control", "public, max-age=60")
	c.Header("Content-Type", "application/json")
	c.File(s.cfg.SnapshotPath)
}
