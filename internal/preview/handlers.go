package preview

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"newsdigest/internal/archive"
	"newsdigest/internal/model"
	"newsdigest/internal/output"
	"newsdigest/internal/storage"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type handler struct {
	archive ArchiveReader
	results ResultReader
	runs    RunStore
	log     *slog.Logger
}

type runView struct {
	ID           string     `json:"id"`
	Date         string     `json:"date"`
	Status       string     `json:"status"`
	ItemsFetched int        `json:"items_fetched"`
	ItemsUnique  int        `json:"items_unique"`
	Stories      int        `json:"stories"`
	Actions      int        `json:"actions"`
	OutputFile   string     `json:"output_file,omitempty"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type sourceView struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Items      int    `json:"items"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func newRunView(r model.Run) runView {
	return runView{
		ID:           r.ID,
		Date:         r.Date,
		Status:       string(r.Status),
		ItemsFetched: r.ItemsFetched,
		ItemsUnique:  r.ItemsUnique,
		Stories:      r.Stories,
		Actions:      r.Actions,
		OutputFile:   r.OutputFile,
		Error:        r.Error,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"archived":  len(h.archive.Load()),
		"journal":   h.runs != nil,
	})
}

func (h *handler) archiveIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"summaries": h.archive.Load()})
}

func (h *handler) latest(c *gin.Context) {
	h.serveResult(c, output.LatestFile)
}

func (h *handler) result(c *gin.Context) {
	date := c.Param("date")
	if _, err := time.Parse(archive.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	h.serveResult(c, output.FileName(date))
}

func (h *handler) serveResult(c *gin.Context, name string) {
	r, err := h.results.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}
	if err != nil {
		h.log.Error("read result", "file", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read result"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *handler) listRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run journal disabled"})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	views := make([]runView, len(runs))
	for i, r := range runs {
		views[i] = newRunView(r)
	}
	c.JSON(http.StatusOK, gin.H{"runs": views, "total": len(views)})
}

func (h *handler) getRun(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run journal disabled"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	run, err := h.runs.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.log.Error("get run", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	reports, err := h.runs.ListSourceReports(ctx, id)
	if err != nil {
		h.log.Error("list source reports", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	stories, err := h.runs.ListStories(ctx, id)
	if err != nil {
		h.log.Error("list stories", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	sources := make([]sourceView, len(reports))
	for i, r := range reports {
		sources[i] = sourceView{
			Source:     r.Source,
			Status:     string(r.Status),
			Items:      r.Items,
			Error:      r.Error,
			DurationMS: r.Duration.Milliseconds(),
		}
	}
	if stories == nil {
		stories = []model.ScoredStory{}
	}
	c.JSON(http.StatusOK, gin.H{"run": newRunView(*run), "sources": sources, "stories": stories})
}
