// Package preview serves past digests and the run journal over HTTP.
package preview

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"newsdigest/internal/model"
)

// RunStore reads the run journal.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListSourceReports(ctx context.Context, runID string) ([]model.SourceReport, error)
	ListStories(ctx context.Context, runID string) ([]model.ScoredStory, error)
}

// ArchiveReader reads the archive index.
type ArchiveReader interface {
	Load() []model.ArchiveEntry
	Path() string
}

// ResultReader reads result files from the output directory.
type ResultReader interface {
	Read(name string) (*model.Result, error)
	Dir() string
}

// Options configure the server. Runs may be nil when the journal is disabled.
type Options struct {
	Archive ArchiveReader
	Results ResultReader
	Runs    RunStore
	APIKey  string
	Log     *slog.Logger
}

// NewServer creates the router with all routes configured.
func NewServer(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger(opts.Log))
	r.Use(gin.Recovery())

	h := &handler{archive: opts.Archive, results: opts.Results, runs: opts.Runs, log: opts.Log}

	r.GET("/health", h.health)

	// Everything except /health carries the same data and shares the key.
	protected := r.Group("/")
	if opts.APIKey != "" {
		protected.Use(authMiddleware(opts.APIKey))
	}
	protected.Static("/output", opts.Results.Dir())
	protected.StaticFile("/archive.json", opts.Archive.Path())

	api := protected.Group("/api")
	api.GET("/archive", h.archiveIndex)
	api.GET("/latest", h.latest)
	api.GET("/results/:date", h.result)
	api.GET("/runs", h.listRuns)
	api.GET("/runs/:id", h.getRun)

	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// authMiddleware accepts the key in X-API-Key or as a bearer token.
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				provided = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		switch {
		case provided == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
		case subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		default:
			c.Next()
		}
	}
}
