// Package controller - Routes HTTP requests to the analysis pipeline: photo
// uploads, running stats, per-user history and health checks.
package controller

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/nvr-ai/go-nutrition/pipeline"
	"github.com/nvr-ai/go-nutrition/portion"
	"github.com/nvr-ai/go-nutrition/profiler"
	"github.com/nvr-ai/go-nutrition/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes bounds the uploaded photo when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// Analyzer runs analyses and reports running stats.
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) *pipeline.AnalysisResult
	Stats() pipeline.Stats
}

// History lists stored analyses.
type History interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]store.Record, error)
}

// Options configures a Controller.
type Options struct {
	// MaxUploadBytes bounds the image part of an upload.
	MaxUploadBytes int64
	// Profiler, when set, is reported by the stats endpoint.
	Profiler *profiler.Profiler
	// History, when set, enables the history endpoint.
	History History
}

// Controller holds the HTTP handlers.
type Controller struct {
	analyzer Analyzer
	opts     Options
	logger   *zap.Logger
}

// New creates a Controller.
//
// Arguments:
//   - analyzer: The pipeline behind the analyze endpoint.
//   - opts: Upload limit and optional collaborators.
//   - logger: Request logger; nil disables logging.
//
// Returns:
//   - *Controller: The controller.
func New(analyzer Analyzer, opts Options, logger *zap.Logger) *Controller {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Controller{
		analyzer: analyzer,
		opts:     opts,
		logger:   logging.Component(logger, "controller"),
	}
}

// Router builds the gin engine.
//
// Returns:
//   - *gin.Engine: The engine with every route registered.
//
// @example
// c := controller.New(svc, controller.Options{Profiler: svc.Profiler}, logger)
// srv := &http.Server{Addr: ":8080", Handler: c.Router()}
func (c *Controller) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), c.requestLogger())
	r.MaxMultipartMemory = c.opts.MaxUploadBytes

	r.GET("/healthz", c.Health)

	v1 := r.Group("/v1")
	{
		v1.POST("/analyze", c.Analyze)
		v1.GET("/stats", c.Stats)
		v1.GET("/history/:user_id", c.History)
	}
	return r
}

// Health reports liveness.
func (c *Controller) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Unix(),
	})
}

// Analyze accepts a multipart upload with an "image" file part and optional
// user_id, meal_type, text, dietary_restrictions (comma separated),
// cultural_context and reference_objects (a JSON array) fields. Analysis
// failures still answer 200 with a fallback result.
func (c *Controller) Analyze(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.opts.MaxUploadBytes+1<<20)

	file, err := ctx.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	if file.Size > c.opts.MaxUploadBytes {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	data, err := readUpload(file)
	if err != nil {
		c.logger.Warn("read upload", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
		return
	}

	refs, err := parseReferences(ctx.PostForm("reference_objects"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := pipeline.Request{
		Image:               data,
		UserID:              ctx.PostForm("user_id"),
		MealType:            ctx.PostForm("meal_type"),
		Text:                ctx.PostForm("text"),
		DietaryRestrictions: splitList(ctx.PostForm("dietary_restrictions")),
		CulturalContext:     ctx.PostForm("cultural_context"),
		ReferenceObjects:    refs,
	}

	ctx.JSON(http.StatusOK, c.analyzer.Analyze(ctx.Request.Context(), req))
}

// Stats reports the running averages and, when configured, profiler stats.
func (c *Controller) Stats(ctx *gin.Context) {
	body := gin.H{"analyses": c.analyzer.Stats()}
	if c.opts.Profiler != nil {
		body["runtime"] = c.opts.Profiler.Stats()
	}
	ctx.JSON(http.StatusOK, body)
}

// History lists a user's stored analyses, newest first. The optional limit
// query parameter caps the count.
func (c *Controller) History(ctx *gin.Context) {
	if c.opts.History == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}

	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	records, err := c.opts.History.ListByUser(ctx.Request.Context(), ctx.Param("user_id"), limit)
	if err != nil {
		c.logger.Error("list history", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}

	docs := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		docs = append(docs, json.RawMessage(rec.Document))
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": ctx.Param("user_id"), "analyses": docs})
}

func (c *Controller) requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		c.logger.Info("request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "open upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "read upload")
	}
	return data, nil
}

func parseReferences(raw string) ([]portion.Reference, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var refs []portion.Reference
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return nil, errors.Wrap(err, "invalid reference_objects")
	}
	return refs, nil
}

// splitList splits a comma separated form value, dropping blanks.
func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
