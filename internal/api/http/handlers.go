package http

import (
	"context"
	"net/http"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Content types accepted and produced by the package endpoints
const (
	ContentTypeJSON    = "application/json"
	ContentTypeArchive = "application/zstd"
)

// Options tunes request handling
type Options struct {
	MaxPackageBytes int64
	Version         string
}

// Handlers serves the module registry over HTTP
type Handlers struct {
	controller *lifecycle.Controller
	metrics    *HandlerMetrics
	opts       Options
	started    time.Time
	logger     *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(controller *lifecycle.Controller, metrics *HandlerMetrics, opts Options, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPackageBytes <= 0 {
		opts.MaxPackageBytes = utils.DefaultPackageSize
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Handlers{
		controller: controller,
		metrics:    metrics,
		opts:       opts,
		started:    time.Now(),
		logger:     logger,
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Admin Console module registry",
		"version": h.opts.Version,
	})
}

// Health reports registry counters
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"modules":        h.controller.Store().Counts(),
		"revision":       h.controller.Store().Revision(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// Status lists every module with its lifecycle state
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"modules": h.controller.Status(),
	})
}

// GetModule returns the full record of one module
func (h *Handlers) GetModule(c *gin.Context) {
	id, ok := moduleParam(c)
	if !ok {
		return
	}
	rec, err := h.controller.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Navigation returns the navigation entries of active modules
func (h *Handlers) Navigation(c *gin.Context) {
	table := h.controller.MountTable()
	c.JSON(http.StatusOK, gin.H{
		"navigation": table.Navigation,
		"revision":   table.Revision,
	})
}

// Routes returns the mounted API routes of active modules
func (h *Handlers) Routes(c *gin.Context) {
	table := h.controller.MountTable()
	c.JSON(http.StatusOK, gin.H{
		"routes":   table.Routes,
		"revision": table.Revision,
	})
}

// Rediscover rescans the module source area. Per-module parse failures are
// reported in the summary, not as a request failure.
func (h *Handlers) Rediscover(c *gin.Context) {
	done := h.metrics.Track("rediscover")
	summary, err := h.controller.Rediscover(c.Request.Context())
	done(err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// moduleParam extracts and validates the :id path parameter
func moduleParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := utils.ValidateID(id, "module_id", true); err != nil {
		respondError(c, badRequest(err.Error(), nil))
		return "", false
	}
	return id, true
}

// transitionHandler adapts a single-id lifecycle operation
func (h *Handlers) transitionHandler(operation string, op func(ctx context.Context, id string) (types.Record, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := moduleParam(c)
		if !ok {
			return
		}

		done := h.metrics.Track(operation)
		rec, err := op(c.Request.Context(), id)
		done(err)
		if err != nil {
			tracing.Logger(c.Request.Context(), h.logger).Info("Module operation refused",
				zap.String("operation", operation),
				zap.String("module", id),
				zap.Error(err))
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// Validate runs discovered -> validated
func (h *Handlers) Validate(c *gin.Context) {
	h.transitionHandler("validate", h.controller.Validate)(c)
}

// Activate makes a module live
func (h *Handlers) Activate(c *gin.Context) {
	h.transitionHandler("activate", h.controller.Activate)(c)
}

// Disable takes an active module offline, keeping its tables
func (h *Handlers) Disable(c *gin.Context) {
	h.transitionHandler("disable", h.controller.Disable)(c)
}
