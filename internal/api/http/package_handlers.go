package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/packager"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Remove tombstones a module, optionally dropping its tables
func (h *Handlers) Remove(c *gin.Context) {
	id, ok := moduleParam(c)
	if !ok {
		return
	}

	var opts types.RemoveOptions
	if c.Request.ContentLength > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxJSONSize)
		if err := c.ShouldBindJSON(&opts); err != nil {
			respondError(c, badRequest("invalid remove options", err))
			return
		}
	}
	// query form for operators using curl
	if c.Query("dropTables") == "true" {
		opts.DropTables = true
	}
	if confirm := c.Query("confirm"); confirm != "" {
		opts.Confirm = confirm
	}

	done := h.metrics.Track("remove")
	rec, err := h.controller.Remove(c.Request.Context(), id, opts)
	done(err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Purge deletes a removed module and frees its id
func (h *Handlers) Purge(c *gin.Context) {
	id, ok := moduleParam(c)
	if !ok {
		return
	}

	done := h.metrics.Track("purge")
	err := h.controller.Purge(c.Request.Context(), id)
	done(err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"module_id": id,
	})
}

// Export returns a module package as JSON, or as a tar+zstd archive when
// ?format=archive is set
func (h *Handlers) Export(c *gin.Context) {
	id, ok := moduleParam(c)
	if !ok {
		return
	}

	done := h.metrics.Track("export")
	pkg, err := h.controller.Export(c.Request.Context(), id)
	done(err)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") != "archive" {
		c.JSON(http.StatusOK, pkg)
		return
	}

	var buf bytes.Buffer
	if err := packager.WriteArchive(&buf, pkg); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.tar.zst"`, id, pkg.Descriptor.Version))
	c.Data(http.StatusOK, ContentTypeArchive, buf.Bytes())
}

// Import installs a package. JSON bodies carry a types.ImportRequest;
// archive bodies take mode and override from the query string.
func (h *Handlers) Import(c *gin.Context) {
	req, err := h.readImport(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.Mode == "" {
		req.Mode = types.ModeRejectIfExists
	}

	done := h.metrics.Track("import")
	rec, err := h.controller.Import(c.Request.Context(), req.Package, packager.ImportOptions{
		Mode:     req.Mode,
		Override: req.Override,
	})
	done(err)
	if err != nil {
		tracing.Logger(c.Request.Context(), h.logger).Info("Import refused",
			zap.String("module", req.Package.Descriptor.ID),
			zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"module": rec.ToStatus(),
		"digest": rec.ContentHash,
	})
}

func (h *Handlers) readImport(c *gin.Context) (types.ImportRequest, error) {
	var req types.ImportRequest

	if c.ContentType() == ContentTypeArchive {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxPackageBytes)
		pkg, err := packager.ReadArchive(c.Request.Body, h.opts.MaxPackageBytes)
		if err != nil {
			return req, err
		}
		req.Package = pkg
		req.Mode = types.ImportMode(c.Query("mode"))
		req.Override = c.Query("override") == "true"
		return req, nil
	}

	// base64 file content grows by a third
	limit := h.opts.MaxPackageBytes/3*4 + 1<<20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, badRequest("invalid import request", err)
	}
	if req.Package.Descriptor.ID == "" {
		return req, badRequest("package descriptor id is required", nil)
	}
	return req, nil
}
