package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/go-resty/resty/v2"
)

const (
	prefix      = "/registry"
	archiveType = "application/zstd"
)

// ImportResult is the server's answer to an import
type ImportResult struct {
	Module types.ModuleStatus `json:"module"`
	Digest string             `json:"digest"`
}

func modulePath(op, moduleID string) string {
	return prefix + "/" + op + "/" + url.PathEscape(moduleID)
}

// Status lists every module
func (c *Client) Status(ctx context.Context) ([]types.ModuleStatus, error) {
	var out struct {
		Modules []types.ModuleStatus `json:"modules"`
	}
	if _, err := c.do(ctx, http.MethodGet, prefix+"/status", true, nil, &out); err != nil {
		return nil, err
	}
	return out.Modules, nil
}

// Get returns the full record of a module
func (c *Client) Get(ctx context.Context, moduleID string) (types.Record, error) {
	var rec types.Record
	_, err := c.do(ctx, http.MethodGet, modulePath("modules", moduleID), true, nil, &rec)
	return rec, err
}

// Routes returns the mounted API routes of active modules
func (c *Client) Routes(ctx context.Context) ([]lifecycle.MountedRoute, error) {
	var out struct {
		Routes []lifecycle.MountedRoute `json:"routes"`
	}
	if _, err := c.do(ctx, http.MethodGet, prefix+"/routes", true, nil, &out); err != nil {
		return nil, err
	}
	return out.Routes, nil
}

// Navigation returns the navigation entries of active modules
func (c *Client) Navigation(ctx context.Context) ([]lifecycle.MountedNav, error) {
	var out struct {
		Navigation []lifecycle.MountedNav `json:"navigation"`
	}
	if _, err := c.do(ctx, http.MethodGet, prefix+"/navigation", true, nil, &out); err != nil {
		return nil, err
	}
	return out.Navigation, nil
}

// Rediscover rescans the server's module source area
func (c *Client) Rediscover(ctx context.Context) (types.ScanSummary, error) {
	var summary types.ScanSummary
	_, err := c.do(ctx, http.MethodPost, prefix+"/rediscover", true, nil, &summary)
	return summary, err
}

// Export downloads a module package
func (c *Client) Export(ctx context.Context, moduleID string) (types.Package, error) {
	var pkg types.Package
	_, err := c.do(ctx, http.MethodGet, modulePath("export", moduleID), true, nil, &pkg)
	return pkg, err
}

// ExportArchive downloads a module package as a tar+zstd archive
func (c *Client) ExportArchive(ctx context.Context, moduleID string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, modulePath("export", moduleID), true, func(r *resty.Request) {
		r.SetQueryParam("format", "archive").SetHeader("Accept", archiveType)
	}, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Import uploads a package
func (c *Client) Import(ctx context.Context, req types.ImportRequest) (ImportResult, error) {
	var out ImportResult
	_, err := c.do(ctx, http.MethodPost, prefix+"/import", true, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(req)
	}, &out)
	return out, err
}

// ImportArchive uploads a tar+zstd package archive
func (c *Client) ImportArchive(ctx context.Context, archive []byte, mode types.ImportMode, override bool) (ImportResult, error) {
	var out ImportResult
	_, err := c.do(ctx, http.MethodPost, prefix+"/import", true, func(r *resty.Request) {
		r.SetHeader("Content-Type", archiveType).
			SetQueryParam("mode", string(mode)).
			SetQueryParam("override", strconv.FormatBool(override)).
			SetBody(archive)
	}, &out)
	return out, err
}

// Validate runs discovered -> validated
func (c *Client) Validate(ctx context.Context, moduleID string) (types.Record, error) {
	return c.transition(ctx, "validate", moduleID, nil)
}

// Activate makes a module live
func (c *Client) Activate(ctx context.Context, moduleID string) (types.Record, error) {
	return c.transition(ctx, "activate", moduleID, nil)
}

// Disable takes a module offline
func (c *Client) Disable(ctx context.Context, moduleID string) (types.Record, error) {
	return c.transition(ctx, "disable", moduleID, nil)
}

// Remove tombstones a module
func (c *Client) Remove(ctx context.Context, moduleID string, opts types.RemoveOptions) (types.Record, error) {
	return c.transition(ctx, "remove", moduleID, opts)
}

// Purge deletes a removed module and frees its id
func (c *Client) Purge(ctx context.Context, moduleID string) error {
	_, err := c.do(ctx, http.MethodPost, modulePath("purge", moduleID), false, nil, nil)
	return err
}

func (c *Client) transition(ctx context.Context, op, moduleID string, body interface{}) (types.Record, error) {
	var rec types.Record
	_, err := c.do(ctx, http.MethodPost, modulePath(op, moduleID), false, func(r *resty.Request) {
		if body != nil {
			r.SetHeader("Content-Type", "application/json").SetBody(body)
		}
	}, &rec)
	return rec, err
}
