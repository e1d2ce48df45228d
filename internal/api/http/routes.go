package http

import "github.com/gin-gonic/gin"

// RegistryPrefix groups the module registry endpoints
const RegistryPrefix = "/registry"

// Register mounts the registry endpoints on r
func Register(r gin.IRouter, h *Handlers) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	g := r.Group(RegistryPrefix)

	// Read side
	g.GET("/status", h.Status)
	g.GET("/modules/:id", h.GetModule)
	g.GET("/navigation", h.Navigation)
	g.GET("/routes", h.Routes)
	g.GET("/export/:id", h.Export)

	// Lifecycle
	g.POST("/rediscover", h.Rediscover)
	g.POST("/import", h.Import)
	g.POST("/validate/:id", h.Validate)
	g.POST("/activate/:id", h.Activate)
	g.POST("/disable/:id", h.Disable)
	g.POST("/remove/:id", h.Remove)
	g.POST("/purge/:id", h.Purge)
}
