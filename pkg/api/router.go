// Package api implements the submission surface (spec §6) and the benchmark-job
// submission surface gin handlers, mirroring core/pkg/server/server.go's
// gin.New() + gin.Recovery() construction and the ai-advisor handler package's
// per-concern handler struct shape.
package api

import (
	"github.com/gin-gonic/gin"
)

// NewEngine builds a bare gin.Engine with recovery middleware, matching the teacher's
// InitServerWithPreInitFunc's gin.New()+gin.Recovery() pair.
func NewEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	return engine
}

// RegisterQueueRoutes mounts the full campaign submission surface (spec §6) onto
// engine, for the process that owns the Campaign Store directly (the "scheduler"
// process in spec §4.9's two-process deployment).
func RegisterQueueRoutes(engine *gin.Engine, h *CampaignHandler) {
	group := engine.Group("/queue")
	group.POST("/deployment", h.Submit)
	group.GET("/list", h.List)
	group.GET("/status", h.StatusCounts)
	group.GET("/:id", h.Get)
	group.DELETE("/:id", h.Delete)
	group.POST("/:id/cancel", h.Cancel)
	group.POST("/:id/priority", h.SetPriority)
	group.PATCH("/:id/status", h.PatchStatus)
}

// RegisterJobRoutes mounts the benchmark-job submission surface (spec §6) consumed by
// the Executor when it runs in peer mode instead of a direct Kube Adapter.
func RegisterJobRoutes(engine *gin.Engine, h *JobHandler) {
	engine.POST("/deploy", h.Deploy)
	engine.GET("/jobs/:name/status", h.Status)
	engine.DELETE("/jobs/:name/delete", h.Delete)
}

// RegisterGatewayRoutes mounts only the POST /queue/deployment entry point, backed by
// a peer-forwarding implementation, for the "gateway" process that accepts user
// requests but does not own a Store (spec §4.9).
func RegisterGatewayRoutes(engine *gin.Engine, h *GatewayHandler) {
	engine.POST("/queue/deployment", h.Submit)
}
