package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/line-draw/internal/api/handlers/job"
	"github.com/aliskhannn/line-draw/internal/middleware"
)

func Setup(h *job.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/images/upload", h.Upload)                 // uploading image, creates a pending job
	api.POST("/jobs/:id/start", h.Start)                 // starting the simulation run
	api.GET("/jobs/:id", h.Status)                       // job status and progress
	api.GET("/jobs/:id/result", h.Result)                // rendered result once completed
	api.GET("/jobs/:id/result/base64", h.ResultBase64)   // result as base64 JSON payload
	api.DELETE("/jobs/:id", h.Delete)                    // deleting job by id
	api.GET("/ws/jobs/:id", h.Progress)                  // websocket progress stream

	return r
}
