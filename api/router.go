package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/khaledhikmat/crackwatch/pipeline"
)

// SessionController is the part of pipeline.Controller the HTTP surface
// drives.
type SessionController interface {
	Start(ctx context.Context) (pipeline.StartOutcome, error)
	Stop(ctx context.Context) (pipeline.StopOutcome, error)
	Status() pipeline.Status
	Subscribe() (*pipeline.Subscription, error)
}

type Handler struct {
	ctrl SessionController
	svcs pipeline.ServicesFactory
}

func NewRouter(ctrl SessionController, svcs pipeline.ServicesFactory) *gin.Engine {
	h := &Handler{
		ctrl: ctrl,
		svcs: svcs,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(), cors())

	r.POST("/start_camera", h.StartCamera)
	r.POST("/stop_camera", h.StopCamera)
	r.GET("/video_feed", h.VideoFeed)
	r.GET("/ws", h.WebSocketFeed)
	r.GET("/detected_images", h.DetectedImages)
	r.GET("/detected_cracks/:filename", h.DetectedImage)

	r.POST("/detect-cracks/", h.DetectCracks)
	r.POST("/detect-cracks-with-image/", h.DetectCracksWithImage)
	r.GET("/health", h.Health)
	r.GET("/model-info", h.ModelInfo)

	api := r.Group("/api")
	api.GET("/status", h.Status)
	api.GET("/sessions", h.Sessions)

	return r
}
