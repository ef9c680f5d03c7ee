package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/procdoc/sop-flow/internal/config"
)

func newRouter(cfg *config.Config, h *handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 32 << 20

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	r.GET("/healthcheck", h.healthcheck)

	api := r.Group("/api")
	{
		api.POST("/sessions", h.createSession)
		api.GET("/sessions/:id", h.getSession)
		api.DELETE("/sessions/:id", h.destroySession)
		api.GET("/sessions/:id/ws", h.progressFeed)

		api.POST("/sessions/:id/audio", h.extractAudio)
		api.POST("/sessions/:id/transcribe", h.transcribe)
		api.POST("/sessions/:id/moments/analyze", h.analyzeMoments)
		api.PUT("/sessions/:id/moments", h.editMoments)
		api.POST("/sessions/:id/moments/confirm", h.confirmMoments)
		api.POST("/sessions/:id/frames", h.extractFrames)
		api.POST("/sessions/:id/document", h.generateDocument)
		api.POST("/sessions/:id/export", h.buildDocument)
		api.GET("/sessions/:id/download", h.downloadDocument)

		api.POST("/sessions/:id/drive", h.uploadToDrive)
		api.GET("/drive/status", h.driveStatus)
		api.GET("/drive/auth-url", h.driveAuthURL)
		api.POST("/drive/code", h.driveExchange)
	}

	return r
}
