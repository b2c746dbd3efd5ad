package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/wecall/signaling/internal/adapters/signal"
	"github.com/wecall/signaling/internal/config"
	"github.com/wecall/signaling/internal/domain"
	"github.com/wecall/signaling/internal/store"
)

const historyLimit = 50

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller, logs store.CallLogs) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Int("port", cfg.Port).Msg("router setup")

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Msg("ws endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	// Read side of the call-record collaborator; the rest of the CRUD
	// surface lives elsewhere.
	api.GET("/calls/:userId", func(c *gin.Context) {
		user := domain.UserID(c.Param("userId"))
		calls, err := logs.ListByUser(c.Request.Context(), user, historyLimit)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("list calls")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list calls"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	return r
}
