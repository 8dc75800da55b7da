// Package http wires the REST and WebSocket surface. Identity is
// resolved upstream of the engine: a client-token cookie stands in
// for the auth layer and supplies user_id on every request.
package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/astrolune/star/internal/adapters/signal"
	"github.com/astrolune/star/internal/app"
	"github.com/astrolune/star/internal/config"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware assigns every browser a stable opaque user
// id via cookie. Real deployments replace this with the auth layer.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, engine *app.Engine, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("StarSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &Handlers{Engine: engine}

	api := r.Group("/api")
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/:id", h.GetSession)
	api.POST("/sessions/:id/join", h.JoinSession)
	api.POST("/join", h.JoinByRoomCode)
	api.POST("/sessions/:id/leave", h.LeaveSession)
	api.POST("/sessions/:id/end", h.EndSession)
	api.POST("/sessions/:id/pause", h.PauseSession)
	api.POST("/sessions/:id/state", h.SyncState)
	api.POST("/sessions/:id/cursor", h.MoveCursor)
	api.POST("/sessions/:id/voice", h.UpdateVoice)
	api.POST("/sessions/:id/events/tarot", h.TarotEvent)
	api.POST("/sessions/:id/events/numerology", h.NumerologyEvent)
	api.POST("/sessions/:id/events/cosmos", h.CosmosEvent)

	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("user", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	return r
}
