package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/parley-chat/parley/internal/adapters/ws"
	"github.com/parley-chat/parley/internal/config"
)

// SetupGatewayRouter wires the realtime endpoint. Authentication happens
// inside the websocket handshake, not in middleware.
func SetupGatewayRouter(ctx context.Context, cfg *config.Gateway, chat *ws.Controller) *gin.Engine {
	r := newEngine(cfg.Mode)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/api/ws/chat", func(c *gin.Context) {
		chat.HandleChat(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("gateway router setup")
	return r
}

// SetupRoomsRouter wires the account endpoints and the room-management REST
// surface, the latter behind bearer authentication.
func SetupRoomsRouter(cfg *config.Rooms, ctl *RoomsController, users *UsersController, auth gin.HandlerFunc) *gin.Engine {
	r := newEngine(cfg.Mode)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/api/users", users.Register)
	r.POST("/api/auth/token", users.Login)

	api := r.Group("/api/rooms", auth)
	api.POST("", ctl.Create)
	api.POST("/join", ctl.Join)
	api.GET("/:id", ctl.Info)
	api.PUT("/:id/name", ctl.Rename)
	api.DELETE("/:id", ctl.Delete)
	api.POST("/:id/invite", ctl.Invite)
	api.POST("/:id/members", ctl.AddMember)
	api.DELETE("/:id/members/:userId", ctl.RemoveMember)
	api.PUT("/:id/members/:userId/role", ctl.ChangeRole)

	log.Info().Str("module", "adapters.http").Msg("rooms router setup")
	return r
}

func newEngine(mode string) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	return r
}
