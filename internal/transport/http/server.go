package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chatterbox-im/chatterbox-server/internal/auth"
	"github.com/chatterbox-im/chatterbox-server/internal/config"
	"github.com/chatterbox-im/chatterbox-server/internal/core"
	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

// NewServer builds the HTTP server: REST API, WebSocket endpoint, health and
// metrics.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	userHandlers := NewUserHandlers(authService, st, logger)
	channelHandlers := NewChannelHandlers(st, logger)
	messageHandlers := NewMessageHandlers(hub.History(), logger)

	api := router.Group("/api")
	{
		api.POST("/users/register", userHandlers.Register)
		api.POST("/users/login", userHandlers.Login)

		authed := api.Group("")
		authed.Use(AuthMiddleware(authService, logger))
		{
			authed.GET("/users", userHandlers.ListUsers)
			authed.GET("/users/me", userHandlers.Me)

			authed.GET("/channels", channelHandlers.ListChannels)
			authed.POST("/channels", channelHandlers.CreateChannel)
			authed.GET("/channels/:id", channelHandlers.GetChannel)
			authed.POST("/channels/:id/subscribe", channelHandlers.Subscribe)
			authed.DELETE("/channels/:id/subscribe", channelHandlers.Unsubscribe)

			authed.GET("/messages/channel/:channelId", messageHandlers.ChannelMessages)
			authed.GET("/messages/private/:userId1/:userId2", messageHandlers.PrivateMessages)
		}
	}

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The upgrade hijacks the connection, which gin's ResponseWriter refuses
	// once the 101 is written, so /ws is served from a plain mux in front of
	// the router. The handler authenticates on its own; the credential may
	// arrive as a query parameter.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
