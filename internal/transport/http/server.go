package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrocket-server/internal/auth"
	"github.com/vovakirdan/chatrocket-server/internal/config"
	"github.com/vovakirdan/chatrocket-server/internal/core"
	"github.com/vovakirdan/chatrocket-server/internal/ratelimit"
	"github.com/vovakirdan/chatrocket-server/internal/service/messaging"
	"github.com/vovakirdan/chatrocket-server/internal/store"
)

// Deps are the collaborators the HTTP layer routes to.
type Deps struct {
	Hub       *core.Hub
	Auth      *auth.Service
	Store     store.Store
	Messaging *messaging.Service
	Limiter   ratelimit.Limiter
	Config    *config.Config
	Logger    *zerolog.Logger
}

// NewServer builds an HTTP server with REST and WebSocket routes.
func NewServer(deps Deps) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              deps.Config.Addr,
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: deps.Config.ReadHeaderTimeout,
	}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.Unlimited{}
	}
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(deps.Logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(deps)))

	apiHandlers := NewAPIHandlers(deps.Auth, deps.Logger)
	userHandlers := NewUserHandlers(deps.Store, deps.Logger)
	messageHandlers := NewMessageHandlers(deps.Messaging, deps.Logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authed := api.Group("")
	authed.Use(AuthMiddleware(deps.Auth, deps.Logger))
	authed.Use(RateLimitMiddleware(deps.Limiter, deps.Logger))
	{
		authed.GET("/users/search", userHandlers.SearchUsers)

		authed.GET("/messages/conversations", messageHandlers.Conversations)
		authed.GET("/messages/:otherUserId", messageHandlers.History)
		authed.POST("/messages", messageHandlers.Send)
		authed.POST("/messages/seen", messageHandlers.MarkSeen)

		authed.POST("/posts/share", messageHandlers.SharePost)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
