package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat-server/internal/auth"
	"github.com/vovakirdan/privchat-server/internal/chat"
	"github.com/vovakirdan/privchat-server/internal/config"
	"github.com/vovakirdan/privchat-server/internal/store"
)

// NewServer builds the HTTP server: REST API, health check, and the chat
// WebSocket endpoint.
func NewServer(chatService *chat.Service, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(authService, st, logger)
	dialogHandlers := NewDialogHandlers(st, logger)
	messageHandlers := NewMessageHandlers(st, logger)
	uploadHandlers := NewUploadHandlers(st, cfg.UploadDir, logger)

	engine.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	engine.POST("/api/register", apiHandlers.Register)
	engine.POST("/api/login", apiHandlers.Login)

	api := engine.Group("/api")
	api.Use(AuthMiddleware(authService, logger))
	{
		api.GET("/self", apiHandlers.Self)
		api.GET("/dialogs", dialogHandlers.ListDialogs)
		api.POST("/dialogs", dialogHandlers.CreateDialog)
		api.GET("/messages/:dialog_id", messageHandlers.ListMessages)
		api.POST("/upload", uploadHandlers.Upload)
	}

	engine.GET("/ws", gin.WrapH(NewWSHandler(chatService, authService, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
