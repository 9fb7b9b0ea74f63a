package front

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chatrelay/chatrelay/internal/chat"
	"github.com/chatrelay/chatrelay/internal/http/api/front/handlers"
	"github.com/chatrelay/chatrelay/internal/session"
)

// RegisterFrontRoutes registers the public chat endpoints.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, svc *chat.Service, sessions *session.Store) {
	if r == nil || svc == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	chatHandler := handlers.NewChatHandler(svc)
	r.POST("/v0/chat", chatHandler.Send)

	historyHandler := handlers.NewHistoryHandler(sessions)
	r.GET("/v0/chat/history", historyHandler.List)
}
