package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chatrelay/chatrelay/internal/session"
)

// HistoryHandler serves the session history endpoint.
type HistoryHandler struct {
	sessions *session.Store
}

// NewHistoryHandler constructs a HistoryHandler.
func NewHistoryHandler(sessions *session.Store) *HistoryHandler {
	return &HistoryHandler{sessions: sessions}
}

// List returns the ordered session log for a user.
func (h *HistoryHandler) List(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user_id"})
		return
	}

	rows, errHistory := h.sessions.History(c.Request.Context(), userID)
	if errHistory != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load history failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"role":      row.Role,
			"content":   row.Content,
			"timestamp": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}
