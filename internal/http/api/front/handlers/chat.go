package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/chatrelay/chatrelay/internal/chat"
	"github.com/chatrelay/chatrelay/internal/quota"
	"github.com/chatrelay/chatrelay/internal/upstream"
)

// defaultUserID is assigned to chat requests that carry no user id.
const defaultUserID = "guest"

// ChatHandler serves the public chat endpoint.
type ChatHandler struct {
	svc *chat.Service
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// chatRequest defines the request body for chat submission.
type chatRequest struct {
	UserID      string   `json:"user_id"`     // Optional; defaults to guest.
	Message     string   `json:"message"`     // Required non-empty text.
	System      *string  `json:"system"`      // Optional system prompt override.
	Temperature *float64 `json:"temperature"` // Optional sampling temperature.
	MaxTokens   *int     `json:"max_tokens"`  // Optional completion length cap.
}

// Send submits a chat message and returns the generated reply.
func (h *ChatHandler) Send(c *gin.Context) {
	var body chatRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		userID = defaultUserID
	}

	reply, errSend := h.svc.Send(c.Request.Context(), chat.Request{
		UserID:      userID,
		Message:     body.Message,
		System:      body.System,
		Temperature: body.Temperature,
		MaxTokens:   body.MaxTokens,
	})
	if errSend != nil {
		switch {
		case errors.Is(errSend, chat.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing message"})
		case errors.Is(errSend, chat.ErrQuotaExhausted):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "quota exhausted",
				"reason":    "quota_exhausted",
				"remaining": 0,
			})
		default:
			var upstreamErr *upstream.Error
			if errors.As(errSend, &upstreamErr) {
				log.WithError(errSend).WithField("user", userID).Error("chat: upstream failure")
				c.JSON(http.StatusBadGateway, gin.H{"error": "upstream failure"})
				return
			}
			log.WithError(errSend).WithField("user", userID).Error("chat: request failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "chat failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reply":     reply.Text,
		"remaining": remainingValue(reply.Remaining),
	})
}

// remainingValue renders a remaining allowance as an integer or "unlimited".
func remainingValue(r quota.Remaining) any {
	if r.Unlimited {
		return "unlimited"
	}
	return r.Requests
}
