package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chatrelay/chatrelay/internal/quota"
)

// EntitlementHandler manages user entitlement endpoints for the external
// membership system.
type EntitlementHandler struct {
	store *quota.Store
}

// NewEntitlementHandler constructs an EntitlementHandler.
func NewEntitlementHandler(store *quota.Store) *EntitlementHandler {
	return &EntitlementHandler{store: store}
}

// updateEntitlementRequest defines the request body for entitlement updates.
// Absent fields are left untouched; absence is not zero.
type updateEntitlementRequest struct {
	Level         *string `json:"level"`          // New membership level.
	BonusRequests *int    `json:"bonus_requests"` // New bonus balance.
}

// Update upserts a user's level and bonus balance.
func (h *EntitlementHandler) Update(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user id"})
		return
	}
	var body updateEntitlementRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.BonusRequests != nil && *body.BonusRequests < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "negative bonus_requests"})
		return
	}

	user, errUpdate := h.store.UpdateEntitlement(c.Request.Context(), userID, body.Level, body.BonusRequests)
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update entitlement failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":        user.ExternalID,
		"level":          user.Level,
		"bonus_requests": user.BonusRequests,
		"usage_date":     user.UsageDate,
		"usage_count":    user.UsageCount,
	})
}
