package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatrelay/chatrelay/internal/quota"
)

// UsageHandler serves privileged usage maintenance endpoints.
type UsageHandler struct {
	store *quota.Store
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(store *quota.Store) *UsageHandler {
	return &UsageHandler{store: store}
}

// Reset zeroes every user's usage counter and refreshes its date. Tier and
// bonus balances are untouched.
func (h *UsageHandler) Reset(c *gin.Context) {
	count, errReset := h.store.BulkResetUsage(c.Request.Context())
	if errReset != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bulk reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": count})
}
