package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"supervisor-console/internal/logger"
)

const maxJournalLimit = 500

// GetJournal handles GET /api/journal?supervisorId=&limit=.
func (h *Handler) GetJournal(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxJournalLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	events, err := h.journal.ListTransitions(c.Request.Context(), c.Query("supervisorId"), limit)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list journal")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve journal"})
		return
	}
	c.JSON(http.StatusOK, events)
}
