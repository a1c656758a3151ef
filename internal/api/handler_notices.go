package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetNotices handles GET /api/notices.
func (h *Handler) GetNotices(c *gin.Context) {
	c.JSON(http.StatusOK, h.notices.List())
}

// DismissNotice handles DELETE /api/notices/:id.
func (h *Handler) DismissNotice(c *gin.Context) {
	h.notices.Dismiss(c.Param("id"))
	c.Status(http.StatusNoContent)
}
