package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saxenaaman628/pollbox/internal/middleware"
)

// UserPolls handles GET /user/poll/:id.
func (h *Handler) UserPolls(c *gin.Context) {
	f, ok := h.parseFilter(c)
	if !ok {
		return
	}
	page, err := h.polls.ListByCreator(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		h.handleError(c, err, nil)
		return
	}
	respond(c, http.StatusOK, gin.H{"polls": page.Polls, "total": page.Total})
}

// UserVoted handles GET /user/voted/:id.
func (h *Handler) UserVoted(c *gin.Context) {
	f, ok := h.parseFilter(c)
	if !ok {
		return
	}
	page, err := h.polls.ListVotedBy(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		h.handleError(c, err, nil)
		return
	}
	respond(c, http.StatusOK, gin.H{"polls": page.Polls, "total": page.Total})
}

// Stats handles GET /stats for the signed-in user.
func (h *Handler) Stats(c *gin.Context) {
	summary, err := h.stats.ForCreator(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.handleError(c, err, nil)
		return
	}
	respond(c, http.StatusOK, gin.H{"stats": summary})
}
