package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saxenaaman628/pollbox/internal/controller"
	"github.com/saxenaaman628/pollbox/internal/filter"
	"github.com/saxenaaman628/pollbox/internal/middleware"
	"github.com/saxenaaman628/pollbox/internal/models"
)

var pollMessages = errorMessages{models.ErrNotFound: "Cannot find this poll"}

type createPollRequest struct {
	Title     string                `json:"title"     binding:"required"`
	Options   []string              `json:"options"   binding:"required,min=2"`
	ExpiresAt *time.Time            `json:"expiresAt"`
	Category  controller.StringList `json:"category"`
	Status    models.Visibility     `json:"status"`
	Image     string                `json:"image"`
}

// ListPolls handles GET /poll.
func (h *Handler) ListPolls(c *gin.Context) {
	f, ok := h.parseFilter(c)
	if !ok {
		return
	}
	page, err := h.polls.List(c.Request.Context(), f)
	if err != nil {
		h.handleError(c, err, nil)
		return
	}
	respond(c, http.StatusOK, gin.H{"polls": page.Polls, "total": page.Total})
}

// GetPoll handles GET /poll/:id.
func (h *Handler) GetPoll(c *gin.Context) {
	view, err := h.polls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err, pollMessages)
		return
	}
	respond(c, http.StatusOK, gin.H{"poll": view})
}

// CreatePoll handles POST /poll/new.
func (h *Handler) CreatePoll(c *gin.Context) {
	var req createPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, bindError(err), nil)
		return
	}

	view, err := h.polls.Create(c.Request.Context(), middleware.UserID(c), controller.CreatePollInput{
		Title:     req.Title,
		Options:   req.Options,
		ExpiresAt: req.ExpiresAt,
		Category:  req.Category,
		Status:    req.Status,
		Image:     req.Image,
	})
	if err != nil {
		h.handleError(c, err, nil)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": "Poll created successfully.", "poll": view})
}

// DeletePoll handles DELETE /poll/:id.
func (h *Handler) DeletePoll(c *gin.Context) {
	if err := h.polls.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		h.handleError(c, err, pollMessages)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Poll deleted successfully"})
}

// ClosePoll handles POST /poll/close/:id.
func (h *Handler) ClosePoll(c *gin.Context) {
	view, err := h.polls.Close(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.handleError(c, err, pollMessages)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Poll closed successfully", "poll": view})
}

// Vote handles POST /poll/vote/:id?choice=.
func (h *Handler) Vote(c *gin.Context) {
	res, err := h.votes.Vote(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Query("choice"))
	if err != nil {
		h.handleError(c, err, pollMessages)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"message": "success",
		"action":  res.Action,
		"user":    res.User,
		"poll":    res.Poll,
	})
}

func (h *Handler) parseFilter(c *gin.Context) (filter.Filter, bool) {
	f, err := filter.Parse(filter.Params{
		Q:          c.Query("q"),
		Visibility: c.Query("visibility"),
		Limit:      c.Query("limit"),
		Offset:     c.Query("offset"),
	}, h.poll.DefaultLimit, h.poll.MaxLimit)
	if err != nil {
		h.handleError(c, err, nil)
		return filter.Filter{}, false
	}
	return f, true
}
