package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts every endpoint on r. requireAuth guards the routes
// that need a signed-in user.
func RegisterRoutes(r *gin.Engine, h *Handler, requireAuth gin.HandlerFunc) {
	r.GET("/health", h.Health)

	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)

	poll := r.Group("/poll")
	{
		poll.GET("", h.ListPolls)
		poll.GET("/:id", h.GetPoll)
		poll.POST("/new", requireAuth, h.CreatePoll)
		poll.DELETE("/:id", requireAuth, h.DeletePoll)
		poll.POST("/vote/:id", requireAuth, h.Vote)
		poll.POST("/close/:id", requireAuth, h.ClosePoll)
	}

	auth := r.Group("/")
	auth.Use(requireAuth)
	{
		auth.GET("/logout", h.Logout)
		auth.GET("/getUser", h.GetUser)
		auth.GET("/user/poll/:id", h.UserPolls)
		auth.GET("/user/voted/:id", h.UserVoted)
		auth.GET("/stats", h.Stats)
	}
}
