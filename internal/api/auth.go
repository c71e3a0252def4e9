package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saxenaaman628/pollbox/internal/controller"
	"github.com/saxenaaman628/pollbox/internal/middleware"
	"github.com/saxenaaman628/pollbox/internal/models"
)

var loginMessages = errorMessages{models.ErrUnauthorized: "Invalid credentials"}

type signupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /signup.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, bindError(err), nil)
		return
	}

	res, err := h.users.Signup(c.Request.Context(), controller.SignupInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(c, err, nil)
		return
	}

	h.setTokenCookie(c, res)
	respond(c, http.StatusCreated, gin.H{
		"message": "User created successfully",
		"token":   res.Token,
		"user":    res.User,
	})
}

// Login handles POST /login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, bindError(err), nil)
		return
	}

	res, err := h.users.Login(c.Request.Context(), controller.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleError(c, err, loginMessages)
		return
	}

	h.setTokenCookie(c, res)
	respond(c, http.StatusOK, gin.H{
		"message": fmt.Sprintf("You are logged in, %s", res.User.Name),
		"token":   res.Token,
		"user":    res.User,
	})
}

// Logout handles GET /logout.
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(h.auth.CookieName, "", -1, "/", "", h.auth.CookieSecure, true)
	respond(c, http.StatusOK, gin.H{"message": "User logged out successfully"})
}

// GetUser handles GET /getUser.
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.handleError(c, err, errorMessages{models.ErrNotFound: "Cannot find this user"})
		return
	}
	respond(c, http.StatusOK, gin.H{"user": u})
}

func (h *Handler) setTokenCookie(c *gin.Context, res *controller.AuthResult) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(h.auth.CookieName, res.Token, int(res.ExpiresIn.Seconds()), "/", "", h.auth.CookieSecure, true)
}
