package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saxenaaman628/pollbox/internal/models"
)

// TokenValidator resolves an access token to a user ID.
type TokenValidator interface {
	ValidateJWTToken(token string) (string, error)
}

// UserLookup confirms the token's subject still exists.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// JWTAuthMiddleware authenticates requests by the token cookie, falling back
// to an "Authorization: Bearer" header. Unauthenticated requests get 401.
func JWTAuthMiddleware(tokens TokenValidator, users UserLookup, cookieName string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c, cookieName)
		if token == "" {
			abort(c, http.StatusUnauthorized, "You are not logged in")
			return
		}

		userID, err := tokens.ValidateJWTToken(token)
		if err != nil {
			logger.DebugContext(c.Request.Context(), "token rejected", slog.String("error", err.Error()))
			abort(c, http.StatusUnauthorized, "Invalid Access Token")
			return
		}

		if _, err := users.GetUserByID(c.Request.Context(), userID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				abort(c, http.StatusUnauthorized, "Invalid Access Token")
				return
			}
			logger.ErrorContext(c.Request.Context(), "load authenticated user",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			abort(c, http.StatusInternalServerError, "internal server error")
			return
		}

		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func tokenFrom(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
