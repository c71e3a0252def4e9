package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saxenaaman628/pollbox/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenValidatorStub struct{}

func (tokenValidatorStub) ValidateJWTToken(token string) (string, error) {
	if token == "valid-token" {
		return "user-1", nil
	}
	return "", errors.New("invalid token")
}

type userLookupStub struct {
	err error
}

func (s userLookupStub) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: id}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthRouter(users UserLookup) *gin.Engine {
	r := gin.New()
	r.Use(JWTAuthMiddleware(tokenValidatorStub{}, users, "token", discardLogger()))
	r.GET("/", func(c *gin.Context) {
		ctxID, _ := UserIDFromCtx(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user": UserID(c), "ctx": ctxID})
	})
	return r
}

func TestJWTAuth_Cookie(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "valid-token"})
	rec := httptest.NewRecorder()

	newAuthRouter(userLookupStub{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"user-1","ctx":"user-1"}`, rec.Body.String())
}

func TestJWTAuth_BearerHeader(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	newAuthRouter(userLookupStub{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuth_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		cookie string
		users  userLookupStub
		status int
	}{
		{name: "no token", status: http.StatusUnauthorized},
		{name: "bad token", cookie: "forged", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic valid-token", status: http.StatusUnauthorized},
		{name: "deleted user", cookie: "valid-token", users: userLookupStub{err: models.ErrNotFound}, status: http.StatusUnauthorized},
		{name: "store down", cookie: "valid-token", users: userLookupStub{err: errors.New("boom")}, status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			newAuthRouter(tt.users).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}
