package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/saxenaaman628/pollbox/internal/models"
)

func respond(c *gin.Context, status int, body gin.H) {
	body["success"] = true
	c.JSON(status, body)
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message, "success": false})
}

// errorMessages replaces the generic envelope text for the sentinel errors
// it names.
type errorMessages map[error]string

func (m errorMessages) pick(sentinel error, fallback string) string {
	if msg, ok := m[sentinel]; ok {
		return msg
	}
	return fallback
}

// handleError maps err to a status and writes the error envelope. msgs
// overrides the message for specific sentinels and may be nil.
func (h *Handler) handleError(c *gin.Context, err error, msgs errorMessages) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, models.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrAlreadyExists):
		writeError(c, http.StatusBadRequest, "User with this email/username exists")
	case errors.Is(err, models.ErrInvalidChoice):
		writeError(c, http.StatusBadRequest, "Invalid choice")
	case errors.Is(err, models.ErrUnauthorized):
		writeError(c, http.StatusUnauthorized, msgs.pick(models.ErrUnauthorized, "Invalid Access Token"))
	case errors.Is(err, models.ErrForbidden):
		writeError(c, http.StatusForbidden, "You are not allowed to do that")
	case errors.Is(err, models.ErrNotFound):
		writeError(c, http.StatusNotFound, msgs.pick(models.ErrNotFound, "not found"))
	case errors.Is(err, models.ErrConflict):
		writeError(c, http.StatusConflict, "Too many concurrent updates, try again")
	default:
		_ = c.Error(err)
		h.log.ErrorContext(c.Request.Context(), "internal error", slog.String("error", err.Error()))
		writeError(c, http.StatusInternalServerError, "internal server error")
	}
}

var bindMessages = map[string]string{
	"Title.required":   "Please provide title for the poll",
	"Options.required": "Please provide at least two options",
	"Options.min":      "Please provide at least two options",
}

// bindError converts a gin binding failure to a ValidationError.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewValidationError("body", "invalid request body")
	}
	fields := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		msg, ok := bindMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s failed %s validation", field, fe.Tag())
		}
		fields = append(fields, models.FieldError{Field: field, Message: msg})
	}
	return models.NewValidationErrors(fields)
}
