package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	costquerydomain "github.com/cielolabs/costwatch/internal/costquery/domain"
	discoverydomain "github.com/cielolabs/costwatch/internal/discovery/domain"
	importerdomain "github.com/cielolabs/costwatch/internal/importer/domain"
	snapdomain "github.com/cielolabs/costwatch/internal/snapshot/domain"
	srcdomain "github.com/cielolabs/costwatch/internal/source/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	if isNotFoundError(err) {
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, srcdomain.ErrInvalidName),
		errors.Is(err, srcdomain.ErrInvalidBaseLocator),
		errors.Is(err, srcdomain.ErrInvalidSourceID),
		errors.Is(err, snapdomain.ErrInvalidSourceID),
		errors.Is(err, importerdomain.ErrInvalidSourceID),
		errors.Is(err, importerdomain.ErrNilRowStream),
		errors.Is(err, discoverydomain.ErrUnsupportedLocator),
		errors.Is(err, costquerydomain.ErrUnknownDimension),
		errors.Is(err, costquerydomain.ErrNoDimensions),
		errors.Is(err, costquerydomain.ErrInvalidMonth),
		errors.Is(err, costquerydomain.ErrInvalidSourceID):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, srcdomain.ErrSourceNotFound),
		errors.Is(err, snapdomain.ErrSnapshotNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, costquerydomain.ErrUnknownDimension) {
		return costquerydomain.ErrUnknownDimension.Error()
	}
	return unwrapCode(err)
}

func unwrapCode(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasPrefix(code, "unknown_") {
		return strings.TrimPrefix(code, "unknown_")
	}
	return ""
}
