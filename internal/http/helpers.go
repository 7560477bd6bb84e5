package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/logging"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error kind
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// PaginatedResponse wraps paginated data with metadata.
type PaginatedResponse struct {
	Status     string `json:"status"`
	Data       any    `json:"data"`
	Total      int64  `json:"total"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	HasMore    bool   `json:"hasMore"`
	TotalPages int    `json:"totalPages,omitempty"`
}

// --- Error Response Helpers ---

// respondAppError renders err according to its apperr.Kind. Internal errors
// are logged with the request id and never rendered verbatim.
func respondAppError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	meta := apperr.MetadataFor(kind)

	if kind == apperr.Internal {
		logging.FromContext(c.Request.Context()).Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Msg("internal error")
	}
	if meta.Retryable {
		c.Header("Retry-After", "1")
	}

	c.AbortWithStatusJSON(meta.HTTPStatus, ErrorResponse{
		Status: statusError,
		Error:  apperr.PublicMessage(err),
		Code:   string(kind),
	})
}

// respondRateLimited sends 429 with Retry-After in whole seconds.
func respondRateLimited(c *gin.Context, retryAfter int) {
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	respondAppError(c, auth.ErrTooManyAttempts)
}

// respondBindError renders a request binding failure as a validation error,
// listing the offending fields when the validator reports them.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Status:  statusError,
			Error:   "validation failed",
			Code:    string(apperr.Validation),
			Details: validationDetails(verrs),
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Status: statusError,
		Error:  "malformed request body",
		Code:   string(apperr.Validation),
	})
}

// validationDetails maps each failing field (by JSON name) to a message.
func validationDetails(verrs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[jsonFieldName(fe)] = validationMessage(fe)
	}
	return details
}

func jsonFieldName(fe validator.FieldError) string {
	if name := fe.Field(); name != "" {
		return name
	}
	return fe.StructField()
}

// Validation errors report fields by their JSON name. notblank rejects
// strings that are empty once trimmed.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return "is invalid"
	}
}

// --- Success Response Helpers ---

// respondOK sends 200 with data and an optional message.
func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, SuccessResponse{Status: statusSuccess, Message: message, Data: data})
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
	if err != nil || id == 0 {
		respondAppError(c, apperr.New(apperr.Validation, "invalid "+paramName))
		return 0, false
	}
	return uint(id), true
}

// queryInt parses an integer query parameter, falling back to def when the
// parameter is absent or malformed.
func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

var errRouteNotFound = apperr.New(apperr.NotFound, "route not found")
