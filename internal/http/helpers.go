package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lingoplay/core/internal/adapters"
	"github.com/lingoplay/core/internal/entities"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// Error codes
const (
	CodeBadRequest          = "bad_request"
	CodeInvalidSetting      = "invalid_setting"
	CodeDatabaseUnavailable = "database_unavailable"
	CodeMigrationFailed     = "migration_failed"
	CodeInternal            = "internal_error"
	CodeForbiddenHost       = "forbidden_host"
)

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: CodeBadRequest})
}

// respondError maps an adapter error to its status code. Unknown errors are
// logged and reported without detail.
func respondError(c *gin.Context, log logrus.FieldLogger, err error, context string) {
	switch {
	case errors.Is(err, entities.ErrDatabaseUnavailable):
		log.WithError(err).WithField("op", context).Warn("database unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable", Code: CodeDatabaseUnavailable})
	case errors.Is(err, entities.ErrMigrationFailed):
		log.WithError(err).WithField("op", context).Error("migration failed")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "migration failed", Code: CodeMigrationFailed})
	case errors.Is(err, adapters.ErrEmptySetting):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidSetting})
	default:
		log.WithError(err).WithField("op", context).Error("internal error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: CodeInternal})
	}
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// parseTypeQuery reads the optional "type" query parameter.
func parseTypeQuery(c *gin.Context) (entities.ExerciseType, bool) {
	t, err := entities.ParseExerciseType(c.Query("type"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return "", false
	}
	return t, true
}

// parseCountQuery reads the optional "count" query parameter, falling back
// to def when absent.
func parseCountQuery(c *gin.Context, def int) (int, bool) {
	raw := c.Query("count")
	if raw == "" {
		return def, true
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		respondBadRequest(c, "invalid count")
		return 0, false
	}
	return count, true
}
