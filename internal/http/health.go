package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lingoplay/core/internal/demo"
)

// DatabaseChecker is the part of the database handle health needs.
type DatabaseChecker interface {
	Ping() error
	ValidateSchema() error
}

// MigrationStatus reports an interrupted upgrade waiting for recovery.
type MigrationStatus interface {
	InProgress() (bool, error)
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Time     string            `json:"time"`
	Version  string            `json:"version,omitempty"`
	DemoMode bool              `json:"demo_mode,omitempty"`
	Checks   map[string]string `json:"checks"`
}

type HealthController struct {
	db        DatabaseChecker
	migration MigrationStatus
	version   string
}

func NewHealthController(db DatabaseChecker, migration MigrationStatus, version string) *HealthController {
	return &HealthController{
		db:        db,
		migration: migration,
		version:   version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else if err := h.db.ValidateSchema(); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	if h.migration != nil {
		pending, err := h.migration.InProgress()
		switch {
		case err != nil:
			checks["migration"] = "error: " + err.Error()
			status = "unhealthy"
		case pending:
			checks["migration"] = "pending recovery"
			status = "unhealthy"
		default:
			checks["migration"] = "ok"
		}
	}

	health := HealthResponse{
		Status:   status,
		Time:     time.Now().Format(time.RFC3339),
		Version:  h.version,
		DemoMode: c.GetBool(demo.ContextKeyDemoMode),
		Checks:   checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
