package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lingoplay/core/internal/adapters"
)

// SettingsController serves the active user's preferences and the
// reference data the settings screen offers.
type SettingsController struct {
	settings adapters.UserSettingsDataAdapter
	log      logrus.FieldLogger
}

func NewSettingsController(settings adapters.UserSettingsDataAdapter, log logrus.FieldLogger) *SettingsController {
	return &SettingsController{settings: settings, log: log}
}

// GetSettings handles GET /api/settings.
func (sc *SettingsController) GetSettings(c *gin.Context) {
	uc, err := sc.settings.LoadUserSettings(c.Request.Context())
	if err != nil {
		respondError(c, sc.log, err, "load user settings")
		return
	}
	c.JSON(http.StatusOK, uc)
}

// UpdateSettings handles PATCH /api/settings. Fields left out of the body
// are not changed.
func (sc *SettingsController) UpdateSettings(c *gin.Context) {
	var update adapters.SettingsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	uc, err := sc.settings.SaveUserSettings(c.Request.Context(), update)
	if err != nil {
		respondError(c, sc.log, err, "save user settings")
		return
	}
	c.JSON(http.StatusOK, uc)
}

// GetReference handles GET /api/reference.
func (sc *SettingsController) GetReference(c *gin.Context) {
	ref, err := sc.settings.LoadReferenceData(c.Request.Context())
	if err != nil {
		respondError(c, sc.log, err, "load reference data")
		return
	}
	c.JSON(http.StatusOK, ref)
}
