// Package http is the localhost broker: it exposes the data adapter
// contracts as JSON so out-of-process frontends can drive the exercise
// database.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lingoplay/core/internal/adapters"
	"github.com/lingoplay/core/internal/demo"
)

// Route paths, shared with the ipc client.
const (
	PathHealth        = "/health"
	PathReference     = "/api/reference"
	PathSettings      = "/api/settings"
	PathTopics        = "/api/topics"
	PathTopicProgress = "/api/topics/progress"
	PathExerciseTypes = "/api/exercise-types"
	PathAttempts      = "/api/attempts"
	PathStats         = "/api/stats"
)

type RouterConfig struct {
	Adapter adapters.DataAdapter

	// Optional
	Database       DatabaseChecker
	Migration      MigrationStatus
	AttemptQueue   AttemptEnqueuer
	DemoMiddleware *demo.Middleware
	Logger         logrus.FieldLogger
	Version        string

	// LoopbackOnly rejects requests addressed to anything but the local
	// machine. Set it when the broker listens on a loopback interface.
	LoopbackOnly bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(requestLogger(log))
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())
	if cfg.LoopbackOnly {
		router.Use(LoopbackHostMiddleware())
	}

	if cfg.DemoMiddleware != nil && cfg.DemoMiddleware.IsEnabled() {
		router.Use(cfg.DemoMiddleware.InjectContext())
		router.Use(cfg.DemoMiddleware.Handler())
	}

	health := NewHealthController(cfg.Database, cfg.Migration, cfg.Version)
	settings := NewSettingsController(cfg.Adapter, log)
	exercises := NewExercisesController(cfg.Adapter, log)
	attempts := NewAttemptsController(cfg.Adapter, cfg.AttemptQueue, log)
	stats := NewStatsController(cfg.Adapter, log)

	router.GET(PathHealth, health.Status)

	router.GET(PathReference, settings.GetReference)
	router.GET(PathSettings, settings.GetSettings)
	router.PATCH(PathSettings, settings.UpdateSettings)

	router.GET(PathTopics, exercises.ListTopics)
	router.GET(PathTopicProgress, exercises.ListTopicProgress)
	router.GET(PathTopics+"/:id/pairs", exercises.GetPairs)
	router.GET(PathTopics+"/:id/conversation", exercises.GetConversation)
	router.GET(PathTopics+"/:id/translation", exercises.GetTranslation)
	router.GET(PathTopics+"/:id/fill-in-blank", exercises.GetFillInBlank)
	router.GET(PathTopics+"/:id/mixed", exercises.GetMixed)
	router.GET(PathExerciseTypes, exercises.ListExerciseTypes)

	router.POST(PathAttempts, attempts.RecordAttempt)
	router.GET(PathStats, stats.GetStats)

	return router
}

// requestLogger logs one line per request. Health probes log at debug.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.FullPath() == PathHealth {
			entry.Debug("request")
			return
		}
		entry.Info("request")
	}
}
