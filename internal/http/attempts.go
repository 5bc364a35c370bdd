package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lingoplay/core/internal/adapters"
	"github.com/lingoplay/core/internal/entities"
	"github.com/lingoplay/core/internal/tasks"
)

// AttemptEnqueuer defers attempt recording to the task queue.
type AttemptEnqueuer interface {
	EnqueueAttempt(task tasks.RecordAttemptTask) (string, error)
}

// AttemptRecorder is what the controller needs from the data adapter.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, exerciseID uint, isCorrect bool) error
	LoadUserSettings(ctx context.Context) (*entities.UserContext, error)
}

type AttemptRequest struct {
	ExerciseID uint `json:"exercise_id" binding:"required"`
	IsCorrect  bool `json:"is_correct"`
}

type AttemptResponse struct {
	Queued bool   `json:"queued"`
	TaskID string `json:"task_id,omitempty"`
}

// AttemptsController records exercise outcomes. With a queue configured the
// write happens in the background and the request answers 202.
type AttemptsController struct {
	recorder AttemptRecorder
	queue    AttemptEnqueuer
	log      logrus.FieldLogger
}

func NewAttemptsController(recorder AttemptRecorder, queue AttemptEnqueuer, log logrus.FieldLogger) *AttemptsController {
	return &AttemptsController{recorder: recorder, queue: queue, log: log}
}

// RecordAttempt handles POST /api/attempts.
func (ac *AttemptsController) RecordAttempt(c *gin.Context) {
	var req AttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "exercise_id is required")
		return
	}
	ctx := c.Request.Context()

	if ac.queue == nil {
		if err := ac.recorder.RecordAttempt(ctx, req.ExerciseID, req.IsCorrect); err != nil {
			respondError(c, ac.log, err, "record attempt")
			return
		}
		c.JSON(http.StatusCreated, AttemptResponse{})
		return
	}

	uc, err := ac.recorder.LoadUserSettings(ctx)
	if err != nil {
		respondError(c, ac.log, err, "resolve active user")
		return
	}
	taskID, err := ac.queue.EnqueueAttempt(tasks.RecordAttemptTask{
		UserID:     uc.UserID,
		ExerciseID: req.ExerciseID,
		IsCorrect:  req.IsCorrect,
	})
	if err != nil {
		respondError(c, ac.log, err, "enqueue attempt")
		return
	}
	c.JSON(http.StatusAccepted, AttemptResponse{Queued: true, TaskID: taskID})
}

// StatsController serves GET /api/stats.
type StatsController struct {
	progress adapters.ProgressDataAdapter
	log      logrus.FieldLogger
}

func NewStatsController(progress adapters.ProgressDataAdapter, log logrus.FieldLogger) *StatsController {
	return &StatsController{progress: progress, log: log}
}

func (sc *StatsController) GetStats(c *gin.Context) {
	stats, err := sc.progress.LoadStats(c.Request.Context())
	if err != nil {
		respondError(c, sc.log, err, "load stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
