package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/lingoplay/core/internal/entities"
)

// AttemptRecorder stores one exercise attempt.
type AttemptRecorder interface {
	RecordAttempt(userID, exerciseID uint, isCorrect bool) (*entities.UserExerciseAttempt, error)
}

// RecordAttemptTask records an attempt off the request path.
type RecordAttemptTask struct {
	UserID     uint `json:"user_id"`
	ExerciseID uint `json:"exercise_id"`
	IsCorrect  bool `json:"is_correct"`
}

func (t RecordAttemptTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "record_attempt",
		MaxAttempts: 3,
		Backoff:     5 * time.Second,
		Timeout:     30 * time.Second,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func RecordAttemptProcessor(recorder AttemptRecorder) backlite.QueueProcessor[RecordAttemptTask] {
	return func(ctx context.Context, task RecordAttemptTask) error {
		if recorder == nil {
			return fmt.Errorf("attempt recorder not configured")
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := recorder.RecordAttempt(task.UserID, task.ExerciseID, task.IsCorrect); err != nil {
			return fmt.Errorf("record attempt for exercise %d: %w", task.ExerciseID, err)
		}
		return nil
	}
}

func NewRecordAttemptQueue(recorder AttemptRecorder) backlite.Queue {
	return backlite.NewQueue(RecordAttemptProcessor(recorder))
}

// EnqueueAttempt queues task and returns its id.
func (c *Client) EnqueueAttempt(task RecordAttemptTask) (string, error) {
	ids, err := c.Add(task).Save()
	if err != nil {
		return "", fmt.Errorf("enqueue attempt: %w", err)
	}
	return ids[0], nil
}

// DrainAttempts records every queued attempt through recorder and removes
// it from the queue. It must run while the queue is stopped, before the
// exercise database the attempts refer to is replaced. Tasks waiting on a
// retry are drained too.
func (c *Client) DrainAttempts(ctx context.Context, recorder AttemptRecorder) (int, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, task FROM backlite_tasks WHERE queue = ? ORDER BY created_at, rowid",
		RecordAttemptTask{}.Config().Name)
	if err != nil {
		return 0, fmt.Errorf("list queued attempts: %w", err)
	}

	type queued struct {
		id   string
		task RecordAttemptTask
	}
	var pending []queued
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan queued attempt: %w", err)
		}
		var task RecordAttemptTask
		if err := json.Unmarshal(raw, &task); err != nil {
			rows.Close()
			return 0, fmt.Errorf("decode queued attempt %s: %w", id, err)
		}
		pending = append(pending, queued{id: id, task: task})
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for i, p := range pending {
		if _, err := recorder.RecordAttempt(p.task.UserID, p.task.ExerciseID, p.task.IsCorrect); err != nil {
			return i, fmt.Errorf("record queued attempt for exercise %d: %w", p.task.ExerciseID, err)
		}
		if _, err := c.db.ExecContext(ctx, "DELETE FROM backlite_tasks WHERE id = ?", p.id); err != nil {
			return i, fmt.Errorf("remove queued attempt %s: %w", p.id, err)
		}
	}

	if len(pending) > 0 {
		c.log.WithField("count", len(pending)).Info("drained queued attempts")
	}
	return len(pending), nil
}
