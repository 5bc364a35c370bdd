package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lingoplay/core/internal/adapters"
)

// ExerciseReader is everything the exercise screens read.
type ExerciseReader interface {
	adapters.ExerciseDataAdapter
	adapters.ProgressDataAdapter
}

// ExercisesController serves topics and exercise payloads. A topic with
// nothing to offer answers 200 with a null body.
type ExercisesController struct {
	exercises ExerciseReader
	log       logrus.FieldLogger
}

func NewExercisesController(exercises ExerciseReader, log logrus.FieldLogger) *ExercisesController {
	return &ExercisesController{exercises: exercises, log: log}
}

// ListTopics handles GET /api/topics?type=.
func (ec *ExercisesController) ListTopics(c *gin.Context) {
	exerciseType, ok := parseTypeQuery(c)
	if !ok {
		return
	}
	topics, err := ec.exercises.LoadTopics(c.Request.Context(), exerciseType)
	if err != nil {
		respondError(c, ec.log, err, "load topics")
		return
	}
	c.JSON(http.StatusOK, topics)
}

// ListTopicProgress handles GET /api/topics/progress?type=.
func (ec *ExercisesController) ListTopicProgress(c *gin.Context) {
	exerciseType, ok := parseTypeQuery(c)
	if !ok {
		return
	}
	progress, err := ec.exercises.LoadTopicProgress(c.Request.Context(), exerciseType)
	if err != nil {
		respondError(c, ec.log, err, "load topic progress")
		return
	}
	c.JSON(http.StatusOK, progress)
}

// ListExerciseTypes handles GET /api/exercise-types.
func (ec *ExercisesController) ListExerciseTypes(c *gin.Context) {
	types, err := ec.exercises.LoadExerciseTypes(c.Request.Context())
	if err != nil {
		respondError(c, ec.log, err, "load exercise types")
		return
	}
	c.JSON(http.StatusOK, types)
}

func (ec *ExercisesController) GetPairs(c *gin.Context) {
	topicID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	data, err := ec.exercises.LoadPairExercises(c.Request.Context(), topicID)
	if err != nil {
		respondError(c, ec.log, err, "load pair exercises")
		return
	}
	c.JSON(http.StatusOK, data)
}

func (ec *ExercisesController) GetConversation(c *gin.Context) {
	topicID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	data, err := ec.exercises.LoadConversationExercises(c.Request.Context(), topicID)
	if err != nil {
		respondError(c, ec.log, err, "load conversation exercises")
		return
	}
	c.JSON(http.StatusOK, data)
}

func (ec *ExercisesController) GetTranslation(c *gin.Context) {
	topicID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	data, err := ec.exercises.LoadTranslationExercises(c.Request.Context(), topicID)
	if err != nil {
		respondError(c, ec.log, err, "load translation exercises")
		return
	}
	c.JSON(http.StatusOK, data)
}

func (ec *ExercisesController) GetFillInBlank(c *gin.Context) {
	topicID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	data, err := ec.exercises.LoadFillInBlankExercises(c.Request.Context(), topicID)
	if err != nil {
		respondError(c, ec.log, err, "load fill-in-blank exercises")
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetMixed handles GET /api/topics/:id/mixed?count=.
func (ec *ExercisesController) GetMixed(c *gin.Context) {
	topicID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	count, ok := parseCountQuery(c, adapters.DefaultMixedCount)
	if !ok {
		return
	}
	mixed, err := ec.exercises.LoadMixedExercises(c.Request.Context(), topicID, count)
	if err != nil {
		respondError(c, ec.log, err, "load mixed exercises")
		return
	}
	c.JSON(http.StatusOK, mixed)
}
