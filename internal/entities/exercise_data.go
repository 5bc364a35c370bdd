package entities

// PairExerciseData is an exercise together with all of its pairs.
type PairExerciseData struct {
	Exercise ExerciseInfo   `json:"exercise"`
	Pairs    []PairExercise `json:"pairs"`
}

// ConversationExerciseData carries the ordered turns plus the
// comprehension check: the correct summary and distractors taken from
// other exercises.
type ConversationExerciseData struct {
	Exercise       ExerciseInfo       `json:"exercise"`
	TopicName      string             `json:"topic_name"`
	Turns          []ConversationTurn `json:"turns"`
	Summary        string             `json:"summary"`
	WrongSummaries []string           `json:"wrong_summaries"`
}

type TranslationExerciseData struct {
	Exercise  ExerciseInfo          `json:"exercise"`
	Sentences []TranslationExercise `json:"sentences"`
}

// FillInBlankItem is a translation sentence with one word removed.
type FillInBlankItem struct {
	SentenceID  uint     `json:"sentence_id"`
	Sentence    string   `json:"sentence"`
	Answer      string   `json:"answer"`
	Translation string   `json:"translation"`
	Options     []string `json:"options"`
}

type FillInBlankExerciseData struct {
	Exercise ExerciseInfo      `json:"exercise"`
	Items    []FillInBlankItem `json:"items"`
}

// TopicProgress is one row of the per-topic completion report.
type TopicProgress struct {
	TopicID            uint   `json:"topic_id"`
	TopicName          string `json:"topic_name"`
	TotalExercises     int64  `json:"total_exercises"`
	CompletedExercises int64  `json:"completed_exercises"`
	Percentage         int    `json:"percentage"`
}

type AttemptCounts struct {
	Attempts int64 `json:"attempts"`
	Correct  int64 `json:"correct"`
}

// AggregateStats summarises a user's attempts. It is recomputed on
// demand and also serialised into legacy_* settings during migration.
type AggregateStats struct {
	TotalAttempts int64                    `json:"total_attempts"`
	TotalCorrect  int64                    `json:"total_correct"`
	PerLanguage   map[string]AttemptCounts `json:"per_language"`
	PerTopic      map[string]AttemptCounts `json:"per_topic"`
}

// NewAggregateStats returns empty stats with initialised maps.
func NewAggregateStats() *AggregateStats {
	return &AggregateStats{
		PerLanguage: make(map[string]AttemptCounts),
		PerTopic:    make(map[string]AttemptCounts),
	}
}

// Merge adds other into s.
func (s *AggregateStats) Merge(other *AggregateStats) {
	if other == nil {
		return
	}
	if s.PerLanguage == nil {
		s.PerLanguage = make(map[string]AttemptCounts)
	}
	if s.PerTopic == nil {
		s.PerTopic = make(map[string]AttemptCounts)
	}
	s.TotalAttempts += other.TotalAttempts
	s.TotalCorrect += other.TotalCorrect
	for name, c := range other.PerLanguage {
		cur := s.PerLanguage[name]
		s.PerLanguage[name] = AttemptCounts{Attempts: cur.Attempts + c.Attempts, Correct: cur.Correct + c.Correct}
	}
	for name, c := range other.PerTopic {
		cur := s.PerTopic[name]
		s.PerTopic[name] = AttemptCounts{Attempts: cur.Attempts + c.Attempts, Correct: cur.Correct + c.Correct}
	}
}
