// Package ipc implements the data adapters as an HTTP client of the
// localhost broker.
package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lingoplay/core/internal/adapters"
	"github.com/lingoplay/core/internal/entities"
	broker "github.com/lingoplay/core/internal/http"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the broker.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("broker: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("broker: %d: %s", e.Status, e.Message)
}

// Is maps broker error codes back to the sentinel errors of the local
// adapter.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case broker.CodeDatabaseUnavailable:
		return target == entities.ErrDatabaseUnavailable
	case broker.CodeMigrationFailed:
		return target == entities.ErrMigrationFailed
	case broker.CodeInvalidSetting:
		return target == adapters.ErrEmptySetting
	}
	return false
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient sends requests through a copy of hc, so later options do
// not change a client shared elsewhere. A nil hc is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		copied := *hc
		c.httpClient = &copied
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a client for the broker listening at baseURL, for example
// "http://127.0.0.1:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one request and decodes a 2xx body into out. A broker that
// cannot be reached is reported as a database-unavailable failure.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return entities.Unavailable(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body broker.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Code
		if body.Error != "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func typeQuery(t entities.ExerciseType) url.Values {
	if t == "" {
		return nil
	}
	return url.Values{"type": {string(t)}}
}

func topicPath(topicID uint, kind string) string {
	return broker.PathTopics + "/" + strconv.FormatUint(uint64(topicID), 10) + "/" + kind
}

// Health returns the broker's health report. An unhealthy broker answers
// 503 with the report as body, which is returned along with the error.
func (c *Client) Health(ctx context.Context) (*broker.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+broker.PathHealth, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, entities.Unavailable("GET "+broker.PathHealth, err)
	}
	defer resp.Body.Close()

	var health broker.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &health, &APIError{Status: resp.StatusCode, Message: health.Status}
	}
	return &health, nil
}

func (c *Client) LoadTopics(ctx context.Context, exerciseType entities.ExerciseType) ([]entities.Topic, error) {
	var topics []entities.Topic
	if err := c.get(ctx, broker.PathTopics, typeQuery(exerciseType), &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func (c *Client) LoadPairExercises(ctx context.Context, topicID uint) (*entities.PairExerciseData, error) {
	var data *entities.PairExerciseData
	err := c.get(ctx, topicPath(topicID, "pairs"), nil, &data)
	return data, err
}

func (c *Client) LoadConversationExercises(ctx context.Context, topicID uint) (*entities.ConversationExerciseData, error) {
	var data *entities.ConversationExerciseData
	err := c.get(ctx, topicPath(topicID, "conversation"), nil, &data)
	return data, err
}

func (c *Client) LoadTranslationExercises(ctx context.Context, topicID uint) (*entities.TranslationExerciseData, error) {
	var data *entities.TranslationExerciseData
	err := c.get(ctx, topicPath(topicID, "translation"), nil, &data)
	return data, err
}

func (c *Client) LoadFillInBlankExercises(ctx context.Context, topicID uint) (*entities.FillInBlankExerciseData, error) {
	var data *entities.FillInBlankExerciseData
	err := c.get(ctx, topicPath(topicID, "fill-in-blank"), nil, &data)
	return data, err
}

func (c *Client) LoadMixedExercises(ctx context.Context, topicID uint, count int) ([]entities.ExerciseInfo, error) {
	var mixed []entities.ExerciseInfo
	query := url.Values{"count": {strconv.Itoa(count)}}
	if err := c.get(ctx, topicPath(topicID, "mixed"), query, &mixed); err != nil {
		return nil, err
	}
	return mixed, nil
}

func (c *Client) LoadExerciseTypes(ctx context.Context) ([]entities.ExerciseType, error) {
	var types []entities.ExerciseType
	if err := c.get(ctx, broker.PathExerciseTypes, nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

func (c *Client) LoadTopicProgress(ctx context.Context, exerciseType entities.ExerciseType) ([]entities.TopicProgress, error) {
	var progress []entities.TopicProgress
	if err := c.get(ctx, broker.PathTopicProgress, typeQuery(exerciseType), &progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// RecordAttempt posts the attempt. A broker with a task queue accepts it
// before it is stored.
func (c *Client) RecordAttempt(ctx context.Context, exerciseID uint, isCorrect bool) error {
	req := broker.AttemptRequest{ExerciseID: exerciseID, IsCorrect: isCorrect}
	return c.do(ctx, http.MethodPost, broker.PathAttempts, nil, req, nil)
}

func (c *Client) LoadStats(ctx context.Context) (*adapters.Stats, error) {
	var stats adapters.Stats
	if err := c.get(ctx, broker.PathStats, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) LoadUserSettings(ctx context.Context) (*entities.UserContext, error) {
	var uc entities.UserContext
	if err := c.get(ctx, broker.PathSettings, nil, &uc); err != nil {
		return nil, err
	}
	return &uc, nil
}

func (c *Client) SaveUserSettings(ctx context.Context, update adapters.SettingsUpdate) (*entities.UserContext, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	var uc entities.UserContext
	if err := c.do(ctx, http.MethodPatch, broker.PathSettings, nil, update, &uc); err != nil {
		return nil, err
	}
	return &uc, nil
}

func (c *Client) LoadReferenceData(ctx context.Context) (*adapters.ReferenceData, error) {
	var ref adapters.ReferenceData
	if err := c.get(ctx, broker.PathReference, nil, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// IsNotReachable reports whether err came from a broker that could not be
// contacted at all, as opposed to one that answered with an error.
func IsNotReachable(err error) bool {
	var apiErr *APIError
	return entities.IsUnavailable(err) && !errors.As(err, &apiErr)
}
