package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"scenario-quiz-service/internal/domain"
)

// UserHeader carries the player identity on every API call.
const UserHeader = "X-Quiz-User"

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// MaxAttempts bounds retries of idempotent calls; 3 when zero.
	MaxAttempts  int
	InitialDelay time.Duration
	Logger       *slog.Logger
	HTTPClient   *http.Client
}

type response struct {
	code int
	body []byte
}

// Client talks to the quiz progress, score and settings API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	breaker circuitbreaker.CircuitBreaker[*response]
	retrier retry.Retry[*response]
}

func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 200 * time.Millisecond
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}
	c.breaker = circuitbreaker.New[*response](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			c.logger.Warn("quiz api circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})
	c.retrier = retry.New[*response](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   isRetryable,
	})
	return c
}

// GetQuizProgress fetches a user's snapshot; a 404 or an unsuccessful envelope is ErrProgressNotFound.
func (c *Client) GetQuizProgress(ctx context.Context, username, quizName string) (*domain.ProgressSnapshot, error) {
	resp, err := c.call(ctx, http.MethodGet, "/api/quiz-progress/"+url.PathEscape(quizName), username, nil, true)
	if err != nil {
		return nil, err
	}
	if resp.code == http.StatusNotFound {
		return nil, domain.ErrProgressNotFound
	}
	snap, err := domain.DecodeSnapshot(resp.body, domain.DefaultQuestionsPerTier)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) SaveQuizProgress(ctx context.Context, username, quizName string, snap domain.ProgressSnapshot) error {
	path := "/api/quiz-progress/" + url.PathEscape(quizName)
	resp, err := c.call(ctx, http.MethodPut, path, username, snap, true)
	if err != nil {
		return err
	}
	return resp.check(http.MethodPut, path)
}

func (c *Client) UpdateQuizScore(ctx context.Context, report domain.ScoreReport) error {
	path := "/api/quiz-scores/" + url.PathEscape(report.QuizName)
	resp, err := c.call(ctx, http.MethodPost, path, report.Username, report, false)
	if err != nil {
		return err
	}
	return resp.check(http.MethodPost, path)
}

func (c *Client) GetQuizTimerSettings(ctx context.Context) (domain.Settings, error) {
	const path = "/api/settings/quiz-timers"
	resp, err := c.call(ctx, http.MethodGet, path, "", nil, true)
	if err != nil {
		return domain.Settings{}, err
	}
	if err := resp.check(http.MethodGet, path); err != nil {
		return domain.Settings{}, err
	}
	var env struct {
		Success bool            `json:"success"`
		Data    domain.Settings `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return domain.Settings{}, fmt.Errorf("decode timer settings: %w", err)
	}
	if !env.Success {
		return domain.Settings{}, errors.New("timer settings request was not successful")
	}
	return env.Data, nil
}

// ListQuizzes returns the quizzes the server can play.
func (c *Client) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	const path = "/api/quizzes"
	resp, err := c.call(ctx, http.MethodGet, path, "", nil, true)
	if err != nil {
		return nil, err
	}
	if err := resp.check(http.MethodGet, path); err != nil {
		return nil, err
	}
	var env struct {
		Data []domain.QuizSummary `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return nil, fmt.Errorf("decode quizzes: %w", err)
	}
	return env.Data, nil
}

// call runs one request through the circuit breaker; idempotent calls are retried too.
// 404 is returned as a response, not an error, so a missing snapshot never trips the breaker.
func (c *Client) call(ctx context.Context, method, path, username string, body any, idempotent bool) (*response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = data
	}

	operation := func(ctx context.Context) (*response, error) {
		return c.do(ctx, method, path, username, payload)
	}
	return c.breaker.Execute(ctx, func(ctx context.Context) (*response, error) {
		if idempotent {
			return c.retrier.Do(ctx, operation)
		}
		return operation(ctx)
	})
}

func (c *Client) do(ctx context.Context, method, path, username string, payload []byte) (*response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if username != "" {
		req.Header.Set(UserHeader, username)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusNotFound || (res.StatusCode >= 200 && res.StatusCode < 300) {
		return &response{code: res.StatusCode, body: data}, nil
	}
	return nil, &StatusError{Method: method, Path: path, Code: res.StatusCode}
}

// check turns a 404 passed through by do into a StatusError for callers where it is a failure.
func (r *response) check(method, path string) error {
	if r.code < 200 || r.code >= 300 {
		return &StatusError{Method: method, Path: path, Code: r.code}
	}
	return nil
}

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// transport errors (connection refused, reset)
	return true
}
