package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/contest-client/internal/models"
)

// Client is a Go SDK for the contest judge API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new judge API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is returned for every failed exchange with the judge.
// StatusCode is 0 when no HTTP response was received.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("request failed: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
}

// Unwrap lets errors.Is match both the cause and models.ErrTransport
func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{models.ErrTransport, e.Err}
	}
	return []error{models.ErrTransport}
}

// envelope is the wrapper around every judge response
type envelope[T any] struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Data      *T              `json:"data"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

var errNoData = errors.New("response has no data")

// GetContest retrieves a contest with its problem list
func (c *Client) GetContest(ctx context.Context, contestID int64) (*models.Contest, error) {
	return do[models.Contest](ctx, c, http.MethodGet, fmt.Sprintf("/contests/%d", contestID), nil)
}

// JoinContest registers a participant and returns their identity
func (c *Client) JoinContest(ctx context.Context, contestID int64, req models.JoinRequest) (*models.User, error) {
	resp, err := do[models.JoinResponse](ctx, c, http.MethodPost, fmt.Sprintf("/contests/%d/join", contestID), req)
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:       resp.UserID,
		Username: resp.Username,
		Email:    req.Email,
	}, nil
}

// GetProblem retrieves the full statement of a contest problem
func (c *Client) GetProblem(ctx context.Context, contestID, problemID int64) (*models.ProblemDetail, error) {
	return do[models.ProblemDetail](ctx, c, http.MethodGet, fmt.Sprintf("/contests/%d/problems/%d", contestID, problemID), nil)
}

// CreateSubmission submits code for judging
func (c *Client) CreateSubmission(ctx context.Context, req models.SubmitRequest) (*models.Submission, error) {
	return do[models.Submission](ctx, c, http.MethodPost, "/submissions", req)
}

// GetSubmission retrieves the latest snapshot of a submission
func (c *Client) GetSubmission(ctx context.Context, submissionID int64) (*models.Submission, error) {
	return do[models.Submission](ctx, c, http.MethodGet, fmt.Sprintf("/submissions/%d", submissionID), nil)
}

// GetLeaderboard retrieves the standings of a contest
func (c *Client) GetLeaderboard(ctx context.Context, contestID int64) (*models.LeaderboardResponse, error) {
	return do[models.LeaderboardResponse](ctx, c, http.MethodGet, fmt.Sprintf("/contests/%d/leaderboard", contestID), nil)
}

// Health checks if the judge is reachable
func (c *Client) Health(ctx context.Context) error {
	_, _, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}

// do performs a request and unwraps the response envelope
func do[T any](ctx context.Context, c *Client, method, path string, payload any) (*T, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	status, resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	var result envelope[T]
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, &APIError{StatusCode: status, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	if !result.Success {
		return nil, &APIError{StatusCode: status, Message: result.Message}
	}

	if result.Data == nil {
		return nil, &APIError{StatusCode: status, Message: result.Message, Err: errNoData}
	}

	return result.Data, nil
}

// doRequest performs an HTTP request and returns the status and body
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, &APIError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &APIError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("judge request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &APIError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	return resp.StatusCode, respBody, nil
}

// errorMessage extracts the server message from an error body, if any
func errorMessage(body []byte) string {
	var result struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err == nil && result.Message != "" {
		return result.Message
	}
	return strings.TrimSpace(string(body))
}
