// Package client talks to the question-answering endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultBaseURL = "http://localhost:8000"

// RequestError is returned when the endpoint answers with a non-2xx status.
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTP error! status: %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// TransportError is returned when the endpoint could not be reached or its
// reply could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	newID      func() string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client for baseURL. The default HTTP client has no timeout;
// callers bound requests through the context.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

type askRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id"`
}

type askResponse struct {
	Answer string `json:"answer"`
	UserID string `json:"user_id,omitempty"`
}

// Ask sends one question and returns the answer. It makes exactly one attempt.
func (c *Client) Ask(ctx context.Context, question, userID string) (string, error) {
	body, err := json.Marshal(askRequest{Question: question, UserID: userID})
	if err != nil {
		return "", fmt.Errorf("encode ask request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ask request: %w", err)
	}
	reqID := c.newID()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := &TransportError{Op: "post /ask", Err: err}
		c.logger.Error("ask request failed", "request_id", reqID, "error", terr)
		return "", terr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rerr := &RequestError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
		c.logger.Error("ask request rejected",
			"request_id", reqID,
			"status", resp.StatusCode,
			"error", rerr,
		)
		return "", rerr
	}

	var out askResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		terr := &TransportError{Op: "decode", Err: err}
		c.logger.Error("ask response unreadable", "request_id", reqID, "error", terr)
		return "", terr
	}

	c.logger.Info("ask ok",
		"request_id", reqID,
		"duration", time.Since(start),
		"answer_len", len(out.Answer),
	)
	return out.Answer, nil
}

// Health reports whether the endpoint's /health route answers "healthy".
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "get /health", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &TransportError{Op: "decode", Err: err}
	}
	if out.Status != "healthy" {
		return fmt.Errorf("backend status %q", out.Status)
	}
	return nil
}

// readDetail extracts a FastAPI-style {"detail": ...} message, falling back to
// a short prefix of the raw body.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Detail != nil {
		if s, ok := body.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(body.Detail); err == nil {
			return string(b)
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
