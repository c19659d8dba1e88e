// Package genai calls the Gemini generateContent REST endpoint.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/logging"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash"
	apiVersion     = "v1beta"
	maxErrorBody   = 512
)

// Config configures the client.
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client implements core.Agent over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New validates cfg and returns a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "genai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	c := &Client{cfg: cfg, http: &http.Client{}, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("adapter", "genai")
	return c, nil
}

// Name returns the adapter identifier.
func (c *Client) Name() string { return "genai" }

// Ping fetches the configured model's metadata.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(c.cfg.Model, ""), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return core.ErrNetwork("genai: " + err.Error()).WithCause(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, body)
	}
	return nil
}

// Execute sends one generateContent request, retrying transient failures.
func (c *Client) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	model := opts.Model
	if model == "" {
		model = c.cfg.Model
	}
	body, err := json.Marshal(buildRequest(opts))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = c.cfg.Timeout
	}

	var result *core.ExecuteResult
	attempt := 0
	op := func() error {
		attempt++
		res, err := c.do(ctx, model, body, timeout)
		if err == nil {
			result = res
			return nil
		}
		if ctx.Err() != nil || !core.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("genai: request failed, retrying", "attempt", attempt, "error", err)
		return err
	}

	if err := backoff.Retry(op, c.backoff(ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx)
}

func (c *Client) do(ctx context.Context, model string, body []byte, timeout time.Duration) (*core.ExecuteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL(model, ":generateContent"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, core.ErrTimeout(fmt.Sprintf("genai: no response after %v", timeout)).WithCause(err)
		}
		return nil, core.ErrNetwork("genai: " + err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.ErrNetwork("genai: reading response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, data)
	}

	res, err := parseResponse(data)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	if res.Model == "" {
		res.Model = model
	}
	c.logger.Debug("genai: response", "model", res.Model, "tokens_in", res.TokensIn, "tokens_out", res.TokensOut,
		"duration", res.Duration)
	return res, nil
}

func (c *Client) modelURL(model, method string) string {
	return fmt.Sprintf("%s/%s/models/%s%s", c.cfg.BaseURL, apiVersion, model, method)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
}

// classifyStatus maps an HTTP failure to a domain error.
func classifyStatus(status int, body []byte) error {
	msg := apiErrorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	msg = fmt.Sprintf("genai: HTTP %d: %s", status, msg)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrAuth(msg).WithDetail("status", status)
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimit(msg).WithDetail("status", status)
	case status >= 500:
		return core.ErrExecution("UPSTREAM_ERROR", msg).WithDetail("status", status)
	default:
		e := core.ErrExecution("REQUEST_REJECTED", msg).WithDetail("status", status)
		e.Retryable = false
		return e
	}
}

func apiErrorMessage(body []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}

var _ core.Agent = (*Client)(nil)
