// Package api is the HTTP client for the vault REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/cloudvault/cloudvault-cli/internal/config"
	"github.com/cloudvault/cloudvault-cli/internal/constants"
	"github.com/cloudvault/cloudvault-cli/internal/http"
	"github.com/cloudvault/cloudvault-cli/internal/logging"
	"github.com/cloudvault/cloudvault-cli/internal/ratelimit"
	"github.com/cloudvault/cloudvault-cli/internal/version"
)

// TokenSource supplies the current bearer token. An empty token sends no
// Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorf("[retry] %s %v", msg, keysAndValues)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugf("[retry] %s %v", msg, keysAndValues)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnf("[retry] %s %v", msg, keysAndValues)
}

// Client represents the vault API client
type Client struct {
	httpClient   *nethttp.Client // single attempt
	healthClient *nethttp.Client // retried on network failure
	baseURL      string
	timeout      time.Duration
	tokens       TokenSource
	limiter      *ratelimit.RateLimiter // nil when requests_per_second is 0
	logger       *logging.Logger
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, tokens TokenSource, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	httpClient, err := http.CreateOptimizedClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.HealthRetries
	retryClient.RetryWaitMin = constants.HealthRetryWaitMin
	retryClient.RetryWaitMax = constants.HealthRetryWaitMax
	retryClient.CheckRetry = http.CheckRetry
	retryClient.Backoff = http.Backoff
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{logger: logger}

	c := &Client{
		httpClient:   httpClient,
		healthClient: retryClient.StandardClient(),
		baseURL:      cfg.BaseURL(),
		timeout:      cfg.RequestTimeout,
		tokens:       tokens,
		logger:       logger,
	}

	if cfg.RequestsPerSecond > 0 {
		c.limiter = ratelimit.NewRateLimiter(cfg.RequestsPerSecond, constants.RateLimitBurst)
		c.limiter.SetLogger(logger)
	}

	return c, nil
}

// BaseURL returns the vault URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends a JSON request and decodes a JSON response into out (when non-nil).
//
// Non-2xx responses return *APIError. Transport failures return an error
// wrapping ErrNetwork. The request runs once.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	return c.do(ctx, c.httpClient, method, endpoint, body, out)
}

func (c *Client) do(ctx context.Context, client *nethttp.Client, method, endpoint string, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter cancelled: %w", err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload == nil {
		req.Body = nethttp.NoBody
		req.ContentLength = 0
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("method", method).
			Str("endpoint", endpoint).
			Str("class", http.ErrorTypeName(http.ClassifyError(err))).
			Err(err).
			Msg("request failed")
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", ErrNetwork, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorBody(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// parseErrorBody extracts message or error from a failed response.
func parseErrorBody(status int, data []byte) *APIError {
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return newAPIError(status, "", "")
	}
	return newAPIError(status, rawString(body.Message), rawString(body.Error))
}

// rawString returns the JSON string value, or "" when the field is absent
// or not a string.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// IsCanceled reports whether err was caused by context cancellation rather
// than the server or the network path.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// SetTokenSource replaces the token source. Call before issuing requests.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}
