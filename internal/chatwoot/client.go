package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultUserAgent = "mortgage-chat-router/0.1"
	// IdempotencyHeader carries the reply token. Chatwoot itself ignores it,
	// so posts are never repeated once the request may have been sent.
	IdempotencyHeader = "Idempotency-Key"
)

var chatwootTracer = otel.Tracer("mortgage.internal.chatwoot")

// retryPolicy decides which failures an operation may repeat.
type retryPolicy int

const (
	// retryAll repeats on 429, 5xx and transport errors. Only for requests
	// that are safe to apply twice.
	retryAll retryPolicy = iota
	// retryUnsent repeats only when Chatwoot cannot have acted on the
	// request: a 429 or a connection that was never established. Message
	// posts use it because Chatwoot ignores Idempotency-Key.
	retryUnsent
)

// Config controls how the Chatwoot client behaves.
type Config struct {
	BaseURL    string
	APIToken   string
	AccountID  int64
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	UserAgent  string
}

// Client wraps the Chatwoot application API endpoints the router needs.
type Client struct {
	apiToken   string
	baseURL    string
	accountID  int64
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, errors.New("chatwoot: API token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("chatwoot: base URL is required")
	}
	if cfg.AccountID <= 0 {
		return nil, errors.New("chatwoot: account id is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		apiToken:   cfg.APIToken,
		baseURL:    baseURL,
		accountID:  cfg.AccountID,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// PostMessage creates a message in a conversation. idempotencyKey may be empty.
func (c *Client) PostMessage(ctx context.Context, conversationID int64, msg OutgoingMessage, idempotencyKey string) (*MessageResponse, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	if msg.MessageType == "" {
		msg.MessageType = MessageOutgoing
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("chatwoot: marshal message: %w", err)
	}
	data, err := c.invoke(ctx, "post_message", retryUnsent, http.MethodPost, c.conversationPath(conversationID, "/messages"), body, idempotencyKey)
	if err != nil {
		return nil, err
	}
	var resp MessageResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("chatwoot: decode message response: %w", err)
	}
	return &resp, nil
}

// UpdateCustomAttributes merges attrs into the conversation's custom attributes.
func (c *Client) UpdateCustomAttributes(ctx context.Context, conversationID int64, attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string]any{"custom_attributes": attrs})
	if err != nil {
		return fmt.Errorf("chatwoot: marshal custom attributes: %w", err)
	}
	_, err = c.invoke(ctx, "custom_attributes", retryAll, http.MethodPost, c.conversationPath(conversationID, "/custom_attributes"), body, "")
	return err
}

// UpdateStatus sets the conversation status (open, resolved, pending, snoozed).
func (c *Client) UpdateStatus(ctx context.Context, conversationID int64, status string) error {
	switch status {
	case StatusOpen, StatusResolved, StatusPending, StatusSnoozed:
	default:
		return fmt.Errorf("chatwoot: unsupported status %q", status)
	}
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return fmt.Errorf("chatwoot: marshal status: %w", err)
	}
	_, err = c.invoke(ctx, "update_status", retryAll, http.MethodPatch, c.conversationPath(conversationID, ""), body, "")
	return err
}

// ToggleTyping shows or hides the typing indicator.
func (c *Client) ToggleTyping(ctx context.Context, conversationID int64, on bool) error {
	status := "off"
	if on {
		status = "on"
	}
	body, err := json.Marshal(map[string]string{"typing_status": status})
	if err != nil {
		return fmt.Errorf("chatwoot: marshal typing status: %w", err)
	}
	_, err = c.invoke(ctx, "toggle_typing", retryAll, http.MethodPost, c.conversationPath(conversationID, "/toggle_typing_status"), body, "")
	return err
}

// Ping checks the API token against the profile endpoint. Used by health probes.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.invoke(ctx, "ping", retryAll, http.MethodGet, "/api/v1/profile", nil, "")
	return err
}

func (c *Client) conversationPath(conversationID int64, suffix string) string {
	return fmt.Sprintf("/api/v1/accounts/%d/conversations/%d%s", c.accountID, conversationID, suffix)
}

func (c *Client) invoke(ctx context.Context, operation string, policy retryPolicy, method, path string, body []byte, idempotencyKey string) ([]byte, error) {
	ctx, span := chatwootTracer.Start(ctx, "chatwoot."+operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("chatwoot.path", path),
	)

	data, err := c.do(ctx, policy, method, path, body, idempotencyKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return data, err
}

func (c *Client) do(ctx context.Context, policy retryPolicy, method, path string, body []byte, idempotencyKey string) ([]byte, error) {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("chatwoot: build request: %w", err)
		}
		req.Header.Set("api_access_token", c.apiToken)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idempotencyKey != "" {
			req.Header.Set(IdempotencyHeader, idempotencyKey)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(policy, 0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("chatwoot: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("chatwoot: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && shouldRetry(policy, resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("chatwoot: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	c.logger.Warn("chatwoot retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(policy retryPolicy, status int, err error) bool {
	if policy == retryUnsent {
		if err != nil {
			return notSent(err)
		}
		return status == http.StatusTooManyRequests
	}
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}

// notSent reports whether err happened before the request left the client,
// i.e. the connection was never established.
func notSent(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// APIError is a non-2xx Chatwoot response.
type APIError struct {
	StatusCode int      `json:"-"`
	Message    string   `json:"message,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	Body       string   `json:"-"`
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("chatwoot: %s (status=%d)", e.Message, e.StatusCode)
	case len(e.Errors) > 0:
		return fmt.Sprintf("chatwoot: %s (status=%d)", strings.Join(e.Errors, "; "), e.StatusCode)
	}
	return fmt.Sprintf("chatwoot: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var parsed APIError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &APIError{StatusCode: status, Body: string(body)}
	}
	parsed.StatusCode = status
	parsed.Body = string(body)
	return &parsed
}
