package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/disk"
	"github.com/muurk/mbrsim/internal/logging"
	"github.com/muurk/mbrsim/internal/server"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 10 * time.Second
)

// Client talks to a remote mbrsim-server.
type Client struct {
	// BaseURL is the server's base URL (e.g., "http://192.168.4.16:8080")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// Dialer opens WebSocket sessions for Stream
	Dialer *websocket.Dialer

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration
}

// New creates a client for the server at address (host:port). When
// useTLS is set the client speaks https and wss.
func New(address string, useTLS bool) *Client {
	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	return NewWithURL(scheme + "://" + address)
}

// NewWithURL creates a client with a full base URL
func NewWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		Dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// InsecureSkipVerify disables certificate checks, for servers using a
// self-signed certificate.
func (c *Client) InsecureSkipVerify() {
	cfg := &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed servers
	c.HTTPClient.Transport = &http.Transport{TLSClientConfig: cfg}
	c.Dialer.TLSClientConfig = cfg
}

// Health fetches the server's health report.
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	var out server.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze runs commands on the server and returns one response per
// non-blank line. Analyze is not retried once the request has reached the
// server, since scripts change disk images.
func (c *Client) Analyze(ctx context.Context, commands []string) ([]analyzer.Response, error) {
	body, err := json.Marshal(server.AnalyzeRequest{Commands: commands})
	if err != nil {
		return nil, NewParseError("failed to encode request", err)
	}
	var out []analyzer.Response
	if err := c.do(ctx, http.MethodPost, "/analyze", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Mounts returns the server's mount table.
func (c *Client) Mounts(ctx context.Context) ([]disk.MountedPartition, error) {
	var out []disk.MountedPartition
	if err := c.do(ctx, http.MethodGet, "/mounts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do runs a request with retries. POST requests are only retried when the
// connection could not be made, so a script never runs twice.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug("Retrying request",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", currentDelay),
			)
			select {
			case <-ctx.Done():
				return ClassifyNetworkError("request cancelled", ctx.Err())
			case <-time.After(currentDelay):
			}

			// Exponential backoff
			currentDelay *= 2
			if currentDelay > c.MaxRetryDelay {
				currentDelay = c.MaxRetryDelay
			}
		}

		err := c.attempt(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || (method != http.MethodGet && TypeOf(err) != ErrTypeConnectionRefused) {
			return err
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return &ClientError{Type: ErrTypeNetwork, Message: "failed to create request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return ClassifyNetworkError(method+" "+path+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	requestID := resp.Header.Get(server.RequestIDHeader)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassifyNetworkError("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		var e server.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return NewHTTPError(resp.StatusCode, msg, requestID)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return NewParseError("failed to parse JSON response", err)
	}
	return nil
}

// Stream runs commands over a WebSocket session and calls fn with each
// response as the server produces it. It returns once the server signals
// the end of the script.
func (c *Client) Stream(ctx context.Context, commands []string, fn func(analyzer.Response)) error {
	wsURL := "ws" + strings.TrimPrefix(c.BaseURL, "http") + "/ws"
	conn, resp, err := c.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return NewHTTPError(resp.StatusCode, "websocket upgrade rejected", resp.Header.Get(server.RequestIDHeader))
		}
		return ClassifyNetworkError("websocket dial failed", err)
	}
	defer func() { _ = conn.Close() }()

	// Unblock the read loop when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	script := strings.Join(commands, "\n")
	if err := conn.WriteMessage(websocket.TextMessage, []byte(script)); err != nil {
		return ClassifyNetworkError("failed to send script", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ClassifyNetworkError("stream cancelled", ctx.Err())
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return &ClientError{Type: ErrTypeProtocol, Message: "server closed the session before the script finished", Err: err}
			}
			return ClassifyNetworkError("failed to read response", err)
		}

		var r analyzer.Response
		if err := json.Unmarshal(data, &r); err != nil {
			return NewParseError("failed to parse streamed response", err)
		}
		if r.Command == server.DoneCommand {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		}
		fn(r)
	}
}
