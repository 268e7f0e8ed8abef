package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (connection reset, unreachable host, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates a non-2xx status code
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening at the address
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeCanceled indicates the caller's context ended
	ErrTypeCanceled
	// ErrTypeProtocol indicates an unexpected WebSocket exchange
	ErrTypeProtocol
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeCanceled:
		return "Canceled"
	case ErrTypeProtocol:
		return "Protocol Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ClientError is an error talking to an mbrsim server.
type ClientError struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	RequestID  string    // Server request ID (if the server answered)
	Err        error     // Underlying error (if any)
	Retryable  bool      // Whether the request may succeed if repeated
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ClientError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport error to a ClientError.
func ClassifyNetworkError(message string, err error) *ClientError {
	if err == nil {
		return nil
	}
	e := &ClientError{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: true}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.Canceled):
		e.Type, e.Retryable = ErrTypeCanceled, false
	case errors.Is(err, context.DeadlineExceeded), os.IsTimeout(err):
		e.Type = ErrTypeTimeout
	case errors.As(err, &dnsErr):
		e.Type, e.Retryable = ErrTypeDNS, false
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED):
		e.Type = ErrTypeConnectionRefused
	}

	// url.Error from net/http wraps all of the above; the checks see through it.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && e.Type == ErrTypeNetwork && urlErr.Timeout() {
		e.Type = ErrTypeTimeout
	}
	return e
}

// NewHTTPError creates an HTTP-level error. Server errors are retryable.
func NewHTTPError(statusCode int, message, requestID string) *ClientError {
	return &ClientError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		RequestID:  requestID,
		Retryable:  statusCode >= 500 || statusCode == 429,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *ClientError {
	return &ClientError{Type: ErrTypeParse, Message: message, Err: err}
}

// TypeOf returns the ErrorType of err, or -1 if err is not a ClientError.
func TypeOf(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return -1
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}

// GetTroubleshootingHint returns user-facing advice for err, one tip per line.
func GetTroubleshootingHint(err error) []string {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return []string{"An unexpected error occurred. Please try again."}
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return []string{
			"The server did not respond in time.",
			"Check that mbrsim-server is running and reachable",
			"Try a longer --timeout",
		}
	case ErrTypeConnectionRefused:
		return []string{
			"Nothing is listening at that address.",
			"Start it with: mbrsim-server --port <port>",
			"Check the port number",
			"Run 'mbrsim scan' to find servers on the local network",
		}
	case ErrTypeDNS:
		return []string{
			"Could not resolve the server hostname.",
			"Use the IP address instead of the hostname",
		}
	case ErrTypeHTTP:
		hint := []string{fmt.Sprintf("The server returned HTTP %d.", ce.StatusCode)}
		if ce.RequestID != "" {
			hint = append(hint, "Search the server log for request "+ce.RequestID)
		}
		return hint
	case ErrTypeParse, ErrTypeProtocol:
		return []string{
			"The server's reply was not understood.",
			"Check that client and server versions match (mbrsim version)",
		}
	case ErrTypeCanceled:
		return []string{"The request was cancelled."}
	default:
		return []string{
			"Network communication failed.",
			"Check your network connection",
			"Run 'mbrsim scan' to find servers on the local network",
		}
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return err.Error()
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return "Server not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Connection refused - is mbrsim-server running?"
	case ErrTypeDNS:
		return "Cannot resolve server hostname"
	case ErrTypeHTTP:
		return strings.TrimSpace(fmt.Sprintf("Server error (HTTP %d) %s", ce.StatusCode, ce.Message))
	case ErrTypeParse:
		return "Failed to parse server response"
	default:
		return ce.Message
	}
}
