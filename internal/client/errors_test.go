package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{name: "cancelled", err: context.Canceled, wantType: ErrTypeCanceled},
		{name: "deadline", err: fmt.Errorf("get: %w", context.DeadlineExceeded), wantType: ErrTypeTimeout, retryable: true},
		{name: "dns", err: &net.DNSError{Name: "nowhere"}, wantType: ErrTypeDNS},
		{
			name:      "refused",
			err:       &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
			wantType:  ErrTypeConnectionRefused,
			retryable: true,
		},
		{name: "other", err: errors.New("reset"), wantType: ErrTypeNetwork, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError("request failed", tt.err)
			if got.Type != tt.wantType || got.Retryable != tt.retryable {
				t.Errorf("ClassifyNetworkError() = %v (retryable %v), want %v (retryable %v)",
					got.Type, got.Retryable, tt.wantType, tt.retryable)
			}
			if !errors.Is(got, tt.err) {
				t.Error("underlying error not wrapped")
			}
		})
	}

	if ClassifyNetworkError("x", nil) != nil {
		t.Error("ClassifyNetworkError(nil) != nil")
	}
}

func TestNewHTTPError_Retryable(t *testing.T) {
	for status, want := range map[int]bool{400: false, 404: false, 429: true, 500: true, 503: true} {
		if got := NewHTTPError(status, "", "").Retryable; got != want {
			t.Errorf("HTTP %d retryable = %v, want %v", status, got, want)
		}
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	hint := GetTroubleshootingHint(NewHTTPError(500, "boom", "abc"))
	if !strings.Contains(strings.Join(hint, "\n"), "abc") {
		t.Errorf("hint does not mention the request ID: %v", hint)
	}
	if len(GetTroubleshootingHint(errors.New("plain"))) != 1 {
		t.Error("plain errors should get the generic hint")
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	refused := &ClientError{Type: ErrTypeConnectionRefused}
	if got := GetShortErrorMessage(refused); !strings.Contains(got, "mbrsim-server") {
		t.Errorf("GetShortErrorMessage() = %q", got)
	}
	if got := GetShortErrorMessage(errors.New("plain")); got != "plain" {
		t.Errorf("GetShortErrorMessage() = %q", got)
	}
}
