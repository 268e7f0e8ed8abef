package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/disk"
	"github.com/muurk/mbrsim/internal/server"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	a := analyzer.New(disk.NewManager(), nil)
	srv, err := server.New(&server.Config{}, a)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func testClient(url string) *Client {
	c := NewWithURL(url)
	c.SetRetry(2, time.Millisecond)
	return c
}

func TestClient_AnalyzeAndMounts(t *testing.T) {
	ts := newServer(t)
	c := testClient(ts.URL)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a.mia")

	responses, err := c.Analyze(ctx, []string{
		"mkdisk -size=10 -unit=k -path=" + path,
		"fdisk -size=2 -path=" + path + " -name=p1",
		"mount -path=" + path + " -name=p1",
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}

	mounts, err := c.Mounts(ctx)
	if err != nil {
		t.Fatalf("Mounts() error = %v", err)
	}
	want := []disk.MountedPartition{{Path: path, Name: "p1", ID: "491a", Status: disk.StatusMounted}}
	if diff := cmp.Diff(want, mounts); diff != "" {
		t.Errorf("Mounts() mismatch (-want +got):\n%s", diff)
	}

	health, err := c.Health(ctx)
	if err != nil || health.Mounts != 1 {
		t.Errorf("Health() = %+v, %v", health, err)
	}
}

func TestClient_Stream(t *testing.T) {
	ts := newServer(t)
	c := testClient(ts.URL)

	var got []string
	err := c.Stream(context.Background(), []string{"# one", "bogus", "# two"}, func(r analyzer.Response) {
		got = append(got, r.Command)
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if diff := cmp.Diff([]string{"comment", "bogus", "comment"}, got); diff != "" {
		t.Errorf("streamed commands (-want +got):\n%s", diff)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set(server.RequestIDHeader, "req-1")
			http.Error(w, `{"error":"busy"}`, http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer ts.Close()

	mounts, err := testClient(ts.URL).Mounts(context.Background())
	if err != nil {
		t.Fatalf("Mounts() error = %v", err)
	}
	if len(mounts) != 0 || calls.Load() != 3 {
		t.Errorf("mounts = %v after %d calls", mounts, calls.Load())
	}
}

func TestClient_AnalyzeNotRetriedAfterReachingServer(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set(server.RequestIDHeader, "req-7")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"disk on fire"}`))
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).Analyze(context.Background(), []string{"mkdisk"})
	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("Analyze() error = %v, want *ClientError", err)
	}
	if ce.Type != ErrTypeHTTP || ce.StatusCode != 500 || ce.Message != "disk on fire" || ce.RequestID != "req-7" {
		t.Errorf("ClientError = %+v", ce)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestClient_ParseError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).Mounts(context.Background())
	if TypeOf(err) != ErrTypeParse {
		t.Errorf("Mounts() error = %v, want parse error", err)
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	_, err = testClient("http://"+addr).Mounts(context.Background())
	if TypeOf(err) != ErrTypeConnectionRefused {
		t.Errorf("Mounts() error = %v, want connection refused", err)
	}
	if !IsRetryable(err) {
		t.Error("connection refused should be retryable")
	}
}

func TestClient_Cancelled(t *testing.T) {
	ts := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(ts.URL).Mounts(ctx)
	if TypeOf(err) != ErrTypeCanceled {
		t.Errorf("Mounts() error = %v, want cancelled", err)
	}
}

func TestNew(t *testing.T) {
	if c := New("host:1", false); c.BaseURL != "http://host:1" {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
	if c := New("host:1", true); c.BaseURL != "https://host:1" {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
	if c := NewWithURL("http://host:1/"); c.BaseURL != "http://host:1" {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
}
