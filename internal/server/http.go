package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/disk"
	"github.com/muurk/mbrsim/internal/logging"
	"github.com/muurk/mbrsim/internal/version"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxBodySize bounds an /analyze request body.
const maxBodySize = 1 << 20

type contextKey int

const requestIDKey contextKey = 0

// AnalyzeRequest is the body of POST /analyze. Each entry may hold one
// line or several separated by newlines.
type AnalyzeRequest struct {
	Commands []string `json:"commands"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version version.BuildInfo `json:"version"`
	Mounts  int               `json:"mounts"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /mounts", s.handleMounts)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s.withRequestID(s.withCORS(mux))
}

// RequestID returns the ID assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Scripts flattens request entries into script lines.
func (r AnalyzeRequest) Scripts() []string {
	return analyzer.Lines(strings.Join(r.Commands, "\n"))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	responses := s.run(r.Context(), req.Scripts(), nil)
	if responses == nil {
		responses = []analyzer.Response{}
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleMounts(w http.ResponseWriter, r *http.Request) {
	mounts := s.analyzer.Disks().Mounted()
	if mounts == nil {
		mounts = []disk.MountedPartition{}
	}
	writeJSON(w, http.StatusOK, mounts)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.Info(),
		Mounts:  len(s.analyzer.Disks().Mounted()),
	})
}

// run executes lines with the script lock held. fn, when set, receives each
// response as it is produced.
func (s *Server) run(ctx context.Context, lines []string, fn func(analyzer.Response) error) []analyzer.Response {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	var out []analyzer.Response
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	_ = s.analyzer.Stream(ctx, lines, func(_ int, resp analyzer.Response) {
		out = append(out, resp)
		if fn != nil {
			if err := fn(resp); err != nil {
				cancel()
			}
		}
	})
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), RequestID: RequestID(r.Context())})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.allowOrigin())
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestID assigns every request an ID, echoes it in the response and
// logs the request and its outcome.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		logging.LogHTTPRequest(id, r.RemoteAddr, r.Method, r.URL.Path)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		logging.LogHTTPResponse(id, rec.status, time.Since(start))
	})
}

// statusRecorder remembers the status code. It passes Hijack through so
// WebSocket upgrades work behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
