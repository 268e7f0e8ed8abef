package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/discovery"
	"github.com/muurk/mbrsim/internal/logging"
	"github.com/muurk/mbrsim/internal/version"
)

// DefaultShutdownTimeout bounds how long Shutdown waits for open requests.
const DefaultShutdownTimeout = 10 * time.Second

// Config holds the server configuration
type Config struct {
	Host        string
	Port        int
	CertPath    string // TLS is enabled when both CertPath and KeyPath are set
	KeyPath     string
	AllowOrigin string // Access-Control-Allow-Origin value, "*" when empty
	Advertise   bool   // Register the server over mDNS
	Instance    string // mDNS instance name, the hostname when empty
}

// Server serves the analyzer over HTTP and WebSocket.
type Server struct {
	config     *Config
	analyzer   *analyzer.Analyzer
	tlsConfig  *tls.Config
	httpServer *http.Server
	upgrader   websocket.Upgrader

	listener net.Listener
	ready    chan struct{}

	runMu sync.Mutex // one script at a time

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn

	stopAdvertise func()
	shutdownOnce  sync.Once
	shutdownErr   error
}

// New creates a new Server instance
func New(config *Config, a *analyzer.Analyzer) (*Server, error) {
	if a == nil {
		return nil, errors.New("server needs an analyzer")
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		if config.CertPath == "" || config.KeyPath == "" {
			return nil, errors.New("both a certificate and a key are needed for TLS")
		}
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	s := &Server{
		config:      config,
		analyzer:    a,
		tlsConfig:   tlsConfig,
		ready:       make(chan struct{}),
		activeConns: make(map[string]*websocket.Conn),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Listen binds the listening socket. Start calls it when needed; calling
// it first lets callers learn the address of a port-0 server.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener
	return nil
}

// Addr returns the listening address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start serves until ctx is cancelled, SIGINT or SIGTERM arrives, or the
// listener fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	logging.Info("Starting mbrsim server",
		zap.String("addr", s.Addr()),
		zap.String("version", version.Full()),
		zap.Any("tls_info", GetTLSInfo(s.tlsConfig)),
	)

	if s.config.Advertise {
		s.advertise()
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		close(s.ready)
		err := s.httpServer.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errChan <- err
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
		logging.Info("Context cancelled, stopping server...")
	case err := <-errChan:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("server stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Ready is closed once Start is serving.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

func (s *Server) advertise() {
	instance := s.config.Instance
	if instance == "" {
		instance, _ = os.Hostname()
	}
	_, portStr, _ := net.SplitHostPort(s.Addr())
	port, _ := strconv.Atoi(portStr)

	stop, err := discovery.Advertise(instance, port, s.tlsConfig != nil, "version="+version.Version)
	if err != nil {
		// The server is still reachable by address.
		logging.Warn("mDNS advertisement failed", zap.Error(err))
		return
	}
	s.stopAdvertise = stop
}

// Shutdown stops the server: the mDNS advertisement is withdrawn, open
// WebSocket sessions are closed, in-flight requests finish, and every
// mounted partition is unmounted. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if s.stopAdvertise != nil {
		s.stopAdvertise()
	}

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logging.Warn("HTTP shutdown incomplete", zap.Error(err))
		errs = append(errs, err)
	}

	// Hijacked connections are not tracked by http.Server.
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	// Mounts only live as long as the session.
	if err := s.analyzer.Disks().Clean(); err != nil {
		errs = append(errs, fmt.Errorf("failed to unmount partitions: %w", err))
	}

	logging.Sync()
	return errors.Join(errs...)
}

// GetActiveConnections returns the number of open WebSocket sessions
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) allowOrigin() string {
	if s.config.AllowOrigin == "" {
		return "*"
	}
	return s.config.AllowOrigin
}

func (s *Server) checkOrigin(r *http.Request) bool {
	allow := s.allowOrigin()
	origin := r.Header.Get("Origin")
	return allow == "*" || origin == "" || origin == allow
}
