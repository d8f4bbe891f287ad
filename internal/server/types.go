package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/inspect"
	"github.com/MeKo-Tech/boxguard/internal/pipeline"
	"github.com/MeKo-Tech/boxguard/internal/store"
	"github.com/hybridgroup/mjpeg"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusProvider exposes the inspection loop's state.
type StatusProvider interface {
	State() pipeline.Status
}

// StatusFunc adapts a function to StatusProvider.
type StatusFunc func() pipeline.Status

// State calls f.
func (f StatusFunc) State() pipeline.Status { return f() }

// CommandLog lists recently emitted actuator commands.
type CommandLog interface {
	RecentCommands(ctx context.Context, limit int) ([]store.CommandEvent, error)
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	ShutdownTimeout time.Duration
	PreviewQuality  int
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type CommandsResponse struct {
	Commands []store.CommandEvent `json:"commands"`
	Count    int                  `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Option configures a Server.
type Option func(*Server)

// WithCommandLog enables the /commands route.
func WithCommandLog(l CommandLog) Option {
	return func(s *Server) { s.commands = l }
}

// WithOKLabels sets the labels drawn green in the preview.
func WithOKLabels(labels inspect.LabelSet) Option {
	return func(s *Server) { s.okLabels = labels }
}

// Server is the monitoring HTTP surface. It implements pipeline.Publisher.
type Server struct {
	config     Config
	status     StatusProvider
	commands   CommandLog
	corsOrigin string
	okLabels   inspect.LabelSet

	preview     *mjpeg.Stream
	frames      chan previewFrame
	previewMu   sync.RWMutex
	lastPreview []byte

	hub       *eventHub
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewServer creates a server and starts its preview renderer.
func NewServer(config Config, status StatusProvider, opts ...Option) *Server {
	s := &Server{
		config:     config,
		status:     status,
		corsOrigin: config.CORSOrigin,
		preview:    mjpeg.NewStream(),
		frames:     make(chan previewFrame, 1),
		hub:        newEventHub(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.previewLoop()
	return s
}

// Close stops the preview renderer and disconnects event clients.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.hub.closeAll()
		s.wg.Wait()
	})
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/status", s.corsMiddleware(s.statusHandler))
	mux.HandleFunc("/commands", s.corsMiddleware(s.commandsHandler))
	mux.HandleFunc("/metrics", s.corsMiddleware(promhttp.Handler().ServeHTTP))
	mux.HandleFunc("/preview", s.corsMiddleware(s.previewHandler))
	mux.HandleFunc("/preview.jpg", s.corsMiddleware(s.snapshotHandler))
	mux.HandleFunc("/events", s.corsMiddleware(s.eventsHandler))
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting monitoring server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("monitoring server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	slog.Info("Shutting down monitoring server", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Close ends the long-lived preview and event handlers so Shutdown can drain.
	_ = s.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		_ = httpServer.Close()
		return fmt.Errorf("shutdown monitoring server: %w", err)
	}
	return nil
}
