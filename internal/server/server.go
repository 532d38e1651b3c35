// Package server implements the grow development server: it renders pod
// routes on request, reloads connected browsers when pod files change and
// serves diagnostic pages for unmatched paths and render failures.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/conneroisu/grow/internal/config"
	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/logging"
	"github.com/conneroisu/grow/internal/pod"
	"github.com/conneroisu/grow/internal/podpath"
	"github.com/conneroisu/grow/internal/watcher"
)

// Internal endpoints.
const (
	ReloadPath = "/_grow/ws"
	HealthPath = "/_grow/health"
	RoutesPath = "/_grow/routes"
)

// Response headers identifying what was rendered.
const (
	HeaderLocale  = "X-Grow-Locale"
	HeaderPodPath = "X-Grow-Pod-Path"
)

// Server serves a pod with live reload
type Server struct {
	pod     *pod.Pod
	config  *config.Config
	logger  logging.Logger
	reports *errors.ErrorCollector
	pages   *lru.Cache[string, *page]
	watcher *watcher.FileWatcher

	httpServer  *http.Server
	serverMutex sync.RWMutex

	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *websocket.Conn
	done         chan struct{}

	shutdownOnce sync.Once
}

// UpdateMessage is sent to connected browsers and passed through the
// dev_manager_message hook before broadcasting.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Paths     []string  `json:"paths,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// page is a rendered response kept until one of its inputs changes.
type page struct {
	content     []byte
	contentType string
	podPath     string
	locale      string
	etag        string
	modTime     time.Time
}

// New creates a dev server for p.
func New(p *pod.Pod, cfg *config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	size := cfg.Cache.FileCacheSize
	if size < 1 {
		size = 1024
	}
	pages, err := lru.New[string, *page](size)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "create page cache", err)
	}

	fileWatcher, err := watcher.NewFileWatcher(cfg.Pod.Root, cfg.Development.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Server{
		pod:        p,
		config:     cfg,
		logger:     logger.WithComponent("server"),
		reports:    errors.NewErrorCollector(),
		pages:      pages,
		watcher:    fileWatcher,
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}, nil
}

// Handler returns the server's HTTP handler. Extensions may mount their own
// handlers through the dev_handler hook, which receives the mux.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ReloadPath, s.handleWebSocket)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc(RoutesPath, s.handleRoutes)

	if _, err := s.pod.Hooks().Trigger(ctx, hooks.DevHandler, nil, mux); err != nil {
		s.logger.Warn(ctx, err, "dev_handler hook failed")
	}

	mux.HandleFunc("/", s.handlePage)
	return s.addMiddleware(mux)
}

// Start watches the pod, then serves until the context is cancelled or the
// server is shut down.
func (s *Server) Start(ctx context.Context) error {
	s.setupFileWatcher(ctx)
	go s.runWebSocketHub(ctx)

	listener, err := net.Listen("tcp", s.config.Server.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Server.Address(), err)
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Serving pod", "url", "http://"+listener.Addr().String(), "root", s.config.Pod.Root)
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupFileWatcher(ctx context.Context) {
	s.watcher.AddFilter(watcher.IgnoreFilter(s.config.Development.Ignore))
	s.watcher.AddFilter(watcher.NoEditorFilter)
	s.watcher.AddHandler(s.handleFileChanges)

	if err := s.watcher.AddRecursive(); err != nil {
		s.logger.Warn(ctx, err, "Failed to watch pod", "root", s.config.Pod.Root)
	}
	if err := s.watcher.Start(ctx); err != nil {
		s.logger.Warn(ctx, err, "Failed to start file watcher")
	}
}

// handleFileChanges runs dev_file_change for every changed file, drops the
// pages depending on them and tells browsers to reload.
func (s *Server) handleFileChanges(ctx context.Context, events []watcher.ChangeEvent) error {
	changed := make([]string, 0, len(events))
	purge := false
	for _, event := range events {
		s.logger.Debug(ctx, "File changed", "pod_path", event.PodPath, "type", event.Type.String())

		fc, err := s.pod.HandleFileChange(ctx, event.PodPath)
		s.reports.Clear(event.PodPath)
		if err != nil {
			s.reports.Add(errors.Report{
				PodPath:   event.PodPath,
				Message:   err.Error(),
				Traceback: errors.Traceback(err),
				Severity:  errors.ErrorSeverityError,
			})
			s.logger.Warn(ctx, err, "Unable to apply file change", "pod_path", event.PodPath)
		}
		if fc.RoutesChanged || affectsAllPages(fc.PodPath) {
			purge = true
		} else {
			s.invalidatePages(fc)
		}
		changed = append(changed, fc.PodPath)
	}
	if purge {
		s.pages.Purge()
	}

	msg := UpdateMessage{Type: "reload", Paths: changed, Timestamp: time.Now()}
	result, err := s.pod.Hooks().Trigger(ctx, hooks.DevManagerMessage, msg)
	if err != nil {
		s.logger.Warn(ctx, err, "dev_manager_message hook failed")
	}
	if m, ok := result.(UpdateMessage); ok {
		msg = m
	}
	s.broadcastMessage(ctx, msg)
	return nil
}

// affectsAllPages reports whether a change to podPath can alter pages that
// do not record a dependency on it.
func affectsAllPages(podPath string) bool {
	base := podpath.Base(podPath)
	return podPath == pod.PodspecPath ||
		base == podpath.BlueprintName ||
		base == podpath.RoutesName ||
		podpath.HasPrefix(podPath, "/views") ||
		podpath.HasPrefix(podPath, "/translations")
}

func (s *Server) invalidatePages(fc *pod.FileChange) {
	stale := map[string]bool{fc.PodPath: true}
	for _, dep := range fc.Dependents {
		stale[dep] = true
	}
	for _, key := range s.pages.Keys() {
		if pg, ok := s.pages.Peek(key); ok && stale[pg.podPath] {
			s.pages.Remove(key)
		}
	}
}

func (s *Server) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

// isAllowedOrigin checks if the origin is in the allowed origins list
func (s *Server) isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range s.config.Server.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) broadcastMessage(ctx context.Context, msg UpdateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn(ctx, err, "Failed to marshal message")
		data = []byte(`{"type":"reload"}`)
	}
	select {
	case s.broadcast <- data:
	default:
		s.logger.Warn(ctx, nil, "Dropping reload message, broadcast queue full")
	}
}

// Reports returns the errors recorded since the affected files last changed.
func (s *Server) Reports() []errors.Report {
	return s.reports.Reports()
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")
		close(s.done)

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Failed to stop file watcher")
			}
		}

		s.clientsMutex.Lock()
		for conn, client := range s.clients {
			close(client.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		s.clients = make(map[*websocket.Conn]*Client)
		s.clientsMutex.Unlock()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

// cleanRequestPath maps a request path onto the router's path space.
func cleanRequestPath(p string) string {
	if p == "" {
		return "/"
	}
	trailing := strings.HasSuffix(p, "/")
	p = path.Clean("/" + p)
	if trailing && p != "/" {
		p += "/"
	}
	return p
}
