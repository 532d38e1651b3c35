package services

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conneroisu/grow/internal/config"
	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/logging"
	"github.com/conneroisu/grow/internal/server"
)

// ServeService runs the development server
type ServeService struct {
	config *config.Config
	logger logging.Logger
	errs   *errors.ErrorHandler
}

// NewServeService creates a new serve service
func NewServeService(cfg *config.Config, logger logging.Logger) *ServeService {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("serve")
	return &ServeService{config: cfg, logger: logger, errs: errors.NewErrorHandler(logger)}
}

// ServerInfo describes where the server listens.
type ServerInfo struct {
	Host      string
	Port      int
	ServerURL string
	Root      string
}

// GetServerInfo returns information about the server configuration
func (s *ServeService) GetServerInfo() *ServerInfo {
	return &ServerInfo{
		Host:      s.config.Server.Host,
		Port:      s.config.Server.Port,
		ServerURL: fmt.Sprintf("http://%s", s.config.Server.Address()),
		Root:      s.config.Pod.Root,
	}
}

// Serve opens the pod, builds its routes and serves it until ctx is
// cancelled or the process is interrupted. Caches are persisted on exit.
func (s *ServeService) Serve(ctx context.Context) error {
	var extensions []hooks.Extension
	if s.config.Development.UI {
		extensions = append(extensions, server.NewDevUIExtension(server.ReloadPath))
	}
	p, err := OpenPod(s.config, s.logger, true, extensions...)
	if err != nil {
		return err
	}

	if s.config.Cache.Persist {
		if err := p.LoadCache(ctx); err != nil {
			s.logger.Warn(ctx, err, "Unable to load caches")
		}
	}
	if err := p.LoadRoutes(ctx); err != nil {
		// Broken documents are reported per request; only a pod whose
		// routes cannot be listed at all stops the server.
		var bulk *errors.BulkErrors
		if !errors.As(err, &bulk) {
			return err
		}
		s.logger.Warn(ctx, err, "Some routes could not be loaded", "failed", bulk.Len())
	}

	srv, err := server.New(p, s.config, s.logger)
	if err != nil {
		return err
	}

	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-serverCtx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Error during server shutdown")
		}
		cancel()
	}()

	serveErr := srv.Start(serverCtx)

	if s.config.Cache.Persist {
		if err := p.WriteCache(context.Background()); err != nil {
			s.errs.Handle(ctx, err, "Unable to write caches")
		}
	}
	return serveErr
}
