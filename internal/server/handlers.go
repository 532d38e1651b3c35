package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/pod"
	"github.com/conneroisu/grow/internal/router"
	"github.com/conneroisu/grow/internal/version"
)

// handlePage renders the route matching the request path.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestPath := cleanRequestPath(r.URL.Path)
	pg, ok := s.pages.Get(requestPath)
	if !ok {
		var controller pod.Controller
		var err error
		pg, controller, err = s.renderPage(r.Context(), requestPath)
		if err != nil {
			s.writeError(w, r, requestPath, controller, err)
			return
		}
		s.pages.Add(requestPath, pg)
	}
	s.writePage(w, r, pg)
}

func (s *Server) renderPage(ctx context.Context, requestPath string) (*page, pod.Controller, error) {
	controller, err := s.pod.Match(ctx, requestPath)
	if err != nil {
		return nil, nil, err
	}
	env, err := s.pod.Pool().Get(controller.Locale())
	if err != nil {
		return nil, controller, err
	}
	content, err := controller.Render(ctx, env)
	if err != nil {
		return nil, controller, err
	}
	return &page{
		content:     content,
		contentType: controller.ContentType(),
		podPath:     controller.PodPath(),
		locale:      controller.Locale(),
		etag:        `"` + router.Hash(content) + `"`,
		modTime:     time.Now().UTC().Truncate(time.Second),
	}, controller, nil
}

// writePage serves a rendered page. Conditional requests are answered by
// http.ServeContent from the ETag and Last-Modified headers.
func (s *Server) writePage(w http.ResponseWriter, r *http.Request, pg *page) {
	header := w.Header()
	header.Set("Content-Type", pg.contentType)
	header.Set("ETag", pg.etag)
	header.Set("Cache-Control", "no-cache")
	if pg.podPath != "" {
		header.Set(HeaderPodPath, pg.podPath)
	}
	if pg.locale != "" {
		header.Set(HeaderLocale, pg.locale)
	}
	http.ServeContent(w, r, "", pg.modTime, bytes.NewReader(pg.content))
}

// writeError serves the diagnostic page: 404 for unmatched paths and missing
// documents, 500 with a traceback for everything else.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, requestPath string, controller pod.Controller, err error) {
	details := errors.PageDetails{
		Status: http.StatusInternalServerError,
		Title:  "Render error",
		Path:   requestPath,
		Err:    err,
	}
	if controller != nil {
		details.Controller = string(controller.Kind())
		details.PodPath = controller.PodPath()
		details.Locale = controller.Locale()
	}

	if errors.IsNotFound(err) {
		details.Status = http.StatusNotFound
		details.Title = "Not found"
	} else {
		details.Traceback = errors.Traceback(err)
		s.reports.Add(errors.Report{
			PodPath:   details.PodPath,
			Locale:    details.Locale,
			Message:   err.Error(),
			Traceback: details.Traceback,
			Severity:  errors.ErrorSeverityError,
		})
		s.logger.Error(r.Context(), err, "Render failed", "path", requestPath, "pod_path", details.PodPath)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(details.Status)
	_, _ = w.Write([]byte(errors.ErrorPage(details)))
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reports := s.Reports()
	status := "healthy"
	if len(reports) > 0 {
		status = "errors"
	}

	build := version.Get()
	health := map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    build.Short(),
		"build_info": build,
		"routes":     s.pod.Router().Len(),
		"clients":    s.ClientCount(),
		"pages":      s.pages.Len(),
		"errors":     reports,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

// routeInfo is one entry of the routes listing.
type routeInfo struct {
	Pattern string `json:"pattern"`
	Kind    string `json:"kind"`
	PodPath string `json:"pod_path,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

// handleRoutes lists every route, abstract routes included.
func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	routes := s.pod.Router().Routes()
	response := make([]routeInfo, 0, len(routes))
	for _, route := range routes {
		response = append(response, routeInfo{
			Pattern: route.Pattern,
			Kind:    string(route.Kind),
			PodPath: route.Meta.PodPath,
			Locale:  route.Meta.Locale,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode routes response")
	}
}
