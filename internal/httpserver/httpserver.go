// Package httpserver implements the preview engine's web server
// (spec.md §4.6): it serves the rendered book, live-patches open tabs
// over WebSocket, and falls back through the build directory, theme
// directory, built-in assets, and the raw source directory in that
// priority order.
package httpserver

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"git.home.luguber.info/inful/bookpreview/internal/assets"
	"git.home.luguber.info/inful/bookpreview/internal/logfields"
	"git.home.luguber.info/inful/bookpreview/internal/metrics"
	"git.home.luguber.info/inful/bookpreview/internal/registry"
	"git.home.luguber.info/inful/bookpreview/internal/render"
	"git.home.luguber.info/inful/bookpreview/internal/serveinfo"
)

// reloadSentinel is the literal text the WebSocket connection writes to
// tell a tab to reload the whole page rather than patch in place,
// matching spec.md §6's wire format exactly (registry.BodyReload is the
// in-process representation; this is what crosses the wire).
const reloadSentinel = "__RELOAD"

// Server is the preview engine's HTTP/WebSocket handler. ServeInfo and
// the render context are swapped in by the Rebuilder whenever a full
// rebuild changes them. RequestRebuild is the one call back into the
// Rebuilder the patched-path interlock needs (spec.md §4.6 step 2).
type Server struct {
	Registry       *registry.Registry
	Recorder       metrics.Recorder
	RequestRebuild func(reloadEnv bool)

	// MetricsHandler, if set, serves the /metrics route (spec.md's
	// ambient observability surface; nil when no Prometheus registry is
	// configured, in which case the route falls through like any other).
	MetricsHandler http.Handler

	mu        sync.RWMutex
	info      serveinfo.ServeInfo
	renderCtx *render.Context

	upgrader websocket.Upgrader
	clients  atomic.Int64
}

// New constructs a Server. Call UpdateServeInfo/UpdateRenderContext once
// the first full render completes, before serving requests.
func New(reg *registry.Registry, rec metrics.Recorder) *Server {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Server{
		Registry: reg,
		Recorder: rec,
		upgrader: websocket.Upgrader{
			// Previews are local-developer-facing; spec.md's non-goals
			// exclude multi-tenant hosting and authentication, so any
			// origin connecting to the loopback/LAN listener is trusted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// UpdateServeInfo swaps the server's configuration snapshot.
func (s *Server) UpdateServeInfo(info serveinfo.ServeInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

// UpdateRenderContext swaps the render context used to locate the build
// directory and render the 404 page.
func (s *Server) UpdateRenderContext(ctx *render.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderCtx = ctx
}

func (s *Server) snapshot() (serveinfo.ServeInfo, *render.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, s.renderCtx
}

// ServeHTTP implements spec.md §4.6's route priority: live-patch
// WebSocket, then the patched-path interlock, then the build directory,
// theme directory, built-in assets, additional CSS/JS, the source
// directory, and finally a 404 page.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	info, renderCtx := s.snapshot()

	if relPatch, ok := strings.CutPrefix(r.URL.Path, livePatchRoutePrefix); ok {
		s.handleWebSocket(w, r, relPatch)
		return
	}

	if s.MetricsHandler != nil && r.URL.Path == metricsRoute {
		s.MetricsHandler.ServeHTTP(w, r)
		return
	}

	relPath := strings.TrimPrefix(r.URL.Path, "/")
	if relPath == "" {
		relPath = "index.html"
	} else if strings.HasSuffix(relPath, "/") {
		relPath += "index.html"
	}

	s.patchedPathInterlock(relPath)

	if info.SourceDir == "" {
		// No successful full render yet; nothing to serve.
		http.Error(w, "book not built yet", http.StatusServiceUnavailable)
		s.logRequest(r, http.StatusServiceUnavailable, start)
		return
	}

	candidates := []string{
		filepath.Join(renderDestDir(renderCtx), relPath),
	}
	if info.ThemeDir != "" {
		candidates = append(candidates, filepath.Join(info.ThemeDir, relPath))
	}

	for _, candidate := range candidates {
		if serveIfExists(w, r, candidate) {
			s.logRequest(r, http.StatusOK, start)
			return
		}
	}

	if servedAsset := s.serveBuiltinAsset(w, r, relPath); servedAsset {
		s.logRequest(r, http.StatusOK, start)
		return
	}

	// Additional CSS/JS (book.toml's additional-css/additional-js) and
	// any other source-tree asset a chapter links to both live under the
	// source directory, so one fallback check serves both.
	if serveIfExists(w, r, filepath.Join(info.SourceDir, relPath)) {
		s.logRequest(r, http.StatusOK, start)
		return
	}

	s.serve404(w, info, renderCtx)
	s.logRequest(r, http.StatusNotFound, start)
}

// patchedPathInterlock implements spec.md §4.6 step 2: a path with a
// live, not-yet-disk-reflected patch entry forces a full rebuild before
// the request falls through to the build-directory route below, so that
// the "__RELOAD" signal the rebuild's Registry.Rebuild sends to any
// already-open tab is guaranteed to be followed by a fresh page.
func (s *Server) patchedPathInterlock(relPath string) {
	if !s.Registry.HasPatch(relPath) || s.RequestRebuild == nil {
		return
	}
	s.RequestRebuild(false)
}

func (s *Server) serveBuiltinAsset(w http.ResponseWriter, r *http.Request, relPath string) bool {
	if relPath == strings.TrimPrefix(assets.LivePatchScriptRoute, "/") {
		data, err := fs.ReadFile(assets.FS(), "js/websocket_live_patch.js")
		if err != nil {
			return false
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write(data)
		return true
	}
	if relPath == "css/base.css" {
		data, err := fs.ReadFile(assets.FS(), "css/base.css")
		if err != nil {
			return false
		}
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		_, _ = w.Write(data)
		return true
	}
	return false
}

func (s *Server) serve404(w http.ResponseWriter, info serveinfo.ServeInfo, renderCtx *render.Context) {
	w.WriteHeader(http.StatusNotFound)
	name := info.Input404Path
	if name == "" {
		name = "404.md"
	}
	path := filepath.Join(renderDestDir(renderCtx), render.ToHTMLPath(name))
	if data, err := os.ReadFile(path); err == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
		return
	}
	_, _ = w.Write([]byte("<html><body><h1>404 not found</h1></body></html>"))
}

// livePatchRoutePrefix is the WebSocket endpoint spec.md §6 names
// literally: "GET /__mdbook_incremental_preview_live_patch/<relative-html-path>".
const livePatchRoutePrefix = "/__mdbook_incremental_preview_live_patch/"

// metricsRoute serves MetricsHandler, the preview engine's Prometheus
// exposition endpoint, when one is configured.
const metricsRoute = "/metrics"

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, relPatch string) {
	path := strings.TrimPrefix(relPatch, "/")
	if path == "" || strings.HasSuffix(path, "/") {
		path += "index.html"
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", logfields.Error(err))
		return
	}
	defer conn.Close()

	sub := s.Registry.Watch(path)
	defer sub.Unsubscribe()

	s.Recorder.SetConnectedClients(int(s.clients.Add(1)))
	defer func() { s.Recorder.SetConnectedClients(int(s.clients.Add(-1))) }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	first := true
	for {
		select {
		case <-done:
			return
		case body, ok := <-sub.C:
			if !ok {
				return
			}
			initial := first
			first = false
			if initial && body.Kind == registry.BodyHTML && body.HTML == "" {
				// A freshly-created entry's initial value is the zero
				// Body; spec.md §4.6 step 1 only delivers a non-empty
				// initial value, so a normal page load doesn't blank
				// the just-rendered chapter before the first edit.
				continue
			}
			var payload string
			if body.Kind == registry.BodyReload {
				payload = reloadSentinel
			} else {
				payload = body.HTML
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		}
	}
}

func (s *Server) logRequest(r *http.Request, status int, start time.Time) {
	slog.Debug("request",
		logfields.Method(r.Method),
		logfields.Path(r.URL.Path),
		logfields.RemoteAddr(r.RemoteAddr),
		logfields.Status(status),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000.0),
	)
}

func serveIfExists(w http.ResponseWriter, r *http.Request, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeFile(w, r, path)
	return true
}

func renderDestDir(ctx *render.Context) string {
	if ctx == nil {
		return ""
	}
	return ctx.DestDir
}
