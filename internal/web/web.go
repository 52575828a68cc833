// Package web exposes widget sessions over HTTP.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"schedview/internal/config"
	appLog "schedview/internal/log"
	"schedview/internal/render"
	"schedview/internal/source"
	"schedview/internal/widget"
)

const reloadParallelism = 4

// Server serves widget pages, actions and render streams.
type Server struct {
	cfg      *config.Config
	mux      *http.ServeMux
	store    source.Catalog
	renderer *render.Renderer
	sessions *registry
}

//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a Server reading events from store.
func NewServer(cfg *config.Config, store source.Catalog) (*Server, error) {
	renderer, err := render.New()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		store:    store,
		renderer: renderer,
	}
	s.sessions = newRegistry(renderer, s.widgetOptions)
	s.registerRoutes()
	return s, nil
}

func (s *Server) widgetOptions() widget.Options {
	w := s.cfg.Widget
	return widget.Options{
		Store:    s.store,
		Location: s.cfg.Location(),
		Sizes: widget.Sizes{
			Upcoming:     w.UpcomingSize,
			Window:       w.WindowSize,
			Panel:        w.PanelSize,
			CalendarPage: w.CalendarPageSize,
		},
	}
}

// defaultParams are the attributes of sessions opened without any.
func (s *Server) defaultParams() widgetParams {
	w := s.cfg.Widget
	p := widgetParams{Calendar: w.Calendar, RenderStyle: w.RenderStyle}
	if w.ShowTitle != "" {
		show := w.ShowTitle
		p.ShowTitle = &show
	}
	return p
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// OpenSession creates a session with the configured defaults and returns
// its identifier.
func (s *Server) OpenSession(ctx context.Context) string {
	return s.sessions.create(ctx, s.defaultParams()).id
}

// CloseSession tears down one session. It reports whether it existed.
func (s *Server) CloseSession(id string) bool {
	return s.sessions.remove(id)
}

// ReloadAll reruns the main load of every live session, a few at a time,
// and waits for them.
func (s *Server) ReloadAll(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(reloadParallelism)
	for _, sess := range s.sessions.all() {
		g.Go(func() error {
			sess.widget.Reload(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// EvictIdle drops sessions idle for longer than the configured limit.
func (s *Server) EvictIdle() int {
	n := s.sessions.evictIdle(s.cfg.SessionIdle())
	if n > 0 {
		appLog.Info("idle widget sessions evicted", "count", n)
	}
	return n
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	return s.sessions.len()
}

// Close tears down every session.
func (s *Server) Close() {
	s.sessions.closeAll()
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards every route except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="schedview", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves h on ln until ctx is canceled, then shuts down
// gracefully.
func StartServer(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /api/widgets", s.handleCreate)
	s.mux.HandleFunc("GET /w/{id}", s.handlePage)
	s.mux.HandleFunc("DELETE /w/{id}", s.handleDelete)
	s.mux.HandleFunc("GET /w/{id}/fragment", s.handleFragment)
	s.mux.HandleFunc("GET /w/{id}/view", s.handleView)
	s.mux.HandleFunc("POST /w/{id}/actions", s.handleAction)
	s.mux.HandleFunc("POST /w/{id}/document", s.handleDocument)
	s.mux.HandleFunc("GET /w/{id}/ws", s.handleStream)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.Handle("GET /static/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static assets not available", http.StatusServiceUnavailable)
		})
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// handlePreview serves the last captured PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Capture.Output)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
