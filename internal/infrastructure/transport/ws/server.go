package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"script-agent/internal/application/port/input"
	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	// AccessLogJSON switches request logs from console to JSON lines.
	AccessLogJSON  bool
	AccessLogLevel string
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		AccessLogLevel:  "info",
	}
}

// Server exposes the hub and a few read-only HTTP routes.
type Server struct {
	hub       *Hub
	sessions  input.SessionProvider
	extractor input.ScriptExtractor
	logger    output.LoggerPort
	cfg       ServerConfig
}

// NewServer builds the HTTP surface. A nil extractor disables the script route.
func NewServer(hub *Hub, sessions input.SessionProvider, extractor input.ScriptExtractor, logger output.LoggerPort, cfg ServerConfig) *Server {
	return &Server{hub: hub, sessions: sessions, extractor: extractor, logger: logger, cfg: cfg}
}

func (s *Server) Router() http.Handler {
	accessLog := httplog.NewLogger("script-agent", httplog.Options{
		JSON:     s.cfg.AccessLogJSON,
		Concise:  true,
		LogLevel: s.cfg.AccessLogLevel,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.hub.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(httplog.RequestLogger(accessLog))
		r.Get("/healthz", s.health)
		r.Get("/sessions/{id}/context", s.scriptContext)
		if s.extractor != nil {
			r.Post("/sessions/{id}/script", s.extractScript)
		}
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"clients":  s.hub.ClientCount(),
	})
}

// scriptContext renders the parameters of a session for audits.
func (s *Server) scriptContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	script, err := s.sessions.Context(r.Context(), id)
	switch {
	case errors.Is(err, entity.ErrSessionUnknown):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("Failed to load script context", "session", id, "error", err)
		http.Error(w, "failed to load script context", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(script.Render()))
}

// extractScript records the session conversation as a YAML script.
func (s *Server) extractScript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := s.sessions.Transcript(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	script, err := s.extractor.Extract(r.Context(), history)
	switch {
	case errors.Is(err, entity.ErrEmptyScript):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		s.logger.Error("Failed to extract script", "session", id, "error", err)
		http.Error(w, "failed to extract script", http.StatusBadGateway)
		return
	}

	out, err := yaml.Marshal(script)
	if err != nil {
		http.Error(w, "failed to encode script", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(out)
}

// Run serves until ctx ends, then drains clients.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
