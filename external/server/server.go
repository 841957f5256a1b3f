package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/kikitori/external/websocket"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gws "github.com/gorilla/websocket"
)

type Config struct {
	Addr            string
	StreamPath      string
	StaticDir       string
	AllowedOrigins  []string
	MaxMessageBytes int64
	WriteTimeout    time.Duration
}

// Server hosts the stream endpoint and the static client application.
// Canceling its base context ends every open session.
type Server struct {
	http     *http.Server
	handler  *session.Handler
	upgrader *gws.Upgrader
	cfg      Config

	baseCtx    context.Context
	cancelBase context.CancelFunc
	sessions   sync.WaitGroup
}

func New(cfg Config, handler *session.Handler) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		handler:    handler,
		upgrader:   websocket.NewUpgrader(cfg.AllowedOrigins),
		cfg:        cfg,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get(s.cfg.StreamPath, s.handleStream)
	r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	return r
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade rejected", "error", err, "remote_addr", r.RemoteAddr, "origin", r.Header.Get("Origin"))
		return
	}
	ws.SetReadLimit(s.cfg.MaxMessageBytes)

	s.sessions.Add(1)
	defer s.sessions.Done()
	slog.Debug("stream connected", "remote_addr", r.RemoteAddr)
	s.handler.Serve(r.Context(), websocket.NewConn(ws, s.cfg.WriteTimeout))
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	slog.Info("http server listening", "addr", l.Addr().String(), "stream_path", s.cfg.StreamPath, "static_dir", s.cfg.StaticDir)
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting connections, ends open sessions and waits for them
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	err := s.http.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = fmt.Errorf("wait for sessions: %w", ctx.Err())
		}
	}
	return err
}
