// Package server exposes sessions and the send operation over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/diogo/nanogenius/internal/chat"
	"github.com/diogo/nanogenius/internal/session"
)

// maxUploadBytes bounds multipart bodies kept in memory
const maxUploadBytes = 32 << 20

// Server wraps the router and the chat state it serves
type Server struct {
	router   *gin.Engine
	sessions *session.Manager
	coord    *chat.Coordinator
	logger   zerolog.Logger

	// sendMu is held for the whole of a send so only one request
	// receives coordinator events at a time
	sendMu sync.Mutex

	subMu sync.Mutex
	sub   chan chat.Event

	notifier *Notifier
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger used for requests and failures
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithNotifier enables GET /api/sessions/watch. The notifier must be the
// one registered with the session manager through session.WithOnChange.
func WithNotifier(n *Notifier) Option {
	return func(s *Server) {
		s.notifier = n
	}
}

// New creates a server over sessions. The coordinator is built here so its
// events can be routed to the request that started the send.
func New(sessions *session.Manager, service chat.Service, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.coord = chat.NewCoordinator(sessions, service,
		chat.WithObserver(s.publish),
		chat.WithLogger(s.logger),
	)

	router := gin.New()
	router.MaxMultipartMemory = maxUploadBytes
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))

	router.GET("/healthz", s.health)

	api := router.Group("/api")
	api.GET("/sessions", s.listSessions)
	if s.notifier != nil {
		api.GET("/sessions/watch", s.watchSessions)
	}
	api.POST("/sessions", s.createSession)
	api.DELETE("/sessions/:id", s.deleteSession)
	api.POST("/sessions/:id/select", s.selectSession)
	api.POST("/send", s.send)

	s.router = router
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Coordinator returns the coordinator driven by /api/send
func (s *Server) Coordinator() *chat.Coordinator {
	return s.coord
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("starting HTTP server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// publish is the coordinator observer. Chunks are dropped when the
// subscriber lags; the final reply carries the full text anyway.
func (s *Server) publish(ev chat.Event) {
	s.subMu.Lock()
	sub := s.sub
	s.subMu.Unlock()
	if sub == nil {
		return
	}

	if ev.Kind == chat.EventChunk {
		select {
		case sub <- ev:
		default:
		}
		return
	}
	sub <- ev
}

func (s *Server) subscribe(ch chan chat.Event) {
	s.subMu.Lock()
	s.sub = ch
	s.subMu.Unlock()
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
