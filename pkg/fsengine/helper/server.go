// Package helper is the privileged side of the fallback channel: a websocket
// server that repeats file operations with its own, elevated rights.
package helper

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsengine/pkg/fsengine/channel"
	"github.com/arthur-debert/fsengine/pkg/fsengine/engine"
	"github.com/arthur-debert/fsengine/pkg/fsengine/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server serves the helper endpoints. The engine it drives must not have a
// privileged channel of its own.
type Server struct {
	engine  *engine.Engine
	metrics *metrics.Collector
	logger  zerolog.Logger
	router  *gin.Engine

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// New creates a server around eng. collector may be nil, in which case
// /metrics is not served.
func New(eng *engine.Engine, collector *metrics.Collector, logger zerolog.Logger) *Server {
	s := &Server{
		engine:  eng,
		metrics: collector,
		logger:  logger.With().Str("component", "helper").Logger(),
		conns:   make(map[*conn]struct{}),
	}
	s.router = s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/ws", s.handleWebsocket)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return r
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then closes every open
// websocket connection.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("helper listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close drops every websocket connection. Operations in flight are
// cancelled between items.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

func (s *Server) track(c *conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) handleWebsocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := &conn{ws: ws, logger: s.logger}
	s.track(conn)
	defer s.untrack(conn)
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.logger.Debug().Str("remote", c.Request.RemoteAddr).Msg("client connected")

	var wg sync.WaitGroup
	for {
		var msg channel.Message
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Msg("client connection closed")
			}
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := s.dispatch(ctx, conn, msg)
			reply[channel.KeyRequestID] = msg.String(channel.KeyRequestID)
			_ = conn.send(reply)
		}()
	}
	cancel()
	wg.Wait()
}

// conn serialises writes to one websocket.
type conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	logger zerolog.Logger
}

func (c *conn) send(msg channel.Message) error {
	c.mu.Lock()
	err := c.ws.WriteJSON(msg)
	c.mu.Unlock()
	if err != nil {
		c.logger.Debug().Err(err).Msg("write to client failed")
	}
	return err
}
