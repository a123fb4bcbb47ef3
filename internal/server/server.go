// Package server exposes the daemon's local control API over HTTP.
//
// The API is meant for the CLI and for local automations (a shortcut that
// asks for the next prayer, a hook that reports an unlock). It binds to the
// loopback interface by default and carries no authentication.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/njoerd114/prayerrelay/internal/cache"
	"github.com/njoerd114/prayerrelay/internal/model"
	"github.com/njoerd114/prayerrelay/internal/refresh"
)

const shutdownTimeout = 5 * time.Second

// Engine is the subset of [refresh.Engine] the API drives.
type Engine interface {
	Status(ctx context.Context) (refresh.Status, error)
	Month(ctx context.Context) (cache.Snapshot, error)
	Refresh()
	Wake()
	Unlock()
}

// Settings is the subset of [settings.Store] the API reads and writes.
type Settings interface {
	Values() map[model.SettingKey]string
	Set(ctx context.Context, key model.SettingKey, value string) error
}

// Server serves the control API.
type Server struct {
	engine   Engine
	settings Settings
	router   *gin.Engine
	log      *slog.Logger
}

// New builds the router. Call [Server.ListenAndServe] to start serving.
func New(engine Engine, st Settings, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:   engine,
		settings: st,
		router:   gin.New(),
		log:      logger,
	}
	s.router.Use(gin.Recovery(), s.logRequests())
	s.routes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("control API on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down control API: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() {
	r := s.router
	r.GET("/healthz", s.healthz)
	r.GET("/status", s.status)
	r.GET("/month", s.month)
	r.POST("/refresh", s.refresh)
	r.GET("/settings", s.getSettings)
	r.PUT("/settings", s.putSettings)

	signals := r.Group("/signals")
	signals.POST("/wake", s.wake)
	signals.POST("/unlock", s.unlock)
}

// logRequests logs each request at debug level through slog.
func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("api request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func abort(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, errorResponse{Error: err.Error()})
}
