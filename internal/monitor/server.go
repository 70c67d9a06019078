package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cattleherd/internal/config"
	"cattleherd/internal/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server exposes the registry over a small read-only HTTP API. The herder's
// reporting surface; no rendering, no persistence.
type Server struct {
	registry *Registry
	logger   *zap.Logger
	engine   *gin.Engine
	srv      *http.Server
}

// response is the standard API envelope
type response struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewServer creates the status API server
func NewServer(cfg config.WebConfig, registry *Registry, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		registry: registry,
		logger:   logger,
		engine:   gin.New(),
	}

	s.engine.Use(s.requestLogger(), gin.Recovery())
	s.routes()

	s.srv = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving; listen errors after startup are logged, not fatal
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status API failed", zap.Error(err))
		}
	}()
	s.logger.Info("Status API listening", zap.String("addr", s.srv.Addr))
	return nil
}

// Stop drains and shuts the server down
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)

	v1 := s.engine.Group("/api/v1")
	v1.GET("/herd", s.listHerd)
	v1.GET("/herd/:key", s.getMember)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, response{
		Code:      http.StatusOK,
		Message:   "ok",
		Data:      gin.H{"version": version.GetInfo().Version},
		Timestamp: time.Now(),
	})
}

func (s *Server) listHerd(c *gin.Context) {
	c.JSON(http.StatusOK, response{
		Code:      http.StatusOK,
		Message:   "success",
		Data:      s.registry.Entries(),
		Timestamp: time.Now(),
	})
}

func (s *Server) getMember(c *gin.Context) {
	entry, ok := s.registry.Get(c.Param("key"))
	if !ok {
		c.JSON(http.StatusNotFound, response{
			Code:      http.StatusNotFound,
			Message:   "herd member not found",
			Timestamp: time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, response{
		Code:      http.StatusOK,
		Message:   "success",
		Data:      entry,
		Timestamp: time.Now(),
	})
}

// requestLogger logs each request with latency and status
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
