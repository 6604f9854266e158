package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/logger"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stablegen/gateway/internal/config"
)

const shutdownTimeout = 3 * time.Second

type Server struct {
	listenAddr string
	ginEngine  *gin.Engine
	inner      *http.Server
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(getGinMode(cfg.Environment))
	r := gin.New()

	// Setup logger middleware
	r.Use(logger.SetLogger(
		logger.WithUTC(true),
		logger.WithSkipPath([]string{"/healthz", "/metrics"}),
	))

	// Setup CORS middleware
	r.Use(cors.New(
		cors.Config{
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowOrigins:     []string{"*"},
			AllowHeaders:     []string{"*"},
			ExposeHeaders:    []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		},
	))

	// Extra static files, e.g. a custom frontend build
	if cfg.PublicDir != "" {
		r.Use(static.Serve("/", static.LocalFile(cfg.PublicDir, false)))
	}
	r.Use(gin.Recovery())

	listenAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		listenAddr: listenAddr,
		ginEngine:  r,
		logger:     log,
		inner: &http.Server{
			Handler:           r,
			Addr:              listenAddr,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.listenAddr))
	if err := s.inner.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.logger.Info("Stopping server...")
	return s.inner.Shutdown(ctx)
}

func getGinMode(env string) string {
	switch env {
	case "dev":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
