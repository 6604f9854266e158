package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stablegen/gateway/internal/api"
	"github.com/stablegen/gateway/web"
)

func (s *Server) SetupRoutes(h *api.Handler) {
	s.ginEngine.GET("/healthz", h.Health)
	s.ginEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Bundled web client
	s.ginEngine.GET("/", s.asset("index.html", "text/html; charset=utf-8"))
	s.ginEngine.GET("/static/css/style.css", s.asset("css/style.css", "text/css; charset=utf-8"))
	s.ginEngine.GET("/static/js/script.js", s.asset("js/script.js", "application/javascript"))

	s.ginEngine.GET("/api", h.Info)
	s.ginEngine.POST("/generate", h.Generate)
	s.ginEngine.GET("/images/:image_id", h.GetImage)

	apiGroup := s.ginEngine.Group("/api")
	apiGroup.GET("/generations", h.ListGenerations)
	apiGroup.GET("/generations/:id", h.GetGeneration)
}

func (s *Server) asset(name, contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		content, err := web.Asset(name)
		if err != nil {
			s.logger.Error("missing embedded asset", zap.String("name", name), zap.Error(err))
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, contentType, content)
	}
}
