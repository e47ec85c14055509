package httpserver

import (
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group(s.config.PathPrefix,
		s.middleware.CORS.Preflight(),
		s.middleware.CORS.Handler(),
	)
	if s.config.MaxBodySize != "" {
		api.Use(middleware.BodyLimit(s.config.MaxBodySize))
	}
	api.Any("", s.proxyRequest)
	api.Any("/*", s.proxyRequest)
}
