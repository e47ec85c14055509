package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/bookstore-proxy/internal/core/ports"
	customMiddleware "github.com/avatarctic/bookstore-proxy/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
	// PathPrefix is the proxied route prefix, e.g. /api/v1.
	PathPrefix    string
	AllowedOrigin string
	// MaxBodySize uses echo's size notation (1M, 512K).
	MaxBodySize string
}

type ServerDeps struct {
	ProxyService   ports.ProxyService
	HealthCheckers []ports.HealthChecker
	// Endpoints are the API prefixes used as metric labels for proxied paths.
	Endpoints []string
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	proxyService   ports.ProxyService
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		proxyService:   deps.ProxyService,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			logger,
			serverConfig.AllowedOrigin,
			GetRequestsTotal(),
			GetRequestDuration(),
			deps.Endpoints,
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
