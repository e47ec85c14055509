package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/bookstore-proxy/configs"
	"github.com/avatarctic/bookstore-proxy/internal/application/services"
	"github.com/avatarctic/bookstore-proxy/internal/core/domain/fallback"
	"github.com/avatarctic/bookstore-proxy/internal/core/ports"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/backend"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/db"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/dynamodb"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/health"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/httpserver"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/memory"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/metrics"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/redis"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/repositories"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.WithFields(logrus.Fields{
		"backend":      cfg.Proxy.BackendOrigin,
		"prefix":       cfg.Proxy.PathPrefix,
		"cache_driver": cfg.Cache.Driver,
	}).Info("Starting bookstore caching proxy...")

	// Cache store; a failed connect never stops startup.
	store, err := newCacheStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize cache store:", err)
	}
	hcSlice := []ports.HealthChecker{health.NewBackendHealthChecker(cfg.Proxy.BackendOrigin)}
	var cache ports.Cache
	if store != nil {
		connectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Connect(connectCtx); err != nil {
			logger.WithError(err).Warn("Cache unavailable at startup; serving without it until it reconnects")
		} else {
			logger.Info("Connected to cache successfully")
		}
		cancel()
		hcSlice = append(hcSlice, health.NewCacheHealthChecker(cfg.Cache.Driver, store))
		cache = metrics.NewInstrumentedCache(store)
	}

	mockTable, err := fallback.LoadMockTable(cfg.Proxy.MockTableFile, cfg.Proxy.PathPrefix)
	if err != nil {
		logger.Fatal("Failed to load mock table:", err)
	}
	logger.WithField("entries", len(mockTable.Entries())).Debug("Mock table loaded")

	backendClient, err := backend.NewClient(backend.Config{
		Origin:  cfg.Proxy.BackendOrigin,
		Timeout: cfg.Proxy.BackendTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize backend client:", err)
	}

	var resolvers []ports.Resolver
	if cache != nil {
		resolvers = append(resolvers, services.NewCacheResolver(cache, logger))
	}
	resolvers = append(resolvers, services.NewMockResolver(mockTable, cfg.Proxy.MockForAllMethods, logger))

	proxyService := services.NewProxyService(backendClient, cache, resolvers, &services.ProxyServiceConfig{
		BackendOrigin: cfg.Proxy.BackendOrigin,
		CacheTTL:      cfg.Cache.TTL,
	}, logger)

	// Create server configuration
	serverConfig := &httpserver.ServerConfig{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
		TLSCertFile:   cfg.Server.TLSCertFile,
		TLSKeyFile:    cfg.Server.TLSKeyFile,
		PathPrefix:    cfg.Proxy.PathPrefix,
		AllowedOrigin: cfg.Proxy.AllowedOrigin,
		MaxBodySize:   cfg.Proxy.MaxBodySize,
	}

	server := httpserver.NewServer(serverConfig, logger, httpserver.ServerDeps{
		ProxyService:   proxyService,
		HealthCheckers: hcSlice,
		Endpoints:      mockTable.Prefixes(),
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Proxy listening on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close cache store")
		}
	}

	logger.Info("Server exited")
}

// newCacheStore builds the configured store without connecting it. It
// returns nil when caching is disabled.
func newCacheStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (ports.Cache, error) {
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		client := redis.NewRedisClient(&cfg.Redis)
		return redis.NewRedisCache(client, cfg.Cache.KeyPrefix, cfg.Cache.ProbeInterval, logger), nil
	case config.CacheDriverPostgres:
		database, err := db.NewDatabaseWithConfig(&cfg.Database)
		if err != nil {
			return nil, err
		}
		return repositories.NewResponseCachePostgresRepository(database, cfg.Cache.KeyPrefix, cfg.Cache.ProbeInterval, cfg.Database.CleanupInterval, logger), nil
	case config.CacheDriverDynamoDB:
		client, err := dynamodb.NewClient(ctx, &cfg.DynamoDB)
		if err != nil {
			return nil, err
		}
		store, err := dynamodb.New(client, &dynamodb.Config{
			Table:         cfg.DynamoDB.Table,
			KeyPrefix:     cfg.Cache.KeyPrefix,
			ProbeInterval: cfg.Cache.ProbeInterval,
			CreateTable:   cfg.DynamoDB.CreateTable,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.CacheDriverMemory:
		return memory.NewCache(), nil
	default:
		return nil, nil
	}
}
