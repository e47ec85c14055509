package configs

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported cache drivers.
const (
	CacheDriverRedis    = "redis"
	CacheDriverPostgres = "postgres"
	CacheDriverDynamoDB = "dynamodb"
	CacheDriverMemory   = "memory"
	CacheDriverNone     = "none"
)

type Config struct {
	Server   ServerConfig
	Proxy    ProxyConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig
	DynamoDB DynamoDBConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	TLSCertFile     string
	TLSKeyFile      string
}

type ProxyConfig struct {
	BackendOrigin string
	PathPrefix    string
	// BackendTimeout bounds the outbound call; zero leaves it to the transport.
	BackendTimeout    time.Duration
	AllowedOrigin     string
	MaxBodySize       string
	MockTableFile     string
	MockForAllMethods bool
}

type CacheConfig struct {
	Driver        string
	TTL           time.Duration
	KeyPrefix     string
	ProbeInterval time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	CleanupInterval time.Duration
}

type DynamoDBConfig struct {
	Table       string
	Region      string
	Endpoint    string
	CreateTable bool
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "3000"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLSCertFile:     getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:      getEnv("TLS_KEY_FILE", ""),
		},
		Proxy: ProxyConfig{
			BackendOrigin:     strings.TrimRight(getEnv("BACKEND_ORIGIN", "http://localhost:8000"), "/"),
			PathPrefix:        strings.TrimRight(getEnv("PROXY_PATH_PREFIX", "/api/v1"), "/"),
			BackendTimeout:    getDurationEnv("BACKEND_TIMEOUT", 0),
			AllowedOrigin:     getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:5500"),
			MaxBodySize:       getEnv("PROXY_MAX_BODY", "1M"),
			MockTableFile:     getEnv("MOCK_TABLE_FILE", ""),
			MockForAllMethods: getBoolEnv("PROXY_MOCK_ALL_METHODS", false),
		},
		Cache: CacheConfig{
			Driver:        strings.ToLower(getEnv("CACHE_DRIVER", CacheDriverRedis)),
			TTL:           getDurationEnv("CACHE_TTL", time.Hour),
			KeyPrefix:     getEnv("CACHE_KEY_PREFIX", ""),
			ProbeInterval: getDurationEnv("CACHE_PROBE_INTERVAL", 5*time.Second),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "bookstore_proxy"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			CleanupInterval: getDurationEnv("DB_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		DynamoDB: DynamoDBConfig{
			Table:       getEnv("DYNAMODB_TABLE", "proxy_response_cache"),
			Region:      getEnv("AWS_REGION", "us-east-1"),
			Endpoint:    getEnv("DYNAMODB_ENDPOINT", ""),
			CreateTable: getBoolEnv("DYNAMODB_CREATE_TABLE", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Build database DSN
	cfg.Database.DSN = getEnv("DB_DSN", fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first configuration value that cannot be used.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Proxy.BackendOrigin)
	if err != nil {
		return fmt.Errorf("invalid BACKEND_ORIGIN: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid BACKEND_ORIGIN %q: must be an absolute http(s) URL", c.Proxy.BackendOrigin)
	}
	if !strings.HasPrefix(c.Proxy.PathPrefix, "/") {
		return fmt.Errorf("invalid PROXY_PATH_PREFIX %q: must start with /", c.Proxy.PathPrefix)
	}
	if c.Proxy.AllowedOrigin == "" {
		return errors.New("CORS_ALLOWED_ORIGIN must not be empty")
	}
	switch c.Cache.Driver {
	case CacheDriverRedis, CacheDriverPostgres, CacheDriverDynamoDB, CacheDriverMemory, CacheDriverNone:
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.Cache.Driver)
	}
	if c.Cache.TTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
