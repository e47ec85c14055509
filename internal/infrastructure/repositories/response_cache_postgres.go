package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/connstate"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/db"
)

// ResponseCachePostgresRepository implements ports.Cache on a
// proxy_response_cache table.
type ResponseCachePostgresRepository struct {
	db      *db.Database
	prefix  string
	logger  *logrus.Logger
	monitor *connstate.Monitor

	cleanupInterval time.Duration
	now             func() time.Time

	migrateMu sync.Mutex
	migrated  bool
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewResponseCachePostgresRepository creates the store. The schema is migrated
// the first time the database answers a probe.
func NewResponseCachePostgresRepository(database *db.Database, prefix string, probeInterval, cleanupInterval time.Duration, logger *logrus.Logger) *ResponseCachePostgresRepository {
	r := &ResponseCachePostgresRepository{
		db:              database,
		prefix:          prefix,
		logger:          logger,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		stop:            make(chan struct{}),
	}
	r.monitor = connstate.NewMonitor("postgres", r.probe, connstate.Config{Interval: probeInterval}, logger)
	return r
}

func (r *ResponseCachePostgresRepository) probe(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return err
	}
	r.migrateMu.Lock()
	defer r.migrateMu.Unlock()
	if r.migrated {
		return nil
	}
	if err := r.db.Migrate(); err != nil {
		return err
	}
	r.migrated = true
	return nil
}

func (r *ResponseCachePostgresRepository) namespaced(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *ResponseCachePostgresRepository) Connect(ctx context.Context) error {
	err := r.monitor.Start(ctx)
	if r.cleanupInterval > 0 {
		r.wg.Add(1)
		go r.cleanupTask()
	}
	return err
}

func (r *ResponseCachePostgresRepository) IsReady() bool {
	return r.monitor.IsReady()
}

func (r *ResponseCachePostgresRepository) State() connstate.State {
	return r.monitor.State()
}

func (r *ResponseCachePostgresRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !r.IsReady() {
		return nil, false, proxy.ErrCacheUnavailable
	}
	var value []byte
	query := `
		SELECT value
		FROM proxy_response_cache
		WHERE cache_key = $1 AND expires_at > $2`

	err := r.db.DB.GetContext(ctx, &value, query, r.namespaced(key), r.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		r.observe(err)
		return nil, false, proxy.CacheFailure("get", err)
	}
	return value, true, nil
}

func (r *ResponseCachePostgresRepository) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	if !r.IsReady() {
		return proxy.ErrCacheUnavailable
	}
	now := r.now().UTC()
	query := `
		INSERT INTO proxy_response_cache (cache_key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.DB.ExecContext(ctx, query, r.namespaced(key), value, now.Add(ttl), now); err != nil {
		r.observe(err)
		return proxy.CacheFailure("set", err)
	}
	return nil
}

// DeleteExpired removes rows past their expiry and returns how many were removed.
func (r *ResponseCachePostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM proxy_response_cache WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, proxy.CacheFailure("delete_expired", err)
	}
	return res.RowsAffected()
}

func (r *ResponseCachePostgresRepository) Close() error {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	r.wg.Wait()
	r.monitor.Stop()
	return r.db.Close()
}

func (r *ResponseCachePostgresRepository) cleanupTask() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if !r.IsReady() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), r.cleanupInterval)
			n, err := r.DeleteExpired(ctx)
			cancel()
			if err != nil {
				r.logger.WithError(err).Warn("failed to delete expired cache rows")
				continue
			}
			if n > 0 {
				r.logger.WithField("rows", n).Debug("deleted expired cache rows")
			}
		}
	}
}

func (r *ResponseCachePostgresRepository) observe(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	var netErr net.Error
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		r.monitor.ReportFailure(err)
	}
}
