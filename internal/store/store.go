// Package store provides the Redis-first, Postgres-backed state store used to
// survive restarts without losing open trades or computed boundaries.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quantex/qx-algo/pkg/model"
)

// ErrNotFound is returned when a key has no value in Redis.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract the trader and dashboard depend on.
type Store interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	SaveBounds(ctx context.Context, b model.RangeBounds) error
	GetBounds(ctx context.Context, s model.Session, date string) (*model.RangeBounds, error)
	SaveOpenTrades(ctx context.Context, trades []model.Trade) error
	LoadOpenTrades(ctx context.Context) ([]model.Trade, error)
	Pool() *pgxpool.Pool
	HealthCheck(ctx context.Context) error
	Close() error
}

// HybridStore keeps hot state in Redis and holds the shared Postgres pool the
// journal writer uses.
type HybridStore struct {
	redis  *redis.Client
	pg     *pgxpool.Pool
	logger *zap.Logger
}

// PGPoolConfig tunes the Postgres connection pool.
type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid connects to Redis (required) and Postgres (optional, pgURL may be
// empty).
func NewHybrid(redisAddr, redisPass string, redisDB int, pgURL string, poolCfg PGPoolConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPass,
		DB:       redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if poolCfg.MaxConns > 0 {
			cfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			cfg.MinConns = poolCfg.MinConns
		}
		if poolCfg.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = poolCfg.MaxConnLifetime
		}
		if poolCfg.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = poolCfg.MaxConnIdleTime
		}
		if poolCfg.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = poolCfg.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, pg: pgPool, logger: logger}, nil
}

// SetJSON marshals value into Redis under key with a TTL (0 = no expiry).
func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// GetJSON unmarshals the value at key into dest. Returns ErrNotFound for a
// missing key.
func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

func boundsKey(s model.Session, date string) string {
	return fmt.Sprintf("bounds:%s:%s", s, date)
}

// SaveBounds caches computed range boundaries for 24 hours.
func (s *HybridStore) SaveBounds(ctx context.Context, b model.RangeBounds) error {
	return s.SetJSON(ctx, boundsKey(b.Session, b.Date), b, 24*time.Hour)
}

// GetBounds loads cached boundaries, nil if absent.
func (s *HybridStore) GetBounds(ctx context.Context, sess model.Session, date string) (*model.RangeBounds, error) {
	var b model.RangeBounds
	err := s.GetJSON(ctx, boundsKey(sess, date), &b)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const openTradesKey = "trades:open"

// SaveOpenTrades snapshots the open positions so a restart can resume
// managing them.
func (s *HybridStore) SaveOpenTrades(ctx context.Context, trades []model.Trade) error {
	return s.SetJSON(ctx, openTradesKey, trades, 0)
}

// LoadOpenTrades restores the open position snapshot, empty if absent.
func (s *HybridStore) LoadOpenTrades(ctx context.Context) ([]model.Trade, error) {
	var trades []model.Trade
	err := s.GetJSON(ctx, openTradesKey, &trades)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// Pool exposes the Postgres pool for the journal writer. Nil when Postgres is
// not configured.
func (s *HybridStore) Pool() *pgxpool.Pool {
	return s.pg
}

// HealthCheck pings Redis and, when configured, Postgres.
func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if s.pg != nil {
		if err := s.pg.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

// Close releases both connections.
func (s *HybridStore) Close() error {
	if s.pg != nil {
		s.pg.Close()
	}
	return s.redis.Close()
}
