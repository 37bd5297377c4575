package storebuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/park285/swiss-tournament-bot/internal/config"
	"github.com/park285/swiss-tournament-bot/internal/store/memstore"
	"github.com/park285/swiss-tournament-bot/internal/store/pgstore"
	"github.com/park285/swiss-tournament-bot/internal/store/redisstore"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	Service *tournament.Service
	Store   tournament.Store
	Backend string
}

// Close releases the store connection.
func (d *Deps) Close() error {
	if d == nil || d.Store == nil {
		return nil
	}
	return d.Store.Close()
}

// New opens the configured backend, migrates it when needed and builds the
// service with the configured strategies. extra options are applied last.
func New(ctx context.Context, sc *config.StoreConfig, logger *zap.Logger, extra ...tournament.Option) (*Deps, error) {
	if sc == nil {
		return nil, fmt.Errorf("nil store config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	standings, err := tournament.NewStandingsStrategy(sc.StandingsStrategy)
	if err != nil {
		return nil, err
	}
	pairing, err := tournament.NewPairingStrategy(sc.PairingStrategy)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, sc)
	if err != nil {
		return nil, err
	}

	opts := []tournament.Option{
		tournament.WithStandingsStrategy(standings),
		tournament.WithPairingStrategy(pairing),
		tournament.WithLogger(logger),
	}
	opts = append(opts, extra...)
	svc := tournament.NewService(store, opts...)

	logger.Info("store_ready",
		zap.String("backend", sc.Backend),
		zap.String("standings", svc.StandingsStrategy()),
		zap.String("pairing", svc.PairingStrategy()),
	)
	return &Deps{Service: svc, Store: store, Backend: sc.Backend}, nil
}

// OpenStore returns the backend named by sc.Backend.
func OpenStore(ctx context.Context, sc *config.StoreConfig) (tournament.Store, error) {
	switch strings.ToLower(strings.TrimSpace(sc.Backend)) {
	case "", config.BackendMemory:
		return memstore.New(), nil
	case config.BackendPostgres:
		pg, err := pgstore.Open(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return pg, nil
	case config.BackendRedis:
		opts, err := ParseRedisURL(sc.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return redisstore.New(rdb, sc.RedisKeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

// ParseRedisURL accepts redis:// and rediss:// URLs in the form go-redis
// understands: optional credentials, a database number as the path and
// client options as query parameters. rediss enables TLS.
func ParseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return opts, nil
}
