// Package database opens the Postgres pool behind the credential, journal,
// principal and outbox stores.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const defaultConnectTimeout = 5 * time.Second

type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectTimeout bounds the startup ping. Zero means five seconds.
	ConnectTimeout time.Duration
}

// Pool is a *sql.DB on the pgx driver. Methods are safe on a nil Pool, which
// is what New returns when no URL is configured.
type Pool struct {
	db *sql.DB
}

// New opens the pool and pings it once so a bad DATABASE_URL fails startup
// rather than the first request. If reg is non-nil the pool's connection
// stats are exported as go_sql_* metrics labelled db_name="verichain".
func New(ctx context.Context, cfg Config, reg prometheus.Registerer) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if reg != nil {
		if err := reg.Register(collectors.NewDBStatsCollector(db, "verichain")); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("register database metrics: %w", err)
		}
	}
	return &Pool{db: db}, nil
}

func (p *Pool) DB() *sql.DB {
	return p.db
}

// Health is the readiness check; an unconfigured pool is unhealthy.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("database not configured")
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
