// Package database provides the PostgreSQL connection pool shared by the
// product, audit, reviewer and campaign repositories.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/lifecycle"
)

const pingInterval = 500 * time.Millisecond

// System owns the connection pool and reports readiness once Postgres answers.
type System interface {
	lifecycle.ReadinessChecker

	Connection() *sql.DB
	// Start registers the startup ping and the shutdown close with lc.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn        *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration
	ready       atomic.Bool
}

// New opens the pool through the pgx driver. No connection is made until Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open("pgx", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        db,
		logger:      logger.With("system", "database", "host", cfg.Host, "name", cfg.Name),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Ready() bool {
	return d.ready.Load()
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	lc.Register("database", d)

	lc.OnStartup(func() {
		if err := d.ping(lc.Context()); err != nil {
			d.logger.Error("database unreachable", "timeout", d.connTimeout, "error", err)
			return
		}
		d.ready.Store(true)
		d.logger.Info("database connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.ready.Store(false)
		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("database connection closed")
	})

	return nil
}

// ping retries until Postgres answers or connTimeout elapses, so the service can
// start alongside a database container that is still booting.
func (d *database) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.connTimeout)
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		err := d.conn.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-ticker.C:
			d.logger.Debug("database not ready, retrying", "error", err)
		}
	}
}
