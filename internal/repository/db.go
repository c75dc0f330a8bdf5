package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// DB is an opened ledger database.
type DB struct {
	SQL     *sql.DB
	Dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// Open connects to the DSN's backend. postgres:// and postgresql:// DSNs go through a
// pgx pool; anything else is a sqlite path, optionally prefixed with "sqlite:".
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialect, dsn := splitDSN(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("ledger dsn is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	logger.Info("connecting to ledger", "dialect", dialect)
	if dialect == DialectSQLite {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			logger.Error("failed to open ledger", "error", err)
			return nil, err
		}
		// one connection keeps :memory: databases shared and serializes writers
		db.SetMaxOpenConns(1)
		out := &DB{SQL: db, Dialect: dialect, logger: logger}
		if err := out.HealthCheck(ctx, cfg.DialTimeout); err != nil {
			_ = db.Close()
			return nil, err
		}
		return out, nil
	}

	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("failed to parse ledger dsn", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "invoice-extract"

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to ledger", "error", err)
		return nil, err
	}
	out := &DB{SQL: stdlib.OpenDBFromPool(pool), Dialect: dialect, pool: pool, logger: logger}
	if err := out.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		out.Close()
		return nil, err
	}
	logger.Info("successfully connected to ledger")
	return out, nil
}

// Close closes the database connections gracefully
func (d *DB) Close() {
	if d == nil {
		return
	}
	if err := d.SQL.Close(); err != nil {
		d.logger.Error("failed to close ledger db", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	d.logger.Debug("ledger connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := d.SQL.PingContext(ctx); err != nil {
		d.logger.Error("ledger ping failed", "error", err)
		return err
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *DB) rebind(q string) string {
	if d.Dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func splitDSN(dsn string) (dialect, rest string) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DialectPostgres, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "sqlite:"):
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite:")
	default:
		return DialectSQLite, dsn
	}
}
