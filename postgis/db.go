// Package postgis stores sample classes and samples in PostgreSQL/PostGIS.
package postgis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wgdzlh/sampledb/config"
	"github.com/wgdzlh/sampledb/log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// DB is a DBTX able to open transactions, usually a *pgxpool.Pool.
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

var ErrBadIdentifier = errors.New("invalid table name")

// Connect opens and pings a pool configured from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (pool *pgxpool.Pool, err error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		err = fmt.Errorf("parse database url: %w", err)
		return
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	if pool, err = pgxpool.NewWithConfig(ctx, poolConfig); err != nil {
		err = fmt.Errorf("connect database: %w", err)
		return
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		pool = nil
		err = fmt.Errorf("ping database: %w", err)
		return
	}
	log.Info("postgis: connected", zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns))
	return
}

// ParseIdentifier splits an optionally schema qualified table name.
func ParseIdentifier(name string) (id pgx.Identifier, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		err = fmt.Errorf("%w: empty", ErrBadIdentifier)
		return
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		err = fmt.Errorf("%w: %q", ErrBadIdentifier, name)
		return
	}
	for _, p := range parts {
		if p == "" || strings.ContainsRune(p, 0) {
			err = fmt.Errorf("%w: %q", ErrBadIdentifier, name)
			return
		}
	}
	id = pgx.Identifier(parts)
	return
}
