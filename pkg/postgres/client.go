package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/govsentinel/sentinel/pkg/retry"
	"github.com/govsentinel/sentinel/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Executor is an interface that both *pgxpool.Pool and pgx.Tx implement,
// letting store methods work with either a connection pool or a transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Client wraps a PostgreSQL connection pool shared by the cursors, analyses, and
// delivery_marks stores (§3.1).
type Client struct {
	Logger *zap.Logger
	Pool   *pgxpool.Pool
}

// PoolConfig defines connection pool settings.
type PoolConfig struct {
	MinConns        int32
	MaxConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns settings appropriate for this process's modest
// connection footprint: one schedule-driven Watcher per chain plus the
// analysis/delivery pools, not a fleet of per-tenant pools.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinConns:        2,
		MaxConns:        20,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// New initializes and returns a new PostgreSQL client. The connection string comes
// from POSTGRES_URL; connection is retried with the shared backoff helper since a
// cold-started Postgres container is a common deployment race.
func New(ctx context.Context, logger *zap.Logger, poolConfig ...PoolConfig) (Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client := Client{Logger: logger}
	retryConfig := retry.DefaultConfig()

	dbURL := utils.Env("POSTGRES_URL", "postgres://localhost:5432/govsentinel")

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return Client{}, fmt.Errorf("failed to parse POSTGRES_URL: %w", err)
	}

	poolConf := DefaultPoolConfig()
	if len(poolConfig) > 0 {
		poolConf = poolConfig[0]
	}

	config.MinConns = poolConf.MinConns
	config.MaxConns = poolConf.MaxConns
	config.MaxConnLifetime = poolConf.ConnMaxLifetime
	config.MaxConnIdleTime = poolConf.ConnMaxIdleTime

	retryErr := retry.WithBackoff(connCtx, retryConfig, logger, "postgres_connection", func() error {
		pool, openErr := pgxpool.NewWithConfig(connCtx, config)
		if openErr != nil {
			return fmt.Errorf("failed to create postgres connection pool: %w", openErr)
		}

		client.Pool = pool

		if pingErr := pool.Ping(connCtx); pingErr != nil {
			pool.Close()
			return fmt.Errorf("failed to ping postgres: %w", pingErr)
		}

		logger.Info("PostgreSQL connection pool configured",
			zap.Int32("min_conns", poolConf.MinConns),
			zap.Int32("max_conns", poolConf.MaxConns),
			zap.Duration("conn_max_lifetime", poolConf.ConnMaxLifetime),
			zap.Duration("conn_max_idle_time", poolConf.ConnMaxIdleTime),
		)

		return nil
	})

	if retryErr != nil {
		return Client{}, retryErr
	}

	return client, nil
}

// Exec executes a query without returning any rows.
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := c.GetExecutor(ctx).Exec(ctx, query, args...)
	return err
}

// Query executes a query that returns rows. Caller MUST call rows.Close() when done.
func (c *Client) Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error) {
	return c.GetExecutor(ctx).Query(ctx, query, args...)
}

// QueryRow executes a query that is expected to return at most one row.
func (c *Client) QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	return c.GetExecutor(ctx).QueryRow(ctx, query, args...)
}

// Begin starts a new transaction.
func (c *Client) Begin(ctx context.Context) (pgx.Tx, error) {
	return c.Pool.Begin(ctx)
}

// BeginFunc executes fn within a transaction, rolling back on error and
// committing otherwise.
func (c *Client) BeginFunc(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, c.Pool, fn)
}

// Close closes the connection pool.
func (c *Client) Close() {
	c.Pool.Close()
}

// ctxKey is the type used for context keys to avoid collisions.
type ctxKey string

const txKey ctxKey = "pgx_tx"

// WithTx returns a new context with the transaction embedded, so downstream store
// methods transparently participate in the caller's transaction.
func (c *Client) WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetExecutor returns the transaction embedded in ctx via WithTx, or the
// connection pool if none is present.
func (c *Client) GetExecutor(ctx context.Context) Executor {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return c.Pool
}

// TableExists checks if a table exists in the public schema.
func (c *Client) TableExists(ctx context.Context, table string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`

	var exists bool
	err := c.Pool.QueryRow(ctx, query, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check if table exists %s: %w", table, err)
	}

	return exists, nil
}

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
