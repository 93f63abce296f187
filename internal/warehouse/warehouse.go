// Package warehouse is the thin façade every other component depends on
// for talking to the warehouse: pooled connections, parameterized exec,
// async query submission/polling, and stage upload/remove. It wraps
// database/sql with the Snowflake driver exactly the way the ingestion
// pipeline wraps pgxpool around Postgres — connection tuning up front, a
// retry wrapper around the dial, and a small Ident quoting helper. Callers
// bind table names through IDENTIFIER(?); column names (date and key
// columns) are formatted into the SQL text with fmt.Sprintf by
// internal/validate, internal/deletion and internal/duplicate, none of which
// calls Ident.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/snowflakedb/gosnowflake"

	"snowetl/internal/model"
)

// Client wraps a pooled *sql.DB bound to one warehouse/database/schema.
type Client struct {
	db   *sql.DB
	pool PoolConfig
}

// PoolConfig mirrors the knobs the teacher tunes on pgxpool.Config, adapted
// to database/sql's own pool controls.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func defaultPoolConfig(size int) PoolConfig {
	if size == 0 {
		size = model.DefaultPoolSize
	}
	return PoolConfig{MaxOpenConns: size, MaxIdleConns: size, ConnMaxLifetime: 30 * time.Minute}
}

// Connect opens a pool against cfg with bounded size, validating it with a
// no-op round trip before returning it — the same "prove the pool actually
// works before handing it to callers" discipline as the bulk-load pool's
// retrying constructor.
func Connect(ctx context.Context, cfg model.WarehouseConfig, poolSize int) (*Client, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("build dsn: %w", err)
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	pc := defaultPoolConfig(poolSize)
	db.SetMaxOpenConns(pc.MaxOpenConns)
	db.SetMaxIdleConns(pc.MaxIdleConns)
	db.SetConnMaxLifetime(pc.ConnMaxLifetime)

	if err := pingWithRetry(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("validate pool: %w", err)
	}
	return &Client{db: db, pool: pc}, nil
}

func buildDSN(cfg model.WarehouseConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s", cfg.User, cfg.Password, cfg.Account, cfg.Database, cfg.Schema, cfg.Warehouse)
	if cfg.Role != "" {
		dsn += "&role=" + cfg.Role
	}
	return dsn, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, b)
}

func (c *Client) Close() error {
	return c.db.Close()
}

// DB exposes the underlying pool for components (the validator, duplicate
// checker) that need to run raw parameterized queries this façade doesn't
// itself model.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Ident safely quotes an identifier for use inside an IDENTIFIER(?) bind,
// never via string concatenation into SQL text.
func Ident(name string) string {
	return strings.ReplaceAll(name, `"`, `""`)
}

// isTransient classifies an error as retriable. It mirrors the teacher's
// substring classification of pgconn dial/timeout errors, generalized to
// Snowflake's own transient-error surface (connection resets, timeouts).
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection reset", "broken pipe", "dial", "deadline exceeded", "eof", "too many connections"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Exec runs a parameterized statement with up to 3 attempts (2 retries) on
// transport-classified errors; programming errors propagate immediately.
func (c *Client) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	op := func() error {
		res, err := c.db.ExecContext(ctx, query, args...)
		if err != nil {
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return result, nil
}

// Query runs a parameterized query with the same retry policy as Exec.
func (c *Client) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	op := func() error {
		r, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		rows = r
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return rows, nil
}
