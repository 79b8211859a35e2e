// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"personal-color-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// colorResultsSchema is applied at start-up by EnsureSchema.
const colorResultsSchema = `CREATE TABLE IF NOT EXISTS color_results (
	id                  UUID PRIMARY KEY,
	user_id             TEXT NOT NULL,
	request_id          TEXT NOT NULL,
	personal_color_type TEXT NOT NULL,
	season              TEXT NOT NULL,
	subtype             TEXT NOT NULL,
	undertone           TEXT NOT NULL,
	confidence          DOUBLE PRECISION NOT NULL,
	aggregation_method  TEXT NOT NULL,
	agreement_ratio     DOUBLE PRECISION NOT NULL,
	reasoning           TEXT NOT NULL DEFAULT '',
	model_results       JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_color_results_user ON color_results (user_id, created_at DESC)`

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureSchema creates the color_results table and its index if missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, colorResultsSchema); err != nil {
		return fmt.Errorf("ensure color_results schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
