package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// Connect opens a Postgres pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the job tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const jobsTable = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
  id               VARCHAR(64)  PRIMARY KEY,
  tenant_id        VARCHAR(64)  NOT NULL,
  state            VARCHAR(16)  NOT NULL,
  input_digest     VARCHAR(64)  NOT NULL,
  attempt_count    INT          NOT NULL DEFAULT 0,
  max_attempts     INT          NOT NULL DEFAULT 3,
  result           TEXT,
  failure_reason   TEXT,
  block_reason     TEXT,
  firewall_stage   VARCHAR(16),
  firewall_outcome VARCHAR(16),
  created_at       TIMESTAMPTZ  NOT NULL,
  updated_at       TIMESTAMPTZ  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_tenant_created ON analysis_jobs (tenant_id, created_at);`
	const eventsTable = `
CREATE TABLE IF NOT EXISTS job_events (
  id         BIGSERIAL PRIMARY KEY,
  tenant_id  VARCHAR(64) NOT NULL,
  job_id     VARCHAR(64) NOT NULL,
  kind       VARCHAR(32) NOT NULL,
  message    TEXT,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_tenant_job ON job_events (tenant_id, job_id, created_at);`
	if _, err := db.ExecContext(ctx, jobsTable); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, eventsTable)
	return err
}
