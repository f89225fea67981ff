package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Connect opens a MySQL pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
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
  id               VARCHAR(64)  NOT NULL,
  tenant_id        VARCHAR(64)  NOT NULL,
  state            VARCHAR(16)  NOT NULL,
  input_digest     VARCHAR(64)  NOT NULL,
  attempt_count    INT          NOT NULL DEFAULT 0,
  max_attempts     INT          NOT NULL DEFAULT 3,
  result           MEDIUMTEXT,
  failure_reason   TEXT,
  block_reason     TEXT,
  firewall_stage   VARCHAR(16),
  firewall_outcome VARCHAR(16),
  created_at       DATETIME(6)  NOT NULL,
  updated_at       DATETIME(6)  NOT NULL,
  PRIMARY KEY (id),
  KEY idx_tenant_created (tenant_id, created_at)
);`
	const eventsTable = `
CREATE TABLE IF NOT EXISTS job_events (
  id         BIGINT AUTO_INCREMENT PRIMARY KEY,
  tenant_id  VARCHAR(64) NOT NULL,
  job_id     VARCHAR(64) NOT NULL,
  kind       VARCHAR(32) NOT NULL,
  message    TEXT,
  created_at DATETIME(6) NOT NULL,
  KEY idx_tenant_job (tenant_id, job_id, created_at)
);`
	if _, err := db.ExecContext(ctx, jobsTable); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, eventsTable)
	return err
}
