package staging

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL creates the four persisted tables from spec §6 (job and the
// three staging tables) plus job_sequence, the per-day job-id counter, and
// job_history, the phase-transition trail. Row payloads are stored as jsonb since the
// domain's own column schema is explicitly out of scope for this system.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS job (
	job_id          text PRIMARY KEY,
	file_path       text NOT NULL,
	created_by      text NOT NULL,
	phase           text NOT NULL,
	total_rows      integer NOT NULL DEFAULT 0,
	processed_rows  integer NOT NULL DEFAULT 0,
	error_rows      integer NOT NULL DEFAULT 0,
	valid_rows      integer NOT NULL DEFAULT 0,
	last_error      text,
	created_at      timestamptz NOT NULL DEFAULT now(),
	updated_at      timestamptz NOT NULL DEFAULT now(),
	started_at      timestamptz,
	finished_at     timestamptz
);

CREATE TABLE IF NOT EXISTS job_sequence (
	seq_date text PRIMARY KEY,
	next_seq integer NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS staging_raw (
	job_id        text NOT NULL REFERENCES job(job_id),
	row_number    integer NOT NULL,
	payload       jsonb,
	error_message text,
	error_code    text
);
CREATE INDEX IF NOT EXISTS staging_raw_job_idx ON staging_raw (job_id);
CREATE INDEX IF NOT EXISTS staging_raw_job_error_idx ON staging_raw (job_id, (error_message IS NOT NULL));

CREATE TABLE IF NOT EXISTS staging_valid (
	job_id     text NOT NULL REFERENCES job(job_id),
	row_number integer NOT NULL,
	payload    jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS staging_valid_job_idx ON staging_valid (job_id);

CREATE TABLE IF NOT EXISTS staging_error (
	job_id        text NOT NULL REFERENCES job(job_id),
	row_number    integer NOT NULL,
	payload       jsonb,
	error_code    text NOT NULL,
	error_message text NOT NULL
);
CREATE INDEX IF NOT EXISTS staging_error_job_idx ON staging_error (job_id);

CREATE TABLE IF NOT EXISTS job_history (
	id         bigserial PRIMARY KEY,
	job_id     text NOT NULL REFERENCES job(job_id),
	phase      text NOT NULL,
	message    text,
	recorded_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS job_history_job_idx ON job_history (job_id, recorded_at);
`

// Migrate creates the staging schema if it does not already exist. It is
// idempotent and safe to call on every process start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}
