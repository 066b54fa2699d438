package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const runColumns = `id, source_id, status, strategy, started_at, completed_at, duration_ms,
	pages_scraped, requests_made, avg_response_ms,
	jobs_found, jobs_created, jobs_updated, jobs_skipped, error_count`

func scanRun(row interface{ Scan(...any) error }) (ScrapeRun, error) {
	var r ScrapeRun
	err := row.Scan(
		&r.ID,
		&r.SourceID,
		&r.Status,
		&r.Strategy,
		&r.StartedAt,
		&r.CompletedAt,
		&r.DurationMs,
		&r.PagesScraped,
		&r.RequestsMade,
		&r.AvgResponseMs,
		&r.JobsFound,
		&r.JobsCreated,
		&r.JobsUpdated,
		&r.JobsSkipped,
		&r.ErrorCount,
	)
	return r, err
}

// CreateScrapeRun inserts a new run row in the running state.
func (q *Queries) CreateScrapeRun(ctx context.Context, r ScrapeRun) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO scrape_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.SourceID, r.Status, r.Strategy, r.StartedAt, r.CompletedAt, r.DurationMs,
		r.PagesScraped, r.RequestsMade, r.AvgResponseMs,
		r.JobsFound, r.JobsCreated, r.JobsUpdated, r.JobsSkipped, r.ErrorCount,
	)
	return err
}

// FinalizeScrapeRun writes the terminal state and final statistics of a run.
// Only a run still in the running state is updated, so the terminal
// transition happens at most once.
func (q *Queries) FinalizeScrapeRun(ctx context.Context, r ScrapeRun) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE scrape_runs SET
			status = $2,
			completed_at = $3,
			duration_ms = $4,
			pages_scraped = $5,
			requests_made = $6,
			avg_response_ms = $7,
			jobs_found = $8,
			jobs_created = $9,
			jobs_updated = $10,
			jobs_skipped = $11,
			error_count = $12
		WHERE id = $1 AND status = 'running'`,
		r.ID, r.Status, r.CompletedAt, r.DurationMs,
		r.PagesScraped, r.RequestsMade, r.AvgResponseMs,
		r.JobsFound, r.JobsCreated, r.JobsUpdated, r.JobsSkipped, r.ErrorCount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetScrapeRunById returns one run by ID.
func (q *Queries) GetScrapeRunById(ctx context.Context, id string) (ScrapeRun, error) {
	row := q.db.QueryRow(ctx, `SELECT `+runColumns+` FROM scrape_runs WHERE id = $1`, id)
	return scanRun(row)
}

// ListScrapeRunsBySource returns runs for one source, newest first.
func (q *Queries) ListScrapeRunsBySource(ctx context.Context, sourceID string, limit int32) ([]ScrapeRun, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+runColumns+` FROM scrape_runs
		WHERE source_id = $1 ORDER BY started_at DESC LIMIT $2`, sourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ScrapeRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CreateScrapeError inserts one error audit row.
func (q *Queries) CreateScrapeError(ctx context.Context, e ScrapeError) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO scrape_errors (id, run_id, error_type, message, url, selector, retry_count, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.RunID, e.ErrorType, e.Message, e.Url, e.Selector, e.RetryCount, e.Resolved, e.CreatedAt,
	)
	return err
}

// ListScrapeErrorsByRun returns all error rows for one run.
func (q *Queries) ListScrapeErrorsByRun(ctx context.Context, runID string) ([]ScrapeError, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, run_id, error_type, message, url, selector, retry_count, resolved, created_at
		FROM scrape_errors WHERE run_id = $1 ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []ScrapeError
	for rows.Next() {
		var e ScrapeError
		if err := rows.Scan(&e.ID, &e.RunID, &e.ErrorType, &e.Message, &e.Url, &e.Selector,
			&e.RetryCount, &e.Resolved, &e.CreatedAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// CreateRawRecord inserts a raw extracted record, ignoring duplicates of the
// same content from the same source. Returns true when a row was inserted.
func (q *Queries) CreateRawRecord(ctx context.Context, r RawRecord) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO raw_records (id, run_id, source_id, url, content_hash, fields, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_id, content_hash) DO NOTHING`,
		r.ID, r.RunID, r.SourceID, r.Url, r.ContentHash, r.Fields, r.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ErrNoRows re-exported so callers don't need to import pgx directly.
var ErrNoRows = pgx.ErrNoRows
