package repository

import (
	"context"
	"time"
)

const sourceColumns = `id, name, base_url, config, frequency_hours, is_active, last_scraped_at, created_at, updated_at`

func scanSource(row interface{ Scan(...any) error }) (Source, error) {
	var s Source
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.BaseUrl,
		&s.Config,
		&s.FrequencyHours,
		&s.IsActive,
		&s.LastScrapedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

// GetSourceById returns one source by ID.
func (q *Queries) GetSourceById(ctx context.Context, id string) (Source, error) {
	row := q.db.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	return scanSource(row)
}

// ListActiveSources returns all active sources.
func (q *Queries) ListActiveSources(ctx context.Context) ([]Source, error) {
	rows, err := q.db.Query(ctx, `SELECT `+sourceColumns+` FROM sources WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// TouchSourceLastScraped records the time a scrape run finished for a source.
func (q *Queries) TouchSourceLastScraped(ctx context.Context, id string, at time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE sources SET last_scraped_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	return err
}

// UpsertSource creates or replaces a source definition.
func (q *Queries) UpsertSource(ctx context.Context, s Source) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO sources (`+sourceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			base_url = EXCLUDED.base_url,
			config = EXCLUDED.config,
			frequency_hours = EXCLUDED.frequency_hours,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`,
		s.ID, s.Name, s.BaseUrl, s.Config, s.FrequencyHours, s.IsActive,
		s.LastScrapedAt, s.CreatedAt, s.UpdatedAt,
	)
	return err
}
