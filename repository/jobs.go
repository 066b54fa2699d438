package repository

import (
	"context"
)

const jobColumns = `id, source_id, title, description, description_md, department, total_posts,
	qualification, notification_date, last_date, exam_date, fee,
	min_salary, max_salary, min_age, max_age, location,
	application_link, notification_pdf, source_url, content_hash,
	quality_score, version, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID,
		&j.SourceID,
		&j.Title,
		&j.Description,
		&j.DescriptionMd,
		&j.Department,
		&j.TotalPosts,
		&j.Qualification,
		&j.NotificationDate,
		&j.LastDate,
		&j.ExamDate,
		&j.Fee,
		&j.MinSalary,
		&j.MaxSalary,
		&j.MinAge,
		&j.MaxAge,
		&j.Location,
		&j.ApplicationLink,
		&j.NotificationPdf,
		&j.SourceUrl,
		&j.ContentHash,
		&j.QualityScore,
		&j.Version,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	return j, err
}

// GetJobBySourceAndHash looks up a job by its deduplication key.
func (q *Queries) GetJobBySourceAndHash(ctx context.Context, sourceID, contentHash string) (Job, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE source_id = $1 AND content_hash = $2`, sourceID, contentHash)
	return scanJob(row)
}

// GetJobBySourceAndUrl looks up a job by its source page URL. Used by the
// reconciler to detect changed content for a posting seen before.
func (q *Queries) GetJobBySourceAndUrl(ctx context.Context, sourceID, sourceUrl string) (Job, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE source_id = $1 AND source_url = $2
		ORDER BY updated_at DESC LIMIT 1`, sourceID, sourceUrl)
	return scanJob(row)
}

// CreateJob inserts a new job row. The (source_id, content_hash) unique
// constraint is the serialization point for overlapping runs of one source.
func (q *Queries) CreateJob(ctx context.Context, j Job) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		j.ID, j.SourceID, j.Title, j.Description, j.DescriptionMd, j.Department, j.TotalPosts,
		j.Qualification, j.NotificationDate, j.LastDate, j.ExamDate, j.Fee,
		j.MinSalary, j.MaxSalary, j.MinAge, j.MaxAge, j.Location,
		j.ApplicationLink, j.NotificationPdf, j.SourceUrl, j.ContentHash,
		j.QualityScore, j.Version, j.CreatedAt, j.UpdatedAt,
	)
	return err
}

// UpdateJob replaces the mutable fields of an existing job row and bumps the
// version counter.
func (q *Queries) UpdateJob(ctx context.Context, j Job) error {
	_, err := q.db.Exec(ctx, `
		UPDATE jobs SET
			title = $2,
			description = $3,
			description_md = $4,
			department = $5,
			total_posts = $6,
			qualification = $7,
			notification_date = $8,
			last_date = $9,
			exam_date = $10,
			fee = $11,
			min_salary = $12,
			max_salary = $13,
			min_age = $14,
			max_age = $15,
			location = $16,
			application_link = $17,
			notification_pdf = $18,
			content_hash = $19,
			quality_score = $20,
			version = version + 1,
			updated_at = $21
		WHERE id = $1`,
		j.ID, j.Title, j.Description, j.DescriptionMd, j.Department, j.TotalPosts,
		j.Qualification, j.NotificationDate, j.LastDate, j.ExamDate, j.Fee,
		j.MinSalary, j.MaxSalary, j.MinAge, j.MaxAge, j.Location,
		j.ApplicationLink, j.NotificationPdf, j.ContentHash,
		j.QualityScore, j.UpdatedAt,
	)
	return err
}

// CountJobsBySource returns the number of stored jobs for a source.
func (q *Queries) CountJobsBySource(ctx context.Context, sourceID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM jobs WHERE source_id = $1`, sourceID).Scan(&n)
	return n, err
}
