package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"
	"github.com/sarkariwatch/scraper-http-service/repository"
	"github.com/sarkariwatch/scraper-http-service/scraper"
)

const uniqueViolationCode = "23505"

// JobStoreService is the reconciler's downstream store, backed by the jobs
// table and its (source_id, content_hash) unique constraint.
type JobStoreService struct {
	queries *repository.Queries
}

// NewJobStoreService creates a new job store service
func NewJobStoreService(queries *repository.Queries) *JobStoreService {
	return &JobStoreService{queries: queries}
}

// FindByHash returns the stored record matching the dedup key, or nil.
func (s *JobStoreService) FindByHash(ctx context.Context, sourceID, contentHash string) (*scraper.StoredJob, error) {
	job, err := s.queries.GetJobBySourceAndHash(ctx, sourceID, contentHash)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return toStoredJob(job), nil
}

// FindByURL returns the most recently updated record for a posting URL, or nil.
func (s *JobStoreService) FindByURL(ctx context.Context, sourceID, sourceURL string) (*scraper.StoredJob, error) {
	job, err := s.queries.GetJobBySourceAndUrl(ctx, sourceID, sourceURL)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return toStoredJob(job), nil
}

// Create inserts a new job row. A unique violation maps to ErrDuplicateJob
// so the reconciler treats the insert race as a skip.
func (s *JobStoreService) Create(ctx context.Context, sourceID string, job *scraper.NormalizedJob) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	now := time.Now()
	row := toJobRow(job)
	row.ID = id.String()
	row.SourceID = sourceID
	row.Version = 1
	row.CreatedAt = now
	row.UpdatedAt = now

	if err := s.queries.CreateJob(ctx, row); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return scraper.ErrDuplicateJob
		}
		return err
	}
	return nil
}

// Update replaces the mutable fields of an existing job row.
func (s *JobStoreService) Update(ctx context.Context, id string, job *scraper.NormalizedJob) error {
	row := toJobRow(job)
	row.ID = id
	row.UpdatedAt = time.Now()
	return s.queries.UpdateJob(ctx, row)
}

// CountBySource returns the number of stored jobs for one source.
func (s *JobStoreService) CountBySource(ctx context.Context, sourceID string) (int64, error) {
	return s.queries.CountJobsBySource(ctx, sourceID)
}

func toStoredJob(j repository.Job) *scraper.StoredJob {
	return &scraper.StoredJob{
		ID:          j.ID,
		ContentHash: j.ContentHash,
		Version:     int(j.Version),
	}
}

func toJobRow(job *scraper.NormalizedJob) repository.Job {
	return repository.Job{
		Title:            job.Title,
		Description:      textOrNull(job.Description),
		DescriptionMd:    textOrNull(job.DescriptionMd),
		Department:       textOrNull(job.Department),
		TotalPosts:       int4FromOption(job.TotalPosts),
		Qualification:    textOrNull(job.Qualification),
		NotificationDate: dateOrNull(job.NotificationDate),
		LastDate:         dateOrNull(job.LastDate),
		ExamDate:         dateOrNull(job.ExamDate),
		Fee:              float8FromOption(job.Fee),
		MinSalary:        int4FromOption(job.MinSalary),
		MaxSalary:        int4FromOption(job.MaxSalary),
		MinAge:           int4FromOption(job.MinAge),
		MaxAge:           int4FromOption(job.MaxAge),
		Location:         textOrNull(job.Location),
		ApplicationLink:  textOrNull(job.ApplicationLink),
		NotificationPdf:  textOrNull(job.NotificationPDF),
		SourceUrl:        job.SourceURL,
		ContentHash:      job.ContentHash,
		QualityScore:     int32(job.QualityScore),
	}
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func dateOrNull(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func int4FromOption(o mo.Option[int]) pgtype.Int4 {
	if v, ok := o.Get(); ok {
		return pgtype.Int4{Int32: int32(v), Valid: true}
	}
	return pgtype.Int4{}
}

func float8FromOption(o mo.Option[float64]) pgtype.Float8 {
	if v, ok := o.Get(); ok {
		return pgtype.Float8{Float64: v, Valid: true}
	}
	return pgtype.Float8{}
}
