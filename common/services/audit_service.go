package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sarkariwatch/scraper-http-service/repository"
	"github.com/sarkariwatch/scraper-http-service/scraper"
)

// AuditService persists the scrape-run lifecycle: run records, raw extracted
// records, and the error trail.
type AuditService struct {
	queries *repository.Queries
}

// NewAuditService creates a new audit service
func NewAuditService(queries *repository.Queries) *AuditService {
	return &AuditService{queries: queries}
}

// CreateRun inserts the run record in the running state.
func (s *AuditService) CreateRun(ctx context.Context, runID, sourceID string, strategy scraper.StrategyName, startedAt time.Time) error {
	return s.queries.CreateScrapeRun(ctx, repository.ScrapeRun{
		ID:        runID,
		SourceID:  sourceID,
		Status:    string(scraper.RunStatusRunning),
		Strategy:  string(strategy),
		StartedAt: startedAt,
	})
}

// FinalizeRun writes the terminal status and statistics. Returns false when
// the run had already reached a terminal state.
func (s *AuditService) FinalizeRun(ctx context.Context, runID string, status scraper.RunStatus, stats scraper.RunStats, completedAt time.Time) (bool, error) {
	run, err := s.queries.GetScrapeRunById(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("loading run %s: %w", runID, err)
	}

	run.Status = string(status)
	run.CompletedAt = pgtype.Timestamptz{Time: completedAt, Valid: true}
	run.DurationMs = pgtype.Int8{Int64: completedAt.Sub(run.StartedAt).Milliseconds(), Valid: true}
	run.PagesScraped = int32(stats.PagesScraped)
	run.RequestsMade = int32(stats.RequestsMade)
	run.AvgResponseMs = int32(stats.AvgResponseMs)
	run.JobsFound = int32(stats.JobsFound)
	run.JobsCreated = int32(stats.JobsCreated)
	run.JobsUpdated = int32(stats.JobsUpdated)
	run.JobsSkipped = int32(stats.JobsSkipped)
	run.ErrorCount = int32(stats.ErrorCount)

	return s.queries.FinalizeScrapeRun(ctx, run)
}

// RecordRaw archives one raw extracted record. Returns false when the same
// content from the same source was already archived.
func (s *AuditService) RecordRaw(ctx context.Context, runID, sourceID, pageURL, contentHash string, fields map[string]string) (bool, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return false, err
	}

	encoded, err := json.Marshal(fields)
	if err != nil {
		return false, fmt.Errorf("encoding raw fields: %w", err)
	}

	return s.queries.CreateRawRecord(ctx, repository.RawRecord{
		ID:          id.String(),
		RunID:       runID,
		SourceID:    sourceID,
		Url:         pageURL,
		ContentHash: contentHash,
		Fields:      encoded,
		CreatedAt:   time.Now(),
	})
}

// RecordError inserts one error audit row.
func (s *AuditService) RecordError(ctx context.Context, runID string, scrapeErr *scraper.ScrapeError) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	return s.queries.CreateScrapeError(ctx, repository.ScrapeError{
		ID:         id.String(),
		RunID:      runID,
		ErrorType:  string(scrapeErr.Type),
		Message:    scrapeErr.Err.Error(),
		Url:        pgtype.Text{String: scrapeErr.URL, Valid: scrapeErr.URL != ""},
		Selector:   pgtype.Text{String: scrapeErr.Selector, Valid: scrapeErr.Selector != ""},
		RetryCount: int32(scrapeErr.RetryCount),
		CreatedAt:  time.Now(),
	})
}

// TouchSource records when a source's run completed.
func (s *AuditService) TouchSource(ctx context.Context, sourceID string, at time.Time) error {
	return s.queries.TouchSourceLastScraped(ctx, sourceID, at)
}

// GetRun returns one run row for API responses.
func (s *AuditService) GetRun(ctx context.Context, runID string) (repository.ScrapeRun, error) {
	return s.queries.GetScrapeRunById(ctx, runID)
}

// ListRuns returns recent runs for one source.
func (s *AuditService) ListRuns(ctx context.Context, sourceID string, limit int32) ([]repository.ScrapeRun, error) {
	return s.queries.ListScrapeRunsBySource(ctx, sourceID, limit)
}

// ListErrors returns the error trail of one run.
func (s *AuditService) ListErrors(ctx context.Context, runID string) ([]repository.ScrapeError, error) {
	return s.queries.ListScrapeErrorsByRun(ctx, runID)
}
