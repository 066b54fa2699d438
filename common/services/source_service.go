package services

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/sarkariwatch/scraper-http-service/repository"
	"github.com/sarkariwatch/scraper-http-service/scraper"
)

// SourceService exposes source registry operations to the engine and the
// HTTP handlers.
type SourceService struct {
	queries *repository.Queries
}

// NewSourceService creates a new source service
func NewSourceService(queries *repository.Queries) *SourceService {
	return &SourceService{queries: queries}
}

func toSourceRef(s repository.Source) scraper.SourceRef {
	ref := scraper.SourceRef{
		ID:             s.ID,
		Name:           s.Name,
		BaseURL:        s.BaseUrl,
		Config:         s.Config,
		FrequencyHours: int(s.FrequencyHours),
		IsActive:       s.IsActive,
	}
	if s.LastScrapedAt.Valid {
		t := s.LastScrapedAt.Time
		ref.LastScrapedAt = &t
	}
	return ref
}

// Get loads one source for the engine.
func (s *SourceService) Get(ctx context.Context, sourceID string) (scraper.SourceRef, error) {
	source, err := s.queries.GetSourceById(ctx, sourceID)
	if err != nil {
		return scraper.SourceRef{}, err
	}
	return toSourceRef(source), nil
}

// ListActive returns every active source.
func (s *SourceService) ListActive(ctx context.Context) ([]scraper.SourceRef, error) {
	sources, err := s.queries.ListActiveSources(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(sources, func(source repository.Source, _ int) scraper.SourceRef {
		return toSourceRef(source)
	}), nil
}

// GetRow returns the full source row for API responses.
func (s *SourceService) GetRow(ctx context.Context, sourceID string) (repository.Source, error) {
	return s.queries.GetSourceById(ctx, sourceID)
}

// ListActiveRows returns full source rows for API responses.
func (s *SourceService) ListActiveRows(ctx context.Context) ([]repository.Source, error) {
	return s.queries.ListActiveSources(ctx)
}

// Upsert validates the embedded scraping config before writing the source.
func (s *SourceService) Upsert(ctx context.Context, source repository.Source) error {
	if _, err := scraper.ParseSourceConfig(source.Config); err != nil {
		return err
	}

	now := time.Now()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now
	return s.queries.UpsertSource(ctx, source)
}
