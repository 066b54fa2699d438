package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// SnapshotStore archives the raw HTML of every scraped page so that
// extraction bugs can be replayed against the original markup.
type SnapshotStore struct {
	service StorageService
	bucket  string
}

// NewSnapshotStore creates a snapshot store writing into the given bucket.
// A nil service disables snapshotting.
func NewSnapshotStore(service StorageService, bucket string) *SnapshotStore {
	return &SnapshotStore{service: service, bucket: bucket}
}

// Enabled reports whether snapshots will actually be written.
func (s *SnapshotStore) Enabled() bool {
	return s != nil && s.service != nil && s.bucket != ""
}

func snapshotObjectName(sourceID, runID string, page int) string {
	return fmt.Sprintf("snapshots/%s/%s/page-%04d.html.gz", sourceID, runID, page)
}

// SavePage compresses and uploads one page of raw HTML. Failures are logged
// and swallowed, archiving must never fail a scrape run.
func (s *SnapshotStore) SavePage(ctx context.Context, sourceID, runID string, page int, html string) {
	if !s.Enabled() {
		return
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(html)); err != nil {
		log.Warn().Err(err).Str("runID", runID).Int("page", page).Msg("Failed to compress page snapshot")
		return
	}
	if err := gz.Close(); err != nil {
		log.Warn().Err(err).Str("runID", runID).Int("page", page).Msg("Failed to compress page snapshot")
		return
	}

	objectName := snapshotObjectName(sourceID, runID, page)
	if _, err := s.service.Upload(ctx, s.bucket, objectName, buf.Bytes(), "application/gzip"); err != nil {
		log.Warn().Err(err).Str("runID", runID).Int("page", page).Msg("Failed to upload page snapshot")
		return
	}

	log.Debug().Str("object", objectName).Msg("Page snapshot archived")
}

// LoadPage downloads and decompresses one archived page.
func (s *SnapshotStore) LoadPage(ctx context.Context, sourceID, runID string, page int) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("snapshot store is not configured")
	}

	data, err := s.service.Download(ctx, s.bucket, snapshotObjectName(sourceID, runID, page))
	if err != nil {
		return "", err
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decompressing snapshot: %w", err)
	}
	defer gz.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(gz); err != nil {
		return "", fmt.Errorf("reading snapshot: %w", err)
	}
	return out.String(), nil
}
