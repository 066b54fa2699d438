package work

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sarkariwatch/scraper-http-service/common/redis"
)

const (
	runKeyPrefix    = "scrape:run:"
	sourceKeyPrefix = "scrape:source:"

	// A run that never finalizes should not hold its locks forever.
	runKeyTTL = 6 * time.Hour
)

// RunManager tracks in-flight scrape runs in Redis. Each active run holds two
// keys: a per-run key whose presence doubles as the cancellation flag (delete
// the key and the orchestrator stops between pages), and a per-source lock
// that prevents overlapping runs against the same source.
type RunManager struct {
	redis *redis.RedisClient
}

// NewRunManager creates a run manager backed by the given Redis client.
func NewRunManager(redisClient *redis.RedisClient) *RunManager {
	return &RunManager{redis: redisClient}
}

func runKey(runID string) string {
	return runKeyPrefix + runID
}

func sourceKey(sourceID string) string {
	return sourceKeyPrefix + sourceID
}

// Acquire registers a new run for the source. It returns false without error
// when another run already holds the source lock.
func (m *RunManager) Acquire(ctx context.Context, sourceID, runID string) (bool, error) {
	ok, err := m.redis.SetNX(ctx, sourceKey(sourceID), runID, runKeyTTL)
	if err != nil {
		return false, fmt.Errorf("acquiring source lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := m.redis.Set(ctx, runKey(runID), sourceID, runKeyTTL); err != nil {
		// Roll back the source lock so the source is not stuck until TTL.
		if delErr := m.redis.Delete(ctx, sourceKey(sourceID)); delErr != nil {
			log.Warn().Err(delErr).Str("sourceID", sourceID).Msg("Failed to release source lock after error")
		}
		return false, fmt.Errorf("registering run: %w", err)
	}

	return true, nil
}

// Cancelled reports whether the run has been asked to stop. A missing run key
// means cancellation was requested (or the key expired, which we treat the
// same way).
func (m *RunManager) Cancelled(ctx context.Context, runID string) bool {
	exists, err := m.redis.Exists(ctx, runKey(runID))
	if err != nil {
		// On Redis failure keep the run going rather than aborting work.
		log.Warn().Err(err).Str("runID", runID).Msg("Failed to check cancellation flag")
		return false
	}
	return !exists
}

// RequestCancel deletes the run key so the orchestrator stops at the next
// page boundary. It is a no-op for runs that already finished.
func (m *RunManager) RequestCancel(ctx context.Context, runID string) error {
	return m.redis.Delete(ctx, runKey(runID))
}

// Release removes the run key and the source lock after a run reaches a
// terminal state.
func (m *RunManager) Release(ctx context.Context, sourceID, runID string) {
	if err := m.redis.Delete(ctx, runKey(runID)); err != nil {
		log.Warn().Err(err).Str("runID", runID).Msg("Failed to delete run key")
	}
	if err := m.redis.Delete(ctx, sourceKey(sourceID)); err != nil {
		log.Warn().Err(err).Str("sourceID", sourceID).Msg("Failed to release source lock")
	}
}

// ActiveRun returns the run ID currently holding the source lock, if any.
func (m *RunManager) ActiveRun(ctx context.Context, sourceID string) (string, bool, error) {
	runID, err := m.redis.Get(ctx, sourceKey(sourceID))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return "", false, nil
		}
		return "", false, err
	}
	return runID, true, nil
}
