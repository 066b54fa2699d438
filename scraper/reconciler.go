package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ReconcileOutcome is the reconciler's decision for one record.
type ReconcileOutcome string

const (
	OutcomeCreated ReconcileOutcome = "created"
	OutcomeUpdated ReconcileOutcome = "updated"
	OutcomeSkipped ReconcileOutcome = "skipped"
)

// ErrDuplicateJob is returned by JobStore.Create when another run inserted
// the same (source, content hash) first.
var ErrDuplicateJob = errors.New("job already exists for source and content hash")

// StoredJob is the slice of a stored record the reconciler needs for its
// decision.
type StoredJob struct {
	ID          string
	ContentHash string
	Version     int
}

// JobStore is the downstream store the reconciler writes into. It must
// enforce uniqueness on (source, content hash); that constraint is what
// serializes overlapping runs of the same source.
type JobStore interface {
	// FindByHash returns nil when no record matches.
	FindByHash(ctx context.Context, sourceID, contentHash string) (*StoredJob, error)
	// FindByURL returns the most recently updated record for the posting
	// URL, or nil.
	FindByURL(ctx context.Context, sourceID, sourceURL string) (*StoredJob, error)
	// Create inserts a new record, returning ErrDuplicateJob when the
	// uniqueness constraint rejects it.
	Create(ctx context.Context, sourceID string, job *NormalizedJob) error
	// Update replaces the mutable fields of an existing record and bumps
	// its version.
	Update(ctx context.Context, id string, job *NormalizedJob) error
}

// Reconciler decides create, update, or skip for each normalized record.
type Reconciler struct {
	store JobStore
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store JobStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile is idempotent: feeding the same record twice yields a skip the
// second time, whether the repeat happens within one run or across runs.
func (r *Reconciler) Reconcile(ctx context.Context, sourceID string, job *NormalizedJob) (ReconcileOutcome, error) {
	existing, err := r.store.FindByHash(ctx, sourceID, job.ContentHash)
	if err != nil {
		return "", fmt.Errorf("looking up job by hash: %w", err)
	}
	if existing != nil {
		// Identical content already stored.
		return OutcomeSkipped, nil
	}

	// Same posting URL with a different hash means the posting changed in
	// place; update rather than duplicating it.
	prior, err := r.store.FindByURL(ctx, sourceID, job.SourceURL)
	if err != nil {
		return "", fmt.Errorf("looking up job by url: %w", err)
	}
	if prior != nil && prior.ContentHash != job.ContentHash {
		if err := r.store.Update(ctx, prior.ID, job); err != nil {
			return "", fmt.Errorf("updating job %s: %w", prior.ID, err)
		}
		log.Debug().
			Str("sourceID", sourceID).
			Str("jobID", prior.ID).
			Int("previousVersion", prior.Version).
			Msg("Updated changed posting")
		return OutcomeUpdated, nil
	}

	if err := r.store.Create(ctx, sourceID, job); err != nil {
		if errors.Is(err, ErrDuplicateJob) {
			// A concurrent run won the insert race. The content is
			// stored either way, so this is a skip, not a failure.
			return OutcomeSkipped, nil
		}
		return "", fmt.Errorf("creating job: %w", err)
	}

	return OutcomeCreated, nil
}
