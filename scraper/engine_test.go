package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sarkariwatch/scraper-http-service/common/work"
)

type fakeSourceLister struct {
	sources map[string]SourceRef
}

func (f *fakeSourceLister) Get(_ context.Context, sourceID string) (SourceRef, error) {
	source, ok := f.sources[sourceID]
	if !ok {
		return SourceRef{}, fmt.Errorf("source %s not found", sourceID)
	}
	return source, nil
}

func (f *fakeSourceLister) ListActive(context.Context) ([]SourceRef, error) {
	var active []SourceRef
	for _, source := range f.sources {
		if source.IsActive {
			active = append(active, source)
		}
	}
	return active, nil
}

// fakeAdmission mirrors the Redis-backed admission: one run per source.
type fakeAdmission struct {
	mu        sync.Mutex
	active    map[string]string // sourceID -> runID
	cancelled map[string]bool   // runID -> cancelled
}

func newFakeAdmission() *fakeAdmission {
	return &fakeAdmission{
		active:    make(map[string]string),
		cancelled: make(map[string]bool),
	}
}

func (f *fakeAdmission) Acquire(_ context.Context, sourceID, runID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.active[sourceID]; held {
		return false, nil
	}
	f.active[sourceID] = runID
	return true, nil
}

func (f *fakeAdmission) Release(_ context.Context, sourceID, runID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[sourceID] == runID {
		delete(f.active, sourceID)
	}
}

func (f *fakeAdmission) RequestCancel(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled[runID] = true
	return nil
}

func (f *fakeAdmission) Cancelled(_ context.Context, runID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[runID]
}

func (f *fakeAdmission) ActiveRun(_ context.Context, sourceID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	runID, ok := f.active[sourceID]
	return runID, ok, nil
}

type engineFixture struct {
	engine    *Engine
	admission *fakeAdmission
	auditor   *fakeAuditor
	store     *memoryJobStore
	lister    *fakeSourceLister
}

func newEngineFixture(t *testing.T, sources ...SourceRef) *engineFixture {
	t.Helper()

	lister := &fakeSourceLister{sources: make(map[string]SourceRef)}
	for _, source := range sources {
		lister.sources[source.ID] = source
	}

	pages := make(map[string]pageResponse)
	for _, source := range sources {
		pages[source.BaseURL] = pageResponse{html: listPage(1, 2, "")}
	}

	of := newFixture(pages)
	admission := newFakeAdmission()

	// Rebuild the orchestrator with the shared admission as its cancel flag.
	of.orchestrator.cancel = admission

	pool, err := work.NewWorkerPool[*RunResult](2, 8)
	if err != nil {
		t.Fatal(err)
	}

	return &engineFixture{
		engine:    NewEngine(lister, of.orchestrator, admission, pool),
		admission: admission,
		auditor:   of.auditor,
		store:     of.store,
		lister:    lister,
	}
}

func activeSource(id string) SourceRef {
	return SourceRef{
		ID:             id,
		Name:           "Test Commission",
		BaseURL:        fmt.Sprintf("https://%s.example.gov.in/jobs", id),
		Config:         []byte(`{}`),
		FrequencyHours: 24,
		IsActive:       true,
	}
}

func TestTriggerSourceRunsToCompletion(t *testing.T) {
	f := newEngineFixture(t, activeSource("src-1"))
	ctx := context.Background()

	f.engine.Start(ctx)

	runID, err := f.engine.TriggerSource(ctx, "src-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if runID == "" {
		t.Fatal("no run id returned")
	}

	// Stop waits for in-flight runs to finish.
	f.engine.Stop()

	if got := f.auditor.finalized[runID]; got != RunStatusCompleted {
		t.Errorf("run status = %s, want completed", got)
	}
	if len(f.store.jobs) != 2 {
		t.Errorf("store holds %d jobs, want 2", len(f.store.jobs))
	}
	if _, held, _ := f.admission.ActiveRun(ctx, "src-1"); held {
		t.Error("admission lock not released after the run")
	}
}

func TestTriggerSourceGates(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)

	notDue := activeSource("src-due")
	notDue.LastScrapedAt = &recent

	inactive := activeSource("src-off")
	inactive.IsActive = false

	f := newEngineFixture(t, notDue, inactive)
	ctx := context.Background()

	if _, err := f.engine.TriggerSource(ctx, "src-due", false); !errors.Is(err, ErrSourceNotDue) {
		t.Errorf("not-due trigger = %v, want ErrSourceNotDue", err)
	}
	if _, err := f.engine.TriggerSource(ctx, "src-off", true); !errors.Is(err, ErrSourceInactive) {
		t.Errorf("inactive trigger = %v, want ErrSourceInactive", err)
	}
	if _, err := f.engine.TriggerSource(ctx, "src-missing", false); err == nil {
		t.Error("unknown source trigger should fail")
	}

	// Force overrides the frequency gate but never the active flag.
	f.engine.Start(ctx)
	if _, err := f.engine.TriggerSource(ctx, "src-due", true); err != nil {
		t.Errorf("forced trigger = %v", err)
	}
	f.engine.Stop()
}

func TestTriggerSourceRejectsConcurrentRun(t *testing.T) {
	f := newEngineFixture(t, activeSource("src-1"))
	ctx := context.Background()

	// Simulate a run already holding the source.
	if ok, _ := f.admission.Acquire(ctx, "src-1", "other-run"); !ok {
		t.Fatal("setup acquire failed")
	}

	if _, err := f.engine.TriggerSource(ctx, "src-1", true); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("trigger = %v, want ErrRunInProgress", err)
	}
}

func TestTriggerDueSkipsNotDue(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)

	due := activeSource("src-due")
	fresh := activeSource("src-fresh")
	fresh.LastScrapedAt = &recent

	f := newEngineFixture(t, due, fresh)
	ctx := context.Background()

	f.engine.Start(ctx)
	runIDs, err := f.engine.TriggerDue(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	f.engine.Stop()

	if len(runIDs) != 1 {
		t.Fatalf("triggered %d runs, want 1", len(runIDs))
	}
	if got := f.auditor.finalized[runIDs[0]]; got != RunStatusCompleted {
		t.Errorf("run status = %s, want completed", got)
	}
}

func TestCancelRun(t *testing.T) {
	f := newEngineFixture(t, activeSource("src-1"))
	ctx := context.Background()

	if _, err := f.engine.CancelRun(ctx, "src-1"); err == nil {
		t.Error("cancel without an active run should fail")
	}

	if ok, _ := f.admission.Acquire(ctx, "src-1", "run-42"); !ok {
		t.Fatal("setup acquire failed")
	}

	runID, err := f.engine.CancelRun(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if runID != "run-42" {
		t.Errorf("cancelled run = %q, want run-42", runID)
	}
	if !f.admission.Cancelled(ctx, "run-42") {
		t.Error("cancellation flag not set")
	}
}
