package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sarkariwatch/scraper-http-service/common/work"
)

var (
	// ErrSourceNotDue means the source's scrape frequency has not elapsed.
	ErrSourceNotDue = errors.New("source is not due for scraping")
	// ErrRunInProgress means the source already has an active run.
	ErrRunInProgress = errors.New("a scrape run is already in progress for this source")
	// ErrSourceInactive means the source is disabled.
	ErrSourceInactive = errors.New("source is inactive")
)

// SourceLister loads sources for triggering.
type SourceLister interface {
	Get(ctx context.Context, sourceID string) (SourceRef, error)
	ListActive(ctx context.Context) ([]SourceRef, error)
}

// RunAdmission controls which runs may start and carries the cancellation
// flag for running ones.
type RunAdmission interface {
	CancelFlag
	Acquire(ctx context.Context, sourceID, runID string) (bool, error)
	Release(ctx context.Context, sourceID, runID string)
	RequestCancel(ctx context.Context, runID string) error
	ActiveRun(ctx context.Context, sourceID string) (string, bool, error)
}

// Engine admits scrape runs and executes them on a bounded worker pool.
// Many sources scrape concurrently; one source never scrapes twice at once.
type Engine struct {
	sources      SourceLister
	orchestrator *Orchestrator
	admission    RunAdmission
	pool         *work.Pool[*RunResult]
}

// NewEngine creates the engine. The pool must not be started yet.
func NewEngine(sources SourceLister, orchestrator *Orchestrator, admission RunAdmission, pool *work.Pool[*RunResult]) *Engine {
	return &Engine{
		sources:      sources,
		orchestrator: orchestrator,
		admission:    admission,
		pool:         pool,
	}
}

// Start launches the worker pool and the goroutine draining its results.
func (e *Engine) Start(ctx context.Context) {
	e.pool.Start(ctx, "scrape-runs")
	go e.drainResults()
}

// Stop shuts the worker pool down, letting in-flight runs finish.
func (e *Engine) Stop() {
	e.pool.Stop()
}

func (e *Engine) drainResults() {
	for result := range e.pool.Results() {
		if result.Error != nil {
			log.Error().Err(result.Error).Str("taskID", result.TaskID).Msg("Scrape run task failed")
		}
	}
}

// TriggerSource starts a run for one source, enforcing the frequency gate
// unless force is set. Returns the run ID of the enqueued run.
func (e *Engine) TriggerSource(ctx context.Context, sourceID string, force bool) (string, error) {
	source, err := e.sources.Get(ctx, sourceID)
	if err != nil {
		return "", fmt.Errorf("loading source %s: %w", sourceID, err)
	}

	if !source.IsActive {
		return "", ErrSourceInactive
	}
	if !force && !source.Due(time.Now()) {
		return "", ErrSourceNotDue
	}

	return e.enqueue(ctx, source)
}

// TriggerDue enqueues a run for every active source whose frequency has
// elapsed. Returns the run IDs started.
func (e *Engine) TriggerDue(ctx context.Context, force bool) ([]string, error) {
	sources, err := e.sources.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	now := time.Now()
	var runIDs []string
	for _, source := range sources {
		if !force && !source.Due(now) {
			continue
		}
		runID, err := e.enqueue(ctx, source)
		if err != nil {
			if errors.Is(err, ErrRunInProgress) {
				continue
			}
			log.Error().Err(err).Str("sourceID", source.ID).Msg("Failed to enqueue scrape run")
			continue
		}
		runIDs = append(runIDs, runID)
	}
	return runIDs, nil
}

// CancelRun flags the source's active run for cancellation.
func (e *Engine) CancelRun(ctx context.Context, sourceID string) (string, error) {
	runID, active, err := e.admission.ActiveRun(ctx, sourceID)
	if err != nil {
		return "", fmt.Errorf("looking up active run: %w", err)
	}
	if !active {
		return "", fmt.Errorf("no active run for source %s", sourceID)
	}
	if err := e.admission.RequestCancel(ctx, runID); err != nil {
		return "", fmt.Errorf("requesting cancellation: %w", err)
	}
	return runID, nil
}

func (e *Engine) enqueue(ctx context.Context, source SourceRef) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating run id: %w", err)
	}
	runID := id.String()

	ok, err := e.admission.Acquire(ctx, source.ID, runID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrRunInProgress
	}

	task := runTask{engine: e, source: source, runID: runID}
	if err := e.pool.AddTaskNonBlocking(&task); err != nil {
		e.admission.Release(ctx, source.ID, runID)
		return "", fmt.Errorf("enqueueing run: %w", err)
	}

	return runID, nil
}

// runTask adapts one scrape run to the worker pool's Executor interface.
type runTask struct {
	engine *Engine
	source SourceRef
	runID  string
}

func (t *runTask) ExecutorID() string { return t.runID }

func (t *runTask) Execute(ctx context.Context) (*RunResult, error) {
	defer t.engine.admission.Release(context.WithoutCancel(ctx), t.source.ID, t.runID)
	return t.engine.orchestrator.Run(ctx, t.source, t.runID)
}

func (t *runTask) OnError(err error) {
	log.Error().Err(err).
		Str("runID", t.runID).
		Str("sourceID", t.source.ID).
		Msg("Scrape run errored")
}

// Timeout returns 0 so the pool default applies.
func (t *runTask) Timeout() time.Duration { return 0 }
