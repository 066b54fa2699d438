package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sarkariwatch/scraper-http-service/common/config"
	"github.com/sarkariwatch/scraper-http-service/common/storage"
)

// RunStatus is a scrape run's lifecycle state.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// consecutive zero-yield pages tolerated before pagination is presumed
// misconfigured
const maxZeroYieldPages = 3

// RunStats aggregates what happened during a run.
type RunStats struct {
	PagesScraped  int
	RequestsMade  int
	AvgResponseMs int
	JobsFound     int
	JobsCreated   int
	JobsUpdated   int
	JobsSkipped   int
	ErrorCount    int
}

// RunResult is the summary returned to the trigger, produced for every run
// including failed ones.
type RunResult struct {
	RunID    string
	SourceID string
	Status   RunStatus
	Strategy StrategyName
	Duration time.Duration
	Stats    RunStats
}

// SourceRef is the slice of a stored source the scraping engine needs.
type SourceRef struct {
	ID             string
	Name           string
	BaseURL        string
	Config         []byte
	FrequencyHours int
	LastScrapedAt  *time.Time
	IsActive       bool
}

// Due reports whether the source's scrape frequency has elapsed.
func (s SourceRef) Due(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.LastScrapedAt == nil {
		return true
	}
	return now.Sub(*s.LastScrapedAt) >= time.Duration(s.FrequencyHours)*time.Hour
}

// Auditor persists the run lifecycle: the run record itself, raw extracted
// records, and the error trail.
type Auditor interface {
	CreateRun(ctx context.Context, runID, sourceID string, strategy StrategyName, startedAt time.Time) error
	// FinalizeRun moves the run to a terminal status. It must be a no-op
	// returning false if the run is already terminal.
	FinalizeRun(ctx context.Context, runID string, status RunStatus, stats RunStats, completedAt time.Time) (bool, error)
	// RecordRaw stores one raw extracted record, reporting false when the
	// same content from the same source was already archived.
	RecordRaw(ctx context.Context, runID, sourceID, pageURL, contentHash string, fields map[string]string) (bool, error)
	RecordError(ctx context.Context, runID string, scrapeErr *ScrapeError) error
	TouchSource(ctx context.Context, sourceID string, at time.Time) error
}

// CancelFlag lets an external caller stop a run between pages.
type CancelFlag interface {
	Cancelled(ctx context.Context, runID string) bool
}

// StrategyFactory builds the fetch strategy for a run.
type StrategyFactory func(deps StrategyDeps) FetchStrategy

// Orchestrator owns the per-source scrape run.
type Orchestrator struct {
	auditor    Auditor
	reconciler *Reconciler
	cancel     CancelFlag
	limiter    *RateLimiterRegistry
	snapshots  *storage.SnapshotStore
	defaults   config.ScraperConfig
	strategies StrategyFactory
}

// NewOrchestrator wires an orchestrator. snapshots may be nil to disable
// page archiving, and strategies may be nil to use the default selection.
func NewOrchestrator(
	auditor Auditor,
	reconciler *Reconciler,
	cancel CancelFlag,
	limiter *RateLimiterRegistry,
	snapshots *storage.SnapshotStore,
	defaults config.ScraperConfig,
	strategies StrategyFactory,
) *Orchestrator {
	if strategies == nil {
		strategies = SelectStrategy
	}
	return &Orchestrator{
		auditor:    auditor,
		reconciler: reconciler,
		cancel:     cancel,
		limiter:    limiter,
		snapshots:  snapshots,
		defaults:   defaults,
		strategies: strategies,
	}
}

// Run executes one scrape of the source under the given run ID. The caller
// owns run admission (locking out concurrent runs of the same source); this
// method owns everything from strategy selection to the terminal state.
// A RunResult comes back even when the run fails.
func (o *Orchestrator) Run(ctx context.Context, source SourceRef, runID string) (*RunResult, error) {
	cfg, err := ParseSourceConfig(source.Config)
	if err != nil {
		return nil, fmt.Errorf("source %s has invalid config: %w", source.ID, err)
	}
	cfg = cfg.WithDefaults(o.defaults)

	strategy := o.strategies(StrategyDeps{
		SourceID: source.ID,
		Config:   cfg,
		Limiter:  o.limiter,
		Proxies:  NewProxyRotator(cfg.Proxies),
	})
	defer strategy.Close()

	if runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generating run id: %w", err)
		}
		runID = id.String()
	}

	startedAt := time.Now()
	if err := o.auditor.CreateRun(ctx, runID, source.ID, strategy.Name(), startedAt); err != nil {
		return nil, fmt.Errorf("creating scrape run: %w", err)
	}

	log.Info().
		Str("runID", runID).
		Str("sourceID", source.ID).
		Str("source", source.Name).
		Str("strategy", string(strategy.Name())).
		Msg("Scrape run started")

	result := &RunResult{
		RunID:    runID,
		SourceID: source.ID,
		Strategy: strategy.Name(),
	}

	status := o.runPages(ctx, source, cfg, strategy, runID, &result.Stats)

	// The run record must reach a terminal state exactly once, whatever
	// happened above.
	completedAt := time.Now()
	result.Status = status
	result.Duration = completedAt.Sub(startedAt)

	if ok, err := o.auditor.FinalizeRun(ctx, runID, status, result.Stats, completedAt); err != nil {
		log.Error().Err(err).Str("runID", runID).Msg("Failed to finalize scrape run")
	} else if !ok {
		log.Warn().Str("runID", runID).Msg("Scrape run was already finalized")
	}

	if status == RunStatusCompleted {
		if err := o.auditor.TouchSource(ctx, source.ID, completedAt); err != nil {
			log.Warn().Err(err).Str("sourceID", source.ID).Msg("Failed to update last scraped timestamp")
		}
	}

	log.Info().
		Str("runID", runID).
		Str("status", string(status)).
		Int("pages", result.Stats.PagesScraped).
		Int("found", result.Stats.JobsFound).
		Int("created", result.Stats.JobsCreated).
		Int("updated", result.Stats.JobsUpdated).
		Int("skipped", result.Stats.JobsSkipped).
		Int("errors", result.Stats.ErrorCount).
		Msg("Scrape run finished")

	return result, nil
}

// runPages drives the pagination loop and returns the terminal status.
// Panics in strategy or extraction code are converted to a failed run.
func (o *Orchestrator) runPages(ctx context.Context, source SourceRef, cfg SourceConfig, strategy FetchStrategy, runID string, stats *RunStats) (status RunStatus) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("runID", runID).Interface("panic", r).Msg("Scrape run panicked")
			o.recordError(ctx, runID, stats, NewScrapeError(ErrorTypeOther, "", fmt.Errorf("panic: %v", r)))
			status = RunStatusFailed
		}
	}()

	pageURL := cfg.ListURL
	if pageURL == "" {
		pageURL = source.BaseURL
	}

	pageNum := cfg.Pagination.StartPage
	if cfg.Pagination.Type == "page_param" {
		pageURL = setPageParam(pageURL, cfg.Pagination.PageParam, pageNum)
	}

	var totalResponse time.Duration
	zeroYield := 0

	for page := 1; ; page++ {
		if o.cancel != nil && o.cancel.Cancelled(ctx, runID) {
			log.Info().Str("runID", runID).Int("page", page).Msg("Scrape run cancelled")
			return RunStatusCancelled
		}

		fetched, err := strategy.Fetch(ctx, pageURL)
		stats.RequestsMade++
		if err != nil {
			o.recordError(ctx, runID, stats, asScrapeError(err, pageURL))

			if page == 1 || IsSystemic(err) {
				// Nothing was gathered, or the strategy itself is
				// broken. Either way the run cannot stand.
				return RunStatusFailed
			}

			// A mid-run page failure skips the page. Without its
			// markup a next-link walk cannot continue, but numbered
			// pagination can.
			if cfg.Pagination.Type != "page_param" {
				break
			}
			pageNum++
			pageURL = setPageParam(pageURL, cfg.Pagination.PageParam, pageNum)
			if page >= cfg.Pagination.MaxPages {
				break
			}
			continue
		}

		stats.PagesScraped++
		totalResponse += fetched.ResponseTime

		if o.snapshots.Enabled() {
			o.snapshots.SavePage(ctx, source.ID, runID, page, fetched.HTML)
		}

		valid := o.processPage(ctx, source.ID, cfg, runID, pageURL, fetched.HTML, stats)
		if valid == 0 {
			zeroYield++
		} else {
			zeroYield = 0
		}

		if zeroYield >= maxZeroYieldPages {
			log.Warn().Str("runID", runID).Int("page", page).Msg("Stopping pagination after repeated empty pages")
			break
		}
		if page >= cfg.Pagination.MaxPages {
			break
		}

		next := o.nextPage(cfg, fetched.HTML, pageURL, &pageNum)
		if next == "" {
			break
		}
		pageURL = next
	}

	if stats.PagesScraped > 0 {
		stats.AvgResponseMs = int(totalResponse.Milliseconds()) / stats.PagesScraped
	}
	return RunStatusCompleted
}

// processPage extracts, normalizes, scores, and reconciles every container on
// one page. Returns the number of records that survived validation.
func (o *Orchestrator) processPage(ctx context.Context, sourceID string, cfg SourceConfig, runID, pageURL, html string, stats *RunStats) int {
	extractor, err := NewExtractor(cfg, pageURL)
	if err != nil {
		o.recordError(ctx, runID, stats, asScrapeError(err, pageURL))
		return 0
	}

	postings, err := extractor.Extract(html)
	if err != nil {
		o.recordError(ctx, runID, stats, asScrapeError(err, pageURL))
		return 0
	}
	stats.JobsFound += len(postings)

	// Normalization is pure, so fan it out; reconciliation stays in
	// container order below.
	type normalized struct {
		job *NormalizedJob
		err error
	}
	results := make([]normalized, len(postings))
	var wg sync.WaitGroup
	for i := range postings {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job, err := Normalize(postings[i])
			results[i] = normalized{job: job, err: err}
		}(i)
	}
	wg.Wait()

	valid := 0
	for i, res := range results {
		if res.err != nil {
			// Dropped records count as skipped, not as errors that
			// fail the run.
			o.recordError(ctx, runID, stats, asScrapeError(res.err, postings[i].SourceURL))
			stats.JobsSkipped++
			continue
		}
		valid++

		if _, err := o.auditor.RecordRaw(ctx, runID, sourceID, postings[i].SourceURL, res.job.ContentHash, postings[i].Fields); err != nil {
			log.Warn().Err(err).Str("runID", runID).Msg("Failed to archive raw record")
		}

		outcome, err := o.reconciler.Reconcile(ctx, sourceID, res.job)
		if err != nil {
			o.recordError(ctx, runID, stats, NewScrapeError(ErrorTypeOther, res.job.SourceURL, err))
			continue
		}
		switch outcome {
		case OutcomeCreated:
			stats.JobsCreated++
		case OutcomeUpdated:
			stats.JobsUpdated++
		case OutcomeSkipped:
			stats.JobsSkipped++
		}
	}
	return valid
}

func (o *Orchestrator) nextPage(cfg SourceConfig, html, currentURL string, pageNum *int) string {
	switch cfg.Pagination.Type {
	case "next_link":
		return cfg.nextFromHTML(html, currentURL)
	case "page_param":
		*pageNum++
		return setPageParam(currentURL, cfg.Pagination.PageParam, *pageNum)
	default:
		return ""
	}
}

// nextFromHTML resolves the configured next-page link against the current
// page URL.
func (c SourceConfig) nextFromHTML(html, currentURL string) string {
	extractor, err := NewExtractor(c, currentURL)
	if err != nil {
		return ""
	}
	next := extractor.NextPageURL(html)
	if next == currentURL {
		// A next link pointing at itself would loop forever.
		return ""
	}
	return next
}

func (o *Orchestrator) recordError(ctx context.Context, runID string, stats *RunStats, scrapeErr *ScrapeError) {
	stats.ErrorCount++
	if err := o.auditor.RecordError(ctx, runID, scrapeErr); err != nil {
		log.Warn().Err(err).Str("runID", runID).Msg("Failed to record scrape error")
	}
}

func asScrapeError(err error, url string) *ScrapeError {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(Classify(err), url, err)
}

func setPageParam(rawURL, param string, page int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
