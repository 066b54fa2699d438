package scraper

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sarkariwatch/scraper-http-service/common/config"
)

type pageResponse struct {
	html string
	err  error
}

// fakeStrategy serves canned pages keyed by URL.
type fakeStrategy struct {
	pages   map[string]pageResponse
	fetched []string
}

func (f *fakeStrategy) Name() StrategyName { return StrategyHTTP }
func (f *fakeStrategy) Available() bool    { return true }
func (f *fakeStrategy) Close()             {}

func (f *fakeStrategy) Fetch(_ context.Context, url string) (*FetchResult, error) {
	f.fetched = append(f.fetched, url)
	resp, ok := f.pages[url]
	if !ok {
		return nil, NewScrapeError(ErrorTypeNetwork, url, fmt.Errorf("no canned page for %s", url))
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return &FetchResult{
		HTML:         resp.html,
		StatusCode:   200,
		ResponseTime: 10 * time.Millisecond,
		FinalURL:     url,
	}, nil
}

// fakeAuditor records the run lifecycle in memory.
type fakeAuditor struct {
	created    []string
	finalized  map[string]RunStatus
	rawRecords int
	errors     []*ScrapeError
	touched    []string
}

func newFakeAuditor() *fakeAuditor {
	return &fakeAuditor{finalized: make(map[string]RunStatus)}
}

func (a *fakeAuditor) CreateRun(_ context.Context, runID, _ string, _ StrategyName, _ time.Time) error {
	a.created = append(a.created, runID)
	return nil
}

func (a *fakeAuditor) FinalizeRun(_ context.Context, runID string, status RunStatus, _ RunStats, _ time.Time) (bool, error) {
	if _, done := a.finalized[runID]; done {
		return false, nil
	}
	a.finalized[runID] = status
	return true, nil
}

func (a *fakeAuditor) RecordRaw(_ context.Context, _, _, _, _ string, _ map[string]string) (bool, error) {
	a.rawRecords++
	return true, nil
}

func (a *fakeAuditor) RecordError(_ context.Context, _ string, scrapeErr *ScrapeError) error {
	a.errors = append(a.errors, scrapeErr)
	return nil
}

func (a *fakeAuditor) TouchSource(_ context.Context, sourceID string, _ time.Time) error {
	a.touched = append(a.touched, sourceID)
	return nil
}

type fakeCancel struct{ cancelled bool }

func (f *fakeCancel) Cancelled(context.Context, string) bool { return f.cancelled }

func listPage(page, count int, nextURL string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for i := 1; i <= count; i++ {
		fmt.Fprintf(&b, `<li><a href="/jobs/p%d-%d">Recruitment Notice %d-%d of 2025</a></li>`, page, i, page, i)
	}
	b.WriteString("</ul>")
	if nextURL != "" {
		fmt.Fprintf(&b, `<a class="next" href="%s">Next</a>`, nextURL)
	}
	b.WriteString("</body></html>")
	return b.String()
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	auditor      *fakeAuditor
	store        *memoryJobStore
	cancel       *fakeCancel
	strategy     *fakeStrategy
}

func newFixture(pages map[string]pageResponse) *orchestratorFixture {
	f := &orchestratorFixture{
		auditor:  newFakeAuditor(),
		store:    newMemoryJobStore(),
		cancel:   &fakeCancel{},
		strategy: &fakeStrategy{pages: pages},
	}
	defaults := config.ScraperConfig{
		RequestsPerMinute: 600,
		BrowserRPM:        600,
		MaxRetries:        1,
		TimeoutSeconds:    5,
		MaxPages:          10,
	}
	f.orchestrator = NewOrchestrator(
		f.auditor,
		NewReconciler(f.store),
		f.cancel,
		NewRateLimiterRegistry(),
		nil,
		defaults,
		func(StrategyDeps) FetchStrategy { return f.strategy },
	)
	return f
}

func testSource(configJSON string) SourceRef {
	return SourceRef{
		ID:       "src-1",
		Name:     "Test Commission",
		BaseURL:  "https://example.gov.in/jobs",
		Config:   []byte(configJSON),
		IsActive: true,
	}
}

const nextLinkConfig = `{"pagination":{"type":"next_link","next_selector":"a.next"}}`

func TestRunWalksPagination(t *testing.T) {
	f := newFixture(map[string]pageResponse{
		"https://example.gov.in/jobs":        {html: listPage(1, 5, "/jobs?page=2")},
		"https://example.gov.in/jobs?page=2": {html: listPage(2, 5, "")},
	})

	result, err := f.orchestrator.Run(context.Background(), testSource(nextLinkConfig), "run-1")
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != RunStatusCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.Stats.PagesScraped != 2 {
		t.Errorf("pages scraped = %d, want 2", result.Stats.PagesScraped)
	}
	if result.Stats.JobsFound != 10 {
		t.Errorf("jobs found = %d, want 10", result.Stats.JobsFound)
	}
	if result.Stats.JobsCreated != 10 {
		t.Errorf("jobs created = %d, want 10", result.Stats.JobsCreated)
	}
	if f.auditor.rawRecords != 10 {
		t.Errorf("raw records = %d, want 10", f.auditor.rawRecords)
	}
	if f.auditor.finalized["run-1"] != RunStatusCompleted {
		t.Errorf("finalized status = %s", f.auditor.finalized["run-1"])
	}
	if len(f.auditor.touched) != 1 {
		t.Errorf("source touched %d times, want 1", len(f.auditor.touched))
	}
}

func TestRunRescrapeSkipsStoredJobs(t *testing.T) {
	pages := map[string]pageResponse{
		"https://example.gov.in/jobs":        {html: listPage(1, 5, "/jobs?page=2")},
		"https://example.gov.in/jobs?page=2": {html: listPage(2, 5, "")},
	}

	f := newFixture(pages)
	if _, err := f.orchestrator.Run(context.Background(), testSource(nextLinkConfig), "run-1"); err != nil {
		t.Fatal(err)
	}

	// Second run over unchanged pages against the same store.
	result, err := f.orchestrator.Run(context.Background(), testSource(nextLinkConfig), "run-2")
	if err != nil {
		t.Fatal(err)
	}

	if result.Stats.JobsCreated != 0 {
		t.Errorf("rescrape created %d jobs, want 0", result.Stats.JobsCreated)
	}
	if result.Stats.JobsSkipped != 10 {
		t.Errorf("rescrape skipped %d jobs, want 10", result.Stats.JobsSkipped)
	}
	if len(f.store.jobs) != 10 {
		t.Errorf("store holds %d jobs, want 10", len(f.store.jobs))
	}
}

func TestRunFailsOnFirstPage(t *testing.T) {
	f := newFixture(map[string]pageResponse{
		"https://example.gov.in/jobs": {err: NewScrapeError(ErrorTypeNetwork, "https://example.gov.in/jobs", fmt.Errorf("connection refused"))},
	})

	result, err := f.orchestrator.Run(context.Background(), testSource(nextLinkConfig), "run-1")
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != RunStatusFailed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
	if result.Stats.ErrorCount == 0 {
		t.Error("error count = 0, want at least 1")
	}
	if f.auditor.finalized["run-1"] != RunStatusFailed {
		t.Errorf("finalized status = %s, want failed", f.auditor.finalized["run-1"])
	}
	if len(f.auditor.touched) != 0 {
		t.Error("failed run must not touch the source's last scraped timestamp")
	}
}

func TestRunSystemicErrorFailsMidRun(t *testing.T) {
	f := newFixture(map[string]pageResponse{
		"https://example.gov.in/jobs":        {html: listPage(1, 5, "/jobs?page=2")},
		"https://example.gov.in/jobs?page=2": {err: &SystemicError{Err: fmt.Errorf("proxy pool exhausted")}},
	})

	result, err := f.orchestrator.Run(context.Background(), testSource(nextLinkConfig), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != RunStatusFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	if result.Stats.PagesScraped != 1 {
		t.Errorf("pages scraped = %d, want 1", result.Stats.PagesScraped)
	}
}

func TestRunMidPageFailureEndsNextLinkWalk(t *testing.T) {
	// A plain fetch failure past page 1 is not fatal, but without the
	// page's markup a next-link walk has nowhere to go.
	f := newFixture(map[string]pageResponse{
		"https://example.gov.in/jobs":        {html: listPage(1, 5, "/jobs?page=2")},
		"https://example.gov.in/jobs?page=2": {err: NewScrapeError(ErrorTypeTimeout, "https://example.gov.in/jobs?page=2", fmt.Errorf("deadline exceeded"))},
	})

	result, err := f.orchestrator.Run(context.Background(), testSource(nextLinkConfig), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != RunStatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
	if result.Stats.PagesScraped != 1 {
		t.Errorf("pages scraped = %d, want 1", result.Stats.PagesScraped)
	}
	if result.Stats.ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", result.Stats.ErrorCount)
	}
}

func TestRunPageParamSkipsFailedPage(t *testing.T) {
	cfg := `{"pagination":{"type":"page_param","page_param":"page","max_pages":3}}`
	f := newFixture(map[string]pageResponse{
		"https://example.gov.in/jobs?page=1": {html: listPage(1, 2, "")},
		"https://example.gov.in/jobs?page=2": {err: NewScrapeError(ErrorTypeNetwork, "https://example.gov.in/jobs?page=2", fmt.Errorf("reset"))},
		"https://example.gov.in/jobs?page=3": {html: listPage(3, 2, "")},
	})

	result, err := f.orchestrator.Run(context.Background(), testSource(cfg), "run-1")
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != RunStatusCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.Stats.PagesScraped != 2 {
		t.Errorf("pages scraped = %d, want 2 (numbered walk continues past a bad page)", result.Stats.PagesScraped)
	}
	if result.Stats.JobsCreated != 4 {
		t.Errorf("jobs created = %d, want 4", result.Stats.JobsCreated)
	}
}

func TestRunStopsAfterRepeatedEmptyPages(t *testing.T) {
	empty := "<html><body><p>nothing here</p></body></html>"
	cfg := `{"pagination":{"type":"page_param","page_param":"page","max_pages":10}}`

	pages := make(map[string]pageResponse)
	for i := 1; i <= 10; i++ {
		pages[fmt.Sprintf("https://example.gov.in/jobs?page=%d", i)] = pageResponse{html: empty}
	}

	f := newFixture(pages)
	result, err := f.orchestrator.Run(context.Background(), testSource(cfg), "run-1")
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != RunStatusCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.Stats.PagesScraped != maxZeroYieldPages {
		t.Errorf("pages scraped = %d, want %d", result.Stats.PagesScraped, maxZeroYieldPages)
	}

	// Every container-less page leaves a trace in the error trail, so an
	// empty result is never silent.
	if len(f.auditor.errors) != maxZeroYieldPages {
		t.Fatalf("recorded %d errors, want %d", len(f.auditor.errors), maxZeroYieldPages)
	}
	for _, scrapeErr := range f.auditor.errors {
		if scrapeErr.Type != ErrorTypeParsing {
			t.Errorf("error type = %s, want parsing", scrapeErr.Type)
		}
	}
}

func TestRunStaleContainerSelectorStillYields(t *testing.T) {
	f := newFixture(map[string]pageResponse{
		"https://example.gov.in/jobs": {html: listPage(1, 2, "")},
	})

	result, err := f.orchestrator.Run(context.Background(), testSource(`{"job_container":"div.gone"}`), "run-1")
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != RunStatusCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.Stats.JobsCreated != 2 {
		t.Errorf("jobs created = %d, want 2 via generic fallback containers", result.Stats.JobsCreated)
	}
}

func TestRunCancellation(t *testing.T) {
	f := newFixture(map[string]pageResponse{
		"https://example.gov.in/jobs": {html: listPage(1, 5, "")},
	})
	f.cancel.cancelled = true

	result, err := f.orchestrator.Run(context.Background(), testSource(nextLinkConfig), "run-1")
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != RunStatusCancelled {
		t.Fatalf("status = %s, want cancelled", result.Status)
	}
	if result.Stats.PagesScraped != 0 {
		t.Errorf("pages scraped = %d, want 0", result.Stats.PagesScraped)
	}
	if f.auditor.finalized["run-1"] != RunStatusCancelled {
		t.Errorf("finalized status = %s, want cancelled", f.auditor.finalized["run-1"])
	}
}

func TestRunInvalidRecordsSkippedNotFatal(t *testing.T) {
	page := `<html><body><ul>
<li><a href="/jobs/good">Recruitment Notice Valid 2025</a></li>
<li><a href="/jobs/bad">Short</a></li>
</ul></body></html>`

	f := newFixture(map[string]pageResponse{
		"https://example.gov.in/jobs": {html: page},
	})

	result, err := f.orchestrator.Run(context.Background(), testSource(`{}`), "run-1")
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != RunStatusCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.Stats.JobsFound != 2 {
		t.Errorf("jobs found = %d, want 2", result.Stats.JobsFound)
	}
	if result.Stats.JobsCreated != 1 {
		t.Errorf("jobs created = %d, want 1", result.Stats.JobsCreated)
	}
	if result.Stats.JobsSkipped != 1 {
		t.Errorf("jobs skipped = %d, want 1", result.Stats.JobsSkipped)
	}
	if len(f.auditor.errors) != 1 {
		t.Errorf("recorded %d errors, want 1", len(f.auditor.errors))
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	f := newFixture(nil)

	_, err := f.orchestrator.Run(context.Background(), testSource(`{"pagination":{"type":"next_link"}}`), "run-1")
	if err == nil {
		t.Fatal("expected config validation error")
	}
	if len(f.auditor.created) != 0 {
		t.Error("no run record should exist for an unparseable config")
	}
}

func TestRunGeneratesRunID(t *testing.T) {
	f := newFixture(map[string]pageResponse{
		"https://example.gov.in/jobs": {html: listPage(1, 1, "")},
	})

	result, err := f.orchestrator.Run(context.Background(), testSource(`{}`), "")
	if err != nil {
		t.Fatal(err)
	}
	if result.RunID == "" {
		t.Error("run id not generated")
	}
}
