package scraper

import (
	"errors"
	"testing"
)

const listingPage = `
<html><body>
<table>
  <tr><th>Post</th><th>Last Date</th></tr>
  <tr>
    <td><a href="/jobs/je-2025">Junior Engineer Recruitment 2025</a></td>
    <td class="last-date">01/02/2025</td>
  </tr>
  <tr>
    <td><a href="https://other.gov.in/clerk">Clerk Recruitment 2025</a></td>
    <td class="last-date">15/03/2025</td>
  </tr>
</table>
<a class="next" href="/jobs?page=2">Next</a>
</body></html>`

func mustExtractor(t *testing.T, config SourceConfig, pageURL string) *Extractor {
	t.Helper()
	e, err := NewExtractor(config, pageURL)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestExtractGenericContainers(t *testing.T) {
	// No job_container configured: the table-row fallback should pick up
	// both data rows and skip the header row, which has no link.
	e := mustExtractor(t, SourceConfig{}, "https://example.gov.in/jobs")

	postings, err := e.Extract(listingPage)
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 2 {
		t.Fatalf("got %d postings, want 2", len(postings))
	}

	if postings[0].Title != "Junior Engineer Recruitment 2025" {
		t.Errorf("title = %q", postings[0].Title)
	}
	if postings[0].SourceURL != "https://example.gov.in/jobs/je-2025" {
		t.Errorf("relative link not resolved: %q", postings[0].SourceURL)
	}
	if postings[1].SourceURL != "https://other.gov.in/clerk" {
		t.Errorf("absolute link altered: %q", postings[1].SourceURL)
	}
	if postings[0].Fields["last_date"] != "01/02/2025" {
		t.Errorf("last_date = %q", postings[0].Fields["last_date"])
	}
}

func TestExtractConfiguredContainer(t *testing.T) {
	page := `
<div class="vacancy"><span class="heading"><a href="/a">Assistant Recruitment 2025</a></span></div>
<div class="vacancy"><span class="heading"><a href="/b">Stenographer Recruitment 2025</a></span></div>
<table><tr><td><a href="/noise">Should not match</a></td></tr></table>`

	config := SourceConfig{
		JobContainer: "div.vacancy",
		Selectors: map[string][]string{
			"title": {".heading a"},
		},
	}
	e := mustExtractor(t, config, "https://example.gov.in/jobs")

	postings, err := e.Extract(page)
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 2 {
		t.Fatalf("got %d postings, want 2", len(postings))
	}
	if postings[1].SourceURL != "https://example.gov.in/b" {
		t.Errorf("source url = %q", postings[1].SourceURL)
	}
}

func TestExtractStaleContainerFallsBackToGeneric(t *testing.T) {
	// A configured selector the site no longer matches must not blank the
	// page: the generic containers pick up the table rows instead.
	config := SourceConfig{JobContainer: "div.does-not-exist"}
	e := mustExtractor(t, config, "https://example.gov.in/jobs")

	postings, err := e.Extract(listingPage)
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 2 {
		t.Fatalf("got %d postings, want 2 via generic fallback containers", len(postings))
	}
	if postings[0].Title != "Junior Engineer Recruitment 2025" {
		t.Errorf("title = %q", postings[0].Title)
	}
}

func TestExtractNoContainersIsParsingError(t *testing.T) {
	config := SourceConfig{JobContainer: "div.does-not-exist"}
	e := mustExtractor(t, config, "https://example.gov.in/jobs")

	postings, err := e.Extract("<html><body><p>No vacancies today.</p></body></html>")
	if postings != nil {
		t.Errorf("got %d postings, want none", len(postings))
	}

	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		t.Fatalf("err = %v, want a ScrapeError", err)
	}
	if scrapeErr.Type != ErrorTypeParsing {
		t.Errorf("error type = %s, want parsing", scrapeErr.Type)
	}
	if scrapeErr.Selector != "div.does-not-exist" {
		t.Errorf("error selector = %q", scrapeErr.Selector)
	}
}

func TestExtractDropsIncompleteContainers(t *testing.T) {
	page := `
<ul>
  <li><a href="/ok">Valid Posting With A Title</a></li>
  <li><a href="/empty"></a></li>
  <li><a href="javascript:void(0)">Scripted Link Posting Here</a></li>
</ul>`

	e := mustExtractor(t, SourceConfig{}, "https://example.gov.in/jobs")
	postings, err := e.Extract(page)
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 1 {
		t.Fatalf("got %d postings, want 1", len(postings))
	}
	if postings[0].SourceURL != "https://example.gov.in/ok" {
		t.Errorf("source url = %q", postings[0].SourceURL)
	}
}

func TestExtractLinkFieldsTakeHref(t *testing.T) {
	page := `
<div class="job-listing">
  <a href="/jobs/42">Forest Guard Recruitment 2025</a>
  <a class="apply" href="/apply/42">Apply Online</a>
  <a href="/notice-42.pdf">Notification</a>
</div>`

	e := mustExtractor(t, SourceConfig{}, "https://example.gov.in/jobs")
	postings, err := e.Extract(page)
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 1 {
		t.Fatalf("got %d postings, want 1", len(postings))
	}

	if got := postings[0].Fields["application_link"]; got != "https://example.gov.in/apply/42" {
		t.Errorf("application_link = %q", got)
	}
	if got := postings[0].Fields["notification_pdf"]; got != "https://example.gov.in/notice-42.pdf" {
		t.Errorf("notification_pdf = %q", got)
	}
}

func TestExtractBlankPage(t *testing.T) {
	// An empty body is no signal at all, not a selector fault.
	e := mustExtractor(t, SourceConfig{}, "https://example.gov.in/jobs")
	postings, err := e.Extract("<html><body></body></html>")
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 0 {
		t.Errorf("got %d postings, want 0", len(postings))
	}
}

func TestNextPageURL(t *testing.T) {
	config := SourceConfig{
		Pagination: PaginationConfig{Type: "next_link", NextSelector: "a.next"},
	}
	e := mustExtractor(t, config, "https://example.gov.in/jobs")

	if got := e.NextPageURL(listingPage); got != "https://example.gov.in/jobs?page=2" {
		t.Errorf("next page = %q", got)
	}
	if got := e.NextPageURL("<html><body></body></html>"); got != "" {
		t.Errorf("next page on last page = %q, want empty", got)
	}
}

func TestNextPageURLNoSelector(t *testing.T) {
	e := mustExtractor(t, SourceConfig{}, "https://example.gov.in/jobs")
	if got := e.NextPageURL(listingPage); got != "" {
		t.Errorf("next page without selector = %q, want empty", got)
	}
}
