package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// RawPosting is one job posting as lifted from the page, before
// normalization. Fields holds whatever the selector chains matched.
type RawPosting struct {
	Title     string
	SourceURL string
	Fields    map[string]string
}

// Generic container selectors tried when a source does not configure
// job_container. Government listing pages are overwhelmingly tables or lists
// of links.
var genericContainerSelectors = []string{
	"table tr:has(a)",
	"ul li:has(a)",
	"div.job-listing",
	"article:has(a)",
}

// Default selector chains per field, used when the source config does not
// override them. Chains are ordered from most to least specific.
var defaultFieldSelectors = map[string][]string{
	"title":             {".job-title", "h3 a", "h2 a", "a"},
	"description":       {".job-description", ".description", "p"},
	"department":        {".department", ".organization", ".dept"},
	"total_posts":       {".total-posts", ".posts", ".vacancies"},
	"qualification":     {".qualification", ".eligibility"},
	"notification_date": {".notification-date", ".posted-date", "time"},
	"last_date":         {".last-date", ".closing-date", ".deadline"},
	"exam_date":         {".exam-date"},
	"fee":               {".fee", ".application-fee"},
	"salary":            {".salary", ".pay-scale"},
	"age_limit":         {".age-limit", ".age"},
	"location":          {".location", ".place", ".state"},
	"application_link":  {"a.apply", ".apply-link a", "a[href*='apply']"},
	"notification_pdf":  {"a[href$='.pdf']"},
}

// Extractor pulls raw postings out of a fetched page using the source's
// selector configuration.
type Extractor struct {
	config  SourceConfig
	baseURL *url.URL
}

// NewExtractor creates an extractor for one source. pageURL anchors relative
// links found in the document.
func NewExtractor(config SourceConfig, pageURL string) (*Extractor, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, NewScrapeError(ErrorTypeParsing, pageURL, fmt.Errorf("parsing page url: %w", err))
	}
	return &Extractor{config: config, baseURL: base}, nil
}

// Extract parses html and returns every posting found. Containers without a
// title or link are dropped rather than producing half-empty records.
func (e *Extractor) Extract(html string) ([]RawPosting, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewScrapeError(ErrorTypeParsing, e.baseURL.String(), fmt.Errorf("parsing document: %w", err))
	}

	containers := e.findContainers(doc)
	if containers == nil {
		// A blank response carries no signal. A page with content where
		// every container selector missed is a selector fault and goes
		// into the error trail.
		if doc.Find("body").Children().Length() == 0 {
			return nil, nil
		}
		return nil, &ScrapeError{
			Type:     ErrorTypeParsing,
			URL:      e.baseURL.String(),
			Selector: e.config.JobContainer,
			Err:      errors.New("no job containers matched"),
		}
	}

	var postings []RawPosting
	containers.Each(func(_ int, sel *goquery.Selection) {
		posting := e.extractOne(sel)
		if posting != nil {
			postings = append(postings, *posting)
		}
	})

	return postings, nil
}

// NextPageURL resolves the next-page link for next_link pagination. Returns
// "" when there is no next page.
func (e *Extractor) NextPageURL(html string) string {
	sel := e.config.Pagination.NextSelector
	if sel == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	href, ok := doc.Find(sel).First().Attr("href")
	if !ok {
		return ""
	}
	return e.absoluteURL(href)
}

func (e *Extractor) findContainers(doc *goquery.Document) *goquery.Selection {
	if c := e.config.JobContainer; c != "" {
		if sel := doc.Find(c); sel.Length() > 0 {
			return sel
		}
		// A stale configured selector falls through to the generic
		// containers instead of blanking the source.
		log.Debug().Str("selector", c).Msg("Configured job container matched nothing")
	}

	for _, generic := range genericContainerSelectors {
		if sel := doc.Find(generic); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

func (e *Extractor) extractOne(container *goquery.Selection) *RawPosting {
	fields := make(map[string]string)

	for field := range knownFields {
		if value := e.extractField(container, field); value != "" {
			fields[field] = value
		}
	}

	title := fields["title"]
	sourceURL := e.extractLink(container)
	if title == "" || sourceURL == "" {
		return nil
	}

	// Keep the description's markup around so normalization can render a
	// markdown version of it.
	if fields["description"] != "" {
		chain, ok := e.config.Selectors["description"]
		if !ok {
			chain = defaultFieldSelectors["description"]
		}
		for _, selector := range chain {
			match := container.Find(selector).First()
			if match.Length() == 0 {
				continue
			}
			if inner, err := match.Html(); err == nil && strings.TrimSpace(inner) != "" {
				fields["description_html"] = inner
			}
			break
		}
	}

	return &RawPosting{
		Title:     title,
		SourceURL: sourceURL,
		Fields:    fields,
	}
}

// extractField walks the field's selector chain and returns the first
// non-empty match. Configured chains take precedence over the defaults; they
// replace them rather than extending them.
func (e *Extractor) extractField(container *goquery.Selection, field string) string {
	chain, ok := e.config.Selectors[field]
	if !ok {
		chain = defaultFieldSelectors[field]
	}

	for _, selector := range chain {
		match := container.Find(selector).First()
		if match.Length() == 0 {
			continue
		}

		// Link fields want the href, not the anchor text.
		if field == "application_link" || field == "notification_pdf" {
			if href, ok := match.Attr("href"); ok {
				return e.absoluteURL(href)
			}
			continue
		}

		if text := strings.TrimSpace(match.Text()); text != "" {
			return text
		}
	}
	return ""
}

// extractLink finds the posting's own URL, preferring the title link.
func (e *Extractor) extractLink(container *goquery.Selection) string {
	chain, ok := e.config.Selectors["title"]
	if !ok {
		chain = defaultFieldSelectors["title"]
	}

	for _, selector := range chain {
		match := container.Find(selector).First()
		if href, ok := match.Attr("href"); ok && href != "" {
			return e.absoluteURL(href)
		}
	}

	if href, ok := container.Find("a[href]").First().Attr("href"); ok && href != "" {
		return e.absoluteURL(href)
	}
	return ""
}

func (e *Extractor) absoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return e.baseURL.ResolveReference(ref).String()
}
