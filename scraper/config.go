package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sarkariwatch/scraper-http-service/common/config"
)

// Canonical field names an extractor can be configured to pull. Title and
// source URL come from the container itself; everything else is optional.
var knownFields = map[string]bool{
	"title":             true,
	"description":       true,
	"department":        true,
	"total_posts":       true,
	"qualification":     true,
	"notification_date": true,
	"last_date":         true,
	"exam_date":         true,
	"fee":               true,
	"salary":            true,
	"age_limit":         true,
	"location":          true,
	"application_link":  true,
	"notification_pdf":  true,
}

// PaginationConfig controls how the orchestrator walks listing pages.
type PaginationConfig struct {
	// Type is "next_link" (follow a selector's href) or "page_param"
	// (increment a query parameter). Empty disables pagination.
	Type string `json:"type,omitempty"`
	// NextSelector locates the next-page link for the next_link type.
	NextSelector string `json:"next_selector,omitempty"`
	// PageParam is the query parameter name for the page_param type.
	PageParam string `json:"page_param,omitempty"`
	// StartPage is the first value of the page parameter, default 1.
	StartPage int `json:"start_page,omitempty"`
	// MaxPages caps the walk. Zero falls back to the service default.
	MaxPages int `json:"max_pages,omitempty"`
}

// SourceConfig is the per-source scraping configuration stored as JSON on the
// sources table. Zero values fall back to service-wide defaults.
type SourceConfig struct {
	// ListURL is the listing page to scrape. Empty means the source's
	// base URL.
	ListURL string `json:"list_url,omitempty"`

	// JobContainer selects one posting's root element on the listing page.
	// Empty falls back to a chain of generic container selectors.
	JobContainer string `json:"job_container,omitempty"`

	// Selectors maps a canonical field name to an ordered fallback chain of
	// CSS selectors, tried until one matches.
	Selectors map[string][]string `json:"selectors,omitempty"`

	// RequiresJS forces the headless browser strategy.
	RequiresJS bool `json:"requires_js,omitempty"`
	// ComplexStructure prefers the crawl-framework strategy for sites
	// where postings spread across linked detail pages.
	ComplexStructure bool `json:"complex_structure,omitempty"`

	// WaitSelector is the element the browser strategy waits for before
	// reading the DOM. Empty waits for load only.
	WaitSelector string `json:"wait_selector,omitempty"`

	Pagination PaginationConfig `json:"pagination,omitempty"`

	// Fetch tunables. Zero means the service-wide default, so a source
	// cannot set any of these to literally zero.
	RequestsPerMinute int `json:"requests_per_minute,omitempty"`
	MaxRetries        int `json:"max_retries,omitempty"`
	TimeoutSeconds    int `json:"timeout_seconds,omitempty"`

	Proxies    []string `json:"proxies,omitempty"`
	UserAgents []string `json:"user_agents,omitempty"`
}

// ParseSourceConfig decodes and validates a source's config document.
func ParseSourceConfig(raw []byte) (SourceConfig, error) {
	var cfg SourceConfig
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding source config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configs that would silently misbehave at scrape time.
func (c SourceConfig) Validate() error {
	for field := range c.Selectors {
		if !knownFields[field] {
			return fmt.Errorf("unknown selector field %q", field)
		}
	}

	switch c.Pagination.Type {
	case "", "next_link", "page_param":
	default:
		return fmt.Errorf("unknown pagination type %q", c.Pagination.Type)
	}
	if c.Pagination.Type == "next_link" && c.Pagination.NextSelector == "" {
		return fmt.Errorf("next_link pagination requires next_selector")
	}
	if c.Pagination.Type == "page_param" && c.Pagination.PageParam == "" {
		return fmt.Errorf("page_param pagination requires page_param")
	}

	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds cannot be negative")
	}

	for _, p := range c.Proxies {
		if !strings.Contains(p, "://") {
			return fmt.Errorf("proxy %q is missing a scheme", p)
		}
	}

	return nil
}

// WithDefaults fills zero-valued tunables from the service configuration.
func (c SourceConfig) WithDefaults(defaults config.ScraperConfig) SourceConfig {
	if c.RequestsPerMinute == 0 {
		if c.RequiresJS {
			c.RequestsPerMinute = defaults.BrowserRPM
		} else {
			c.RequestsPerMinute = defaults.RequestsPerMinute
		}
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if c.Pagination.MaxPages == 0 {
		c.Pagination.MaxPages = defaults.MaxPages
	}
	if c.Pagination.StartPage == 0 {
		c.Pagination.StartPage = 1
	}
	return c
}
