package messaging

// ScrapeSourceMessage requests a scrape run for one source.
type ScrapeSourceMessage struct {
	SourceID string `json:"source_id"`
	// Force skips the frequency_hours gate for manually triggered runs.
	Force bool `json:"force,omitempty"`
}

// ScrapeAllMessage requests a sweep over every source that is due.
type ScrapeAllMessage struct {
	Force bool `json:"force,omitempty"`
}

// Constants for NATS subjects
const (
	SubjectScrapeSource = "scrape.source.run"
	SubjectScrapeAll    = "scrape.all.run"

	// StreamScrape holds scrape trigger messages.
	StreamScrape = "SCRAPE_JOBS"

	// ConsumerScrape is the durable consumer the service reads triggers from.
	ConsumerScrape = "scraper-service"
)
