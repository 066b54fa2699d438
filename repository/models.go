package repository

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Source is one government site the pipeline knows how to scrape. The
// selector map, pagination descriptor and fetch tunables live in Config as
// a JSON document owned by the source registry.
type Source struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	BaseUrl        string             `json:"base_url"`
	Config         json.RawMessage    `json:"config"`
	FrequencyHours int32              `json:"frequency_hours"`
	IsActive       bool               `json:"is_active"`
	LastScrapedAt  pgtype.Timestamptz `json:"last_scraped_at"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// ScrapeRun is one execution of the orchestrator against one source.
type ScrapeRun struct {
	ID            string             `json:"id"`
	SourceID      string             `json:"source_id"`
	Status        string             `json:"status"`
	Strategy      string             `json:"strategy"`
	StartedAt     time.Time          `json:"started_at"`
	CompletedAt   pgtype.Timestamptz `json:"completed_at"`
	DurationMs    pgtype.Int8        `json:"duration_ms"`
	PagesScraped  int32              `json:"pages_scraped"`
	RequestsMade  int32              `json:"requests_made"`
	AvgResponseMs int32              `json:"avg_response_ms"`
	JobsFound     int32              `json:"jobs_found"`
	JobsCreated   int32              `json:"jobs_created"`
	JobsUpdated   int32              `json:"jobs_updated"`
	JobsSkipped   int32              `json:"jobs_skipped"`
	ErrorCount    int32              `json:"error_count"`
}

// RawRecord is one listing container's field map as extracted from a page,
// persisted as an audit artifact. (source_id, content_hash) is unique.
type RawRecord struct {
	ID          string          `json:"id"`
	RunID       string          `json:"run_id"`
	SourceID    string          `json:"source_id"`
	Url         string          `json:"url"`
	ContentHash string          `json:"content_hash"`
	Fields      json.RawMessage `json:"fields"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ScrapeError is one fault encountered mid-run.
type ScrapeError struct {
	ID         string      `json:"id"`
	RunID      string      `json:"run_id"`
	ErrorType  string      `json:"error_type"`
	Message    string      `json:"message"`
	Url        pgtype.Text `json:"url"`
	Selector   pgtype.Text `json:"selector"`
	RetryCount int32       `json:"retry_count"`
	Resolved   bool        `json:"resolved"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Job is a normalized job-posting record. (source_id, content_hash) is
// unique; Version is bumped on reconciler updates.
type Job struct {
	ID               string        `json:"id"`
	SourceID         string        `json:"source_id"`
	Title            string        `json:"title"`
	Description      pgtype.Text   `json:"description"`
	DescriptionMd    pgtype.Text   `json:"description_md"`
	Department       pgtype.Text   `json:"department"`
	TotalPosts       pgtype.Int4   `json:"total_posts"`
	Qualification    pgtype.Text   `json:"qualification"`
	NotificationDate pgtype.Date   `json:"notification_date"`
	LastDate         pgtype.Date   `json:"last_date"`
	ExamDate         pgtype.Date   `json:"exam_date"`
	Fee              pgtype.Float8 `json:"fee"`
	MinSalary        pgtype.Int4   `json:"min_salary"`
	MaxSalary        pgtype.Int4   `json:"max_salary"`
	MinAge           pgtype.Int4   `json:"min_age"`
	MaxAge           pgtype.Int4   `json:"max_age"`
	Location         pgtype.Text   `json:"location"`
	ApplicationLink  pgtype.Text   `json:"application_link"`
	NotificationPdf  pgtype.Text   `json:"notification_pdf"`
	SourceUrl        string        `json:"source_url"`
	ContentHash      string        `json:"content_hash"`
	QualityScore     int32         `json:"quality_score"`
	Version          int32         `json:"version"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
