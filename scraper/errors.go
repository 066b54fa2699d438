package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorType classifies a scrape fault for the error audit trail.
type ErrorType string

const (
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeParsing    ErrorType = "parsing"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeJavascript ErrorType = "javascript"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeOther      ErrorType = "other"
)

// ScrapeError carries the classification and scrape context of a fault so it
// can be persisted alongside the run.
type ScrapeError struct {
	Type       ErrorType
	URL        string
	Selector   string
	RetryCount int
	Err        error
}

func (e *ScrapeError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s error at %s: %v", e.Type, e.URL, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Type, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError wraps err with a classification and the URL it happened on.
func NewScrapeError(errType ErrorType, url string, err error) *ScrapeError {
	return &ScrapeError{Type: errType, URL: url, Err: err}
}

// SystemicError marks a fault that invalidates the whole run, not just one
// page or record. A first-page fetch failure or a dead proxy pool qualify.
type SystemicError struct {
	Err error
}

func (e *SystemicError) Error() string {
	return fmt.Sprintf("systemic failure: %v", e.Err)
}

func (e *SystemicError) Unwrap() error {
	return e.Err
}

// IsSystemic reports whether err (anywhere in its chain) dooms the run.
func IsSystemic(err error) bool {
	var se *SystemicError
	return errors.As(err, &se)
}

// Classify maps an arbitrary fetch or parse error to an ErrorType. HTTP
// status classification happens at the strategy layer where the status code
// is known; this covers transport-level faults.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeOther
	}

	var scrapeErr *ScrapeError
	if errors.As(err, &scrapeErr) {
		return scrapeErr.Type
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ErrorTypeTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "no such host") || strings.Contains(msg, "dns"):
		return ErrorTypeNetwork
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return ErrorTypeRateLimit
	default:
		return ErrorTypeOther
	}
}

// retryableStatus reports whether an HTTP status warrants another attempt.
func retryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
