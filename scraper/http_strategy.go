package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

const maxBackoff = 30 * time.Second

// HTTPStrategy fetches pages with a plain HTTP client. This is the default
// and the fallback for every other strategy.
type HTTPStrategy struct {
	deps     StrategyDeps
	client   *resty.Client
	uaCursor int
}

// NewHTTPStrategy creates the HTTP fetch strategy for one source.
func NewHTTPStrategy(deps StrategyDeps) *HTTPStrategy {
	client := resty.New().
		SetTimeout(time.Duration(deps.Config.TimeoutSeconds) * time.Second).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		// The retry loop below owns retries so it can rotate proxies and
		// classify failures per attempt.
		SetRetryCount(0)

	return &HTTPStrategy{deps: deps, client: client}
}

func (s *HTTPStrategy) Name() StrategyName { return StrategyHTTP }

func (s *HTTPStrategy) Available() bool { return true }

func (s *HTTPStrategy) Close() {}

// userAgent rotates through the configured user agents per request.
func (s *HTTPStrategy) userAgent() string {
	uas := s.deps.Config.UserAgents
	if len(uas) == 0 {
		return defaultUserAgent
	}
	ua := uas[s.uaCursor%len(uas)]
	s.uaCursor++
	return ua
}

// Fetch retrieves url, retrying transient failures with exponential backoff.
func (s *HTTPStrategy) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	maxAttempts := s.deps.Config.MaxRetries + 1
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.deps.Limiter.Wait(ctx, s.deps.SourceID, s.deps.Config.RequestsPerMinute); err != nil {
			return nil, NewScrapeError(ErrorTypeOther, url, err)
		}

		result, retryable, err := s.attempt(ctx, url)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable || attempt == maxAttempts {
			break
		}

		log.Debug().
			Str("sourceID", s.deps.SourceID).
			Str("url", url).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying fetch")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, NewScrapeError(ErrorTypeTimeout, url, ctx.Err())
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	if s.deps.Proxies.Exhausted() {
		return nil, &SystemicError{Err: fmt.Errorf("all proxies disabled while fetching %s: %w", url, lastErr)}
	}
	return nil, lastErr
}

// attempt performs one request. The bool result reports whether the failure
// is worth retrying.
func (s *HTTPStrategy) attempt(ctx context.Context, url string) (*FetchResult, bool, error) {
	proxy := s.deps.Proxies.Next()
	if proxy != "" {
		s.client.SetProxy(proxy)
	} else {
		s.client.RemoveProxy()
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", s.userAgent()).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		Get(url)
	elapsed := time.Since(start)

	if err != nil {
		s.deps.Proxies.ReportFailure(proxy)
		errType := Classify(err)
		retryable := errType == ErrorTypeTimeout || errType == ErrorTypeNetwork
		return nil, retryable, NewScrapeError(errType, url, err)
	}

	status := resp.StatusCode()
	if status >= 400 {
		s.deps.Proxies.ReportFailure(proxy)
		errType := ErrorTypeNetwork
		if status == 429 {
			errType = ErrorTypeRateLimit
		}
		return nil, retryableStatus(status), NewScrapeError(errType, url, fmt.Errorf("unexpected status %d", status))
	}

	s.deps.Proxies.ReportSuccess(proxy)
	return &FetchResult{
		HTML:         string(resp.Body()),
		StatusCode:   status,
		ResponseTime: elapsed,
		FinalURL:     resp.RawResponse.Request.URL.String(),
	}, false, nil
}
