package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/proxy"
	"github.com/rs/zerolog/log"
)

// CrawlStrategy fetches pages through colly. Sources flagged with a complex
// structure use it so detail-page crawling can share colly's request
// machinery with the listing fetch.
type CrawlStrategy struct {
	deps StrategyDeps
}

// NewCrawlStrategy creates the crawl-framework strategy for one source.
func NewCrawlStrategy(deps StrategyDeps) *CrawlStrategy {
	return &CrawlStrategy{deps: deps}
}

func (s *CrawlStrategy) Name() StrategyName { return StrategyCrawl }

func (s *CrawlStrategy) Available() bool { return true }

func (s *CrawlStrategy) Close() {}

func (s *CrawlStrategy) newCollector() (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.MaxDepth(1),
		colly.IgnoreRobotsTxt(),
	}
	if uas := s.deps.Config.UserAgents; len(uas) > 0 {
		opts = append(opts, colly.UserAgent(uas[0]))
	} else {
		opts = append(opts, colly.UserAgent(defaultUserAgent))
	}

	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(time.Duration(s.deps.Config.TimeoutSeconds) * time.Second)

	if proxies := s.deps.Config.Proxies; len(proxies) > 0 {
		switcher, err := proxy.RoundRobinProxySwitcher(proxies...)
		if err != nil {
			return nil, fmt.Errorf("configuring proxy switcher: %w", err)
		}
		c.SetProxyFunc(switcher)
	}

	return c, nil
}

// Fetch retrieves url through a fresh collector, retrying transient failures
// with exponential backoff.
func (s *CrawlStrategy) Fetch(ctx context.Context, url string) (*FetchResult, error) {
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
			Err(err).
			Msg("Retrying crawl fetch")

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

	return nil, lastErr
}

func (s *CrawlStrategy) attempt(ctx context.Context, url string) (*FetchResult, bool, error) {
	c, err := s.newCollector()
	if err != nil {
		return nil, false, &SystemicError{Err: err}
	}
	c.Context = ctx

	var (
		result    *FetchResult
		status    int
		visitErr  error
		retryable bool
	)

	start := time.Now()

	c.OnResponse(func(r *colly.Response) {
		result = &FetchResult{
			HTML:         string(r.Body),
			StatusCode:   r.StatusCode,
			ResponseTime: time.Since(start),
			FinalURL:     r.Request.URL.String(),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		visitErr = err
	})

	if err := c.Visit(url); err != nil {
		visitErr = err
	}
	c.Wait()

	if result != nil {
		return result, false, nil
	}

	if visitErr == nil {
		visitErr = fmt.Errorf("no response received")
	}

	errType := Classify(visitErr)
	retryable = errType == ErrorTypeTimeout || errType == ErrorTypeNetwork
	if status != 0 {
		if status == 429 {
			errType = ErrorTypeRateLimit
		}
		retryable = retryableStatus(status)
		visitErr = fmt.Errorf("unexpected status %d: %w", status, visitErr)
	}

	return nil, retryable, NewScrapeError(errType, url, visitErr)
}
