package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// BrowserStrategy renders JavaScript-heavy sources in a headless browser
// before handing the DOM to the extractor.
type BrowserStrategy struct {
	deps    StrategyDeps
	browser *rod.Browser
}

// NewBrowserStrategy creates the browser strategy. The browser itself is
// launched lazily on the first fetch.
func NewBrowserStrategy(deps StrategyDeps) *BrowserStrategy {
	return &BrowserStrategy{deps: deps}
}

func (s *BrowserStrategy) Name() StrategyName { return StrategyBrowser }

// Available reports whether a chromium binary can be found on this host.
func (s *BrowserStrategy) Available() bool {
	_, exists := launcher.LookPath()
	return exists
}

func (s *BrowserStrategy) Close() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing browser")
		}
		s.browser = nil
	}
}

func (s *BrowserStrategy) connect() error {
	if s.browser != nil {
		return nil
	}

	path, _ := launcher.LookPath()
	u, err := launcher.New().Bin(path).Headless(true).Launch()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connecting to browser: %w", err)
	}

	s.browser = browser
	return nil
}

// Fetch renders url and returns the post-JavaScript DOM. Render failures are
// retried like network failures since headless pages flake under load.
func (s *BrowserStrategy) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	maxAttempts := s.deps.Config.MaxRetries + 1
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.deps.Limiter.Wait(ctx, s.deps.SourceID, s.deps.Config.RequestsPerMinute); err != nil {
			return nil, NewScrapeError(ErrorTypeOther, url, err)
		}

		result, err := s.render(ctx, url)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		log.Debug().
			Str("sourceID", s.deps.SourceID).
			Str("url", url).
			Int("attempt", attempt).
			Err(err).
			Msg("Retrying browser fetch")

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

func (s *BrowserStrategy) render(ctx context.Context, url string) (*FetchResult, error) {
	if err := s.connect(); err != nil {
		return nil, &SystemicError{Err: err}
	}

	timeout := time.Duration(s.deps.Config.TimeoutSeconds) * time.Second
	start := time.Now()

	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, NewScrapeError(ErrorTypeJavascript, url, fmt.Errorf("opening page: %w", err))
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing browser page")
		}
	}()

	// Images and fonts do not affect extraction, skip them to keep renders
	// inside the timeout on slow government sites.
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		switch h.Request.Type() {
		case proto.NetworkResourceTypeImage, proto.NetworkResourceTypeFont, proto.NetworkResourceTypeMedia:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		default:
			h.ContinueRequest(&proto.FetchContinueRequest{})
		}
	})
	go router.Run()
	defer func() {
		if err := router.Stop(); err != nil {
			log.Warn().Err(err).Msg("Error stopping request router")
		}
	}()

	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, NewScrapeError(ErrorTypeJavascript, url, fmt.Errorf("waiting for page load: %w", err))
	}

	if sel := s.deps.Config.WaitSelector; sel != "" {
		if _, err := page.Timeout(timeout).Element(sel); err != nil {
			return nil, &ScrapeError{
				Type:     ErrorTypeJavascript,
				URL:      url,
				Selector: sel,
				Err:      fmt.Errorf("content selector never appeared: %w", err),
			}
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, NewScrapeError(ErrorTypeJavascript, url, fmt.Errorf("reading rendered DOM: %w", err))
	}

	info, err := page.Info()
	finalURL := url
	if err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &FetchResult{
		HTML:         html,
		StatusCode:   200,
		ResponseTime: time.Since(start),
		FinalURL:     finalURL,
	}, nil
}
