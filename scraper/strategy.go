package scraper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StrategyName identifies a fetch strategy in run records and logs.
type StrategyName string

const (
	StrategyHTTP    StrategyName = "http"
	StrategyBrowser StrategyName = "browser"
	StrategyCrawl   StrategyName = "crawl"
)

// FetchResult is one fetched page.
type FetchResult struct {
	HTML         string
	StatusCode   int
	ResponseTime time.Duration
	FinalURL     string
}

// FetchStrategy fetches a page of a source. Implementations own their retry
// loop; the orchestrator only sees the final outcome.
type FetchStrategy interface {
	Name() StrategyName
	// Fetch retrieves the page at url, waiting on the source's rate
	// limiter before each attempt.
	Fetch(ctx context.Context, url string) (*FetchResult, error)
	// Available reports whether the strategy can run in this process,
	// e.g. a browser binary is actually reachable.
	Available() bool
	Close()
}

// StrategyDeps carries the shared machinery every strategy needs.
type StrategyDeps struct {
	SourceID string
	Config   SourceConfig
	Limiter  *RateLimiterRegistry
	Proxies  *ProxyRotator
}

// SelectStrategy picks the strategy for a source. JavaScript-dependent
// sources need the browser; complex multi-page structures get the crawl
// framework; everything else uses plain HTTP. When the preferred strategy is
// unavailable the selection degrades toward HTTP rather than failing.
func SelectStrategy(deps StrategyDeps) FetchStrategy {
	var preferred FetchStrategy

	switch {
	case deps.Config.RequiresJS:
		preferred = NewBrowserStrategy(deps)
	case deps.Config.ComplexStructure:
		preferred = NewCrawlStrategy(deps)
	default:
		return NewHTTPStrategy(deps)
	}

	if preferred.Available() {
		return preferred
	}

	log.Warn().
		Str("sourceID", deps.SourceID).
		Str("strategy", string(preferred.Name())).
		Msg("Preferred fetch strategy unavailable, falling back to http")
	preferred.Close()

	return NewHTTPStrategy(deps)
}
