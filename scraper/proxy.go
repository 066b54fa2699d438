package scraper

import (
	"sync"
	"sync/atomic"
)

// proxyStat tracks per-proxy health counters.
type proxyStat struct {
	url      string
	success  atomic.Int64
	failure  atomic.Int64
	disabled atomic.Bool
}

func (p *proxyStat) successRate() float64 {
	s := p.success.Load()
	f := p.failure.Load()
	total := s + f
	if total == 0 {
		// Untried proxies rank first so every proxy gets exercised.
		return 1.1
	}
	return float64(s) / float64(total)
}

// ProxyRotator picks the healthiest proxy for each request and retires
// proxies that keep failing. A nil rotator (no proxies configured) yields
// direct connections.
type ProxyRotator struct {
	mu      sync.Mutex
	proxies []*proxyStat
	cursor  int
}

// NewProxyRotator builds a rotator over the given proxy URLs. Returns nil
// when the list is empty.
func NewProxyRotator(urls []string) *ProxyRotator {
	if len(urls) == 0 {
		return nil
	}
	stats := make([]*proxyStat, 0, len(urls))
	for _, u := range urls {
		stats = append(stats, &proxyStat{url: u})
	}
	return &ProxyRotator{proxies: stats}
}

const minAttemptsBeforeDisable = 5

// Next returns the proxy URL to use for the next request. It rotates through
// enabled proxies, preferring those with the highest success rate. Returns
// "" when every proxy has been disabled.
func (r *ProxyRotator) Next() string {
	if r == nil {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var best *proxyStat
	bestRate := -1.0
	n := len(r.proxies)
	for i := 0; i < n; i++ {
		p := r.proxies[(r.cursor+i)%n]
		if p.disabled.Load() {
			continue
		}
		if rate := p.successRate(); rate > bestRate {
			best = p
			bestRate = rate
		}
	}
	r.cursor = (r.cursor + 1) % n

	if best == nil {
		return ""
	}
	return best.url
}

// ReportSuccess records a successful request through the proxy.
func (r *ProxyRotator) ReportSuccess(proxyURL string) {
	if r == nil || proxyURL == "" {
		return
	}
	if p := r.find(proxyURL); p != nil {
		p.success.Add(1)
	}
}

// ReportFailure records a failed request and disables the proxy once its
// success rate drops below 20% over at least five attempts.
func (r *ProxyRotator) ReportFailure(proxyURL string) {
	if r == nil || proxyURL == "" {
		return
	}
	p := r.find(proxyURL)
	if p == nil {
		return
	}
	p.failure.Add(1)

	total := p.success.Load() + p.failure.Load()
	if total >= minAttemptsBeforeDisable && p.successRate() < 0.2 {
		p.disabled.Store(true)
	}
}

// Exhausted reports whether no usable proxy remains.
func (r *ProxyRotator) Exhausted() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.proxies {
		if !p.disabled.Load() {
			return false
		}
	}
	return true
}

func (r *ProxyRotator) find(proxyURL string) *proxyStat {
	for _, p := range r.proxies {
		if p.url == proxyURL {
			return p
		}
	}
	return nil
}
