// Package scraper gathers live web evidence about crisis events. Wikipedia is
// tried first for background, then a DuckDuckGo HTML search fills the
// remaining result budget. All fetches go through a shared rate limiter and a
// circuit breaker; a failing backend degrades to fewer results, never to an
// error.
package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/config"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/crisisnlp"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/metrics"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/resilience"
)

// Scraper fetches disaster information from public web sources.
type Scraper struct {
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *resilience.Breaker
	userAgent string
	log       *slog.Logger

	// overridable in tests
	wikiAPIBase    string
	duckduckgoBase string
	now            func() time.Time
}

// New creates a Scraper from config.
func New(cfg config.ScraperConfig, log *slog.Logger) *Scraper {
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return NewWithClient(client, cfg, log)
}

// NewWithClient creates a Scraper with a caller-provided HTTP client.
func NewWithClient(client *http.Client, cfg config.ScraperConfig, log *slog.Logger) *Scraper {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 2
	}
	return &Scraper{
		client:         client,
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
		breaker:        resilience.NewBreaker(resilience.DefaultBreakerOpts),
		userAgent:      cfg.UserAgent,
		log:            log,
		wikiAPIBase:    "https://en.wikipedia.org",
		duckduckgoBase: "https://html.duckduckgo.com",
		now:            time.Now,
	}
}

// SearchDisasterInfo gathers up to maxResults web evidence items for a query.
// It never returns an error; failures shrink the result set.
func (s *Scraper) SearchDisasterInfo(ctx context.Context, query string, maxResults int) []domain.WebEvidence {
	if maxResults <= 0 {
		maxResults = domain.DefaultMaxResults
	}
	terms := crisisnlp.SearchTerms(query)

	var results []domain.WebEvidence

	if wiki, ok := s.searchWikipedia(ctx, terms); ok {
		results = append(results, wiki)
	}

	if len(results) < maxResults {
		results = append(results, s.generalSearch(ctx, terms, maxResults-len(results))...)
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// get performs a rate-limited GET through the circuit breaker.
func (s *Scraper) get(ctx context.Context, backend, url string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp *http.Response
	start := s.now()
	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if s.userAgent != "" {
			req.Header.Set("User-Agent", s.userAgent)
		}
		resp, err = s.client.Do(req)
		return err
	})
	metrics.ScrapeDuration.WithLabelValues(backend).Observe(s.now().Sub(start).Seconds())
	if err != nil {
		metrics.ScrapeRequests.WithLabelValues(backend, "error").Inc()
		return nil, err
	}
	metrics.ScrapeRequests.WithLabelValues(backend, "ok").Inc()
	return resp, nil
}

func (s *Scraper) accessDate() string {
	return s.now().Format("2006-01-02")
}
