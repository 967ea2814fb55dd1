// Package evidence gathers the two evidence streams behind an answer: live
// web results and similar stored events. Gathering is best-effort; a failed
// source contributes nothing rather than failing the query.
package evidence

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/fn"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/metrics"
)

// defaultWebBudget bounds web results when no profile raises it.
const defaultWebBudget = 3

// defaultSourceTimeout bounds each evidence source call.
const defaultSourceTimeout = 15 * time.Second

// WebSource provides live web evidence.
type WebSource interface {
	SearchDisasterInfo(ctx context.Context, query string, maxResults int) []domain.WebEvidence
}

// DatabaseSearcher provides stored evidence. VectorSearch is the primary
// path; TextSearch is the fallback when it fails or finds nothing.
type DatabaseSearcher interface {
	VectorSearch(ctx context.Context, query string, limit int) ([]domain.DatabaseEvidence, error)
	TextSearch(ctx context.Context, query string, limit int) ([]domain.DatabaseEvidence, error)
}

// Aggregator runs both evidence sources for a query.
type Aggregator struct {
	web      WebSource
	db       DatabaseSearcher
	profiles []Profile
	timeout  time.Duration
	log      *slog.Logger
}

// New creates an Aggregator.
func New(web WebSource, db DatabaseSearcher, profiles []Profile, log *slog.Logger) *Aggregator {
	return &Aggregator{
		web:      web,
		db:       db,
		profiles: profiles,
		timeout:  defaultSourceTimeout,
		log:      log,
	}
}

// Gather collects evidence for a query. It never returns an error; sources
// that fail or time out are simply absent from the bundle. Result order
// within each stream is the source's rank order.
func (a *Aggregator) Gather(ctx context.Context, q domain.Query) domain.Bundle {
	profile := classify(a.profiles, q.Text)

	webQuery := q.Text
	if len(profile.ExtraTerms) > 0 {
		webQuery += " " + strings.Join(profile.ExtraTerms, " ")
	}
	webBudget := defaultWebBudget
	if profile.ResultBudget > 0 {
		webBudget = profile.ResultBudget
	}

	// A profile with a skip rule needs the web count before deciding on the
	// database, so gathering runs web-first. Without one, both sources run
	// concurrently.
	if profile.SkipDatabaseMinWebHits > 0 {
		web := a.gatherWeb(ctx, webQuery, webBudget)
		bundle := domain.Bundle{Web: web}
		if len(web) >= profile.SkipDatabaseMinWebHits {
			a.log.Debug("skipping database search",
				"profile", profile.Name, "web_hits", len(web))
			return bundle
		}
		bundle.Database = a.gatherDatabase(ctx, q.Text, q.Limit())
		return bundle
	}

	results := fn.FanOut(
		func() domain.Bundle {
			return domain.Bundle{Web: a.gatherWeb(ctx, webQuery, webBudget)}
		},
		func() domain.Bundle {
			return domain.Bundle{Database: a.gatherDatabase(ctx, q.Text, q.Limit())}
		},
	)

	var bundle domain.Bundle
	for _, part := range results {
		bundle.Web = append(bundle.Web, part.Web...)
		bundle.Database = append(bundle.Database, part.Database...)
	}
	return bundle
}

func (a *Aggregator) gatherWeb(ctx context.Context, query string, budget int) []domain.WebEvidence {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	web := a.web.SearchDisasterInfo(ctx, query, budget)
	metrics.EvidenceItems.WithLabelValues("web").Add(float64(len(web)))
	return web
}

func (a *Aggregator) gatherDatabase(ctx context.Context, query string, limit int) []domain.DatabaseEvidence {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	items, err := a.db.VectorSearch(ctx, query, limit)
	if err != nil || len(items) == 0 {
		if err != nil {
			metrics.EvidenceFailures.WithLabelValues("database").Inc()
			a.log.Warn("vector search failed, falling back to text search", "error", err)
		}
		items, err = a.db.TextSearch(ctx, query, limit)
		if err != nil {
			metrics.EvidenceFailures.WithLabelValues("database").Inc()
			a.log.Warn("text search failed", "error", err)
			return nil
		}
	}
	metrics.EvidenceItems.WithLabelValues("database").Add(float64(len(items)))
	return items
}
