// Package answer wires the full question pipeline: validate, gather
// evidence, compose, normalize, and attribute sources.
package answer

import (
	"context"
	"log/slog"
	"time"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
	"github.com/CrisisMapAI/crisismap-mvp/engine/respond"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/metrics"
)

// Gatherer collects evidence for a query.
type Gatherer interface {
	Gather(ctx context.Context, q domain.Query) domain.Bundle
}

// Composer turns evidence into an answer with citations.
type Composer interface {
	Compose(ctx context.Context, q domain.Query, b domain.Bundle) respond.Composed
}

// Normalizer reformats answer text.
type Normalizer interface {
	Normalize(text string) string
}

// Answer is the finished response to one query. Text is the answer body with
// the citation block stripped; the citations come back structured in Sources.
type Answer struct {
	Text    string            `json:"response"`
	Sources []domain.Citation `json:"sources,omitempty"`
}

// Service runs the answer pipeline.
type Service struct {
	agg  Gatherer
	comp Composer
	norm Normalizer
	log  *slog.Logger
}

// New creates a Service.
func New(agg Gatherer, comp Composer, norm Normalizer, log *slog.Logger) *Service {
	return &Service{agg: agg, comp: comp, norm: norm, log: log}
}

// Answer resolves a query end to end. Query validation failures are the only
// errors surfaced; evidence and generation failures degrade inside the
// pipeline instead.
func (s *Service) Answer(ctx context.Context, queryText string, maxResults int) (Answer, error) {
	start := time.Now()

	q := domain.Query{Text: queryText, MaxResults: maxResults}
	if err := domain.ValidateQuery(q); err != nil {
		metrics.QueriesTotal.WithLabelValues("rejected").Inc()
		return Answer{}, err
	}

	bundle := s.agg.Gather(ctx, q)
	s.log.Info("evidence gathered",
		"query", q.Text,
		"web", len(bundle.Web),
		"database", len(bundle.Database),
	)

	composed := s.comp.Compose(ctx, q, bundle)
	text := s.norm.Normalize(composed.Text)
	body, sources := respond.ExtractSources(text)

	outcome := "answered"
	if bundle.Empty() {
		outcome = "no_evidence"
	}
	metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	metrics.AnswerDuration.Observe(time.Since(start).Seconds())

	s.log.Info("answer composed",
		"query", q.Text,
		"outcome", outcome,
		"sources", len(sources),
		"duration", time.Since(start),
	)
	return Answer{Text: body, Sources: sources}, nil
}
