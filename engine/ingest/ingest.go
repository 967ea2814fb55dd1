// Package ingest runs crisis events through validation, summarization,
// embedding, and storage stages, consuming them from NATS.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
	"github.com/CrisisMapAI/crisismap-mvp/engine/semantic"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/fn"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/metrics"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/natsutil"
)

const (
	// IngestSubject is the NATS subject for incoming crisis events.
	IngestSubject = "crisismap.ingest"
	// DLQSubject is the dead letter queue subject for failed events.
	DLQSubject = "crisismap.ingest.dlq"
	// WorkerQueue is the queue group shared by ingest workers.
	WorkerQueue = "crisismap-ingest"
	// MaxRetries before sending to the DLQ.
	MaxRetries = 3
	// summaryMaxWords bounds generated summaries for events without one.
	summaryMaxWords = 100
)

// Embedder produces an embedding vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Summarizer condenses text within a word budget.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxWords, minWords int) (string, error)
}

// VectorWriter stores embedded events.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// GraphWriter stores events in the relation graph.
type GraphWriter interface {
	SaveEvent(ctx context.Context, e domain.CrisisEvent) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder    Embedder
	Summarizer  Summarizer
	VectorStore VectorWriter
	GraphStore  GraphWriter
	Logger      *slog.Logger
}

// EmbeddedEvent pairs an event with its embedding.
type EmbeddedEvent struct {
	Event     domain.CrisisEvent
	Embedding []float32
}

// --- Pipeline stages ---

// Validate checks an event via domain validation and assigns an ID when the
// loader did not provide one.
var Validate fn.Stage[domain.CrisisEvent, domain.CrisisEvent] = func(_ context.Context, e domain.CrisisEvent) fn.Result[domain.CrisisEvent] {
	if err := domain.ValidateEvent(e); err != nil {
		return fn.Err[domain.CrisisEvent](err)
	}
	if e.ID == "" {
		e.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(e.Title+"|"+e.Date)).String()
	}
	return fn.Ok(e)
}

// NewSummarize creates a stage that fills a missing summary from the event
// text. Events that already carry one pass through.
func NewSummarize(sum Summarizer) fn.Stage[domain.CrisisEvent, domain.CrisisEvent] {
	return func(ctx context.Context, e domain.CrisisEvent) fn.Result[domain.CrisisEvent] {
		if strings.TrimSpace(e.Summary) != "" || strings.TrimSpace(e.Text) == "" {
			return fn.Ok(e)
		}
		summary, err := sum.Summarize(ctx, e.Text, summaryMaxWords, 0)
		if err != nil {
			return fn.Err[domain.CrisisEvent](fmt.Errorf("summarize: %w", err))
		}
		e.Summary = summary
		return fn.Ok(e)
	}
}

// NewEmbed creates a stage that embeds the event's searchable text.
func NewEmbed(embedder Embedder) fn.Stage[domain.CrisisEvent, EmbeddedEvent] {
	return func(ctx context.Context, e domain.CrisisEvent) fn.Result[EmbeddedEvent] {
		start := time.Now()
		vec, err := embedder.Embed(ctx, embeddingText(e))
		metrics.EmbedDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return fn.Err[EmbeddedEvent](fmt.Errorf("embed: %w", err))
		}
		return fn.Ok(EmbeddedEvent{Event: e, Embedding: vec})
	}
}

// NewStore creates a stage that writes to Qdrant and Neo4j. A graph failure
// is logged but does not fail the pipeline; vector storage is authoritative.
func NewStore(vs VectorWriter, gs GraphWriter, log *slog.Logger) fn.Stage[EmbeddedEvent, string] {
	return func(ctx context.Context, ee EmbeddedEvent) fn.Result[string] {
		pointID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(ee.Event.ID)).String()
		record := semantic.VectorRecord{
			ID:        pointID,
			Embedding: ee.Embedding,
			Event:     ee.Event,
		}
		if err := vs.Upsert(ctx, []semantic.VectorRecord{record}); err != nil {
			return fn.Err[string](fmt.Errorf("vector upsert: %w", err))
		}

		if gs != nil {
			if err := gs.SaveEvent(ctx, ee.Event); err != nil {
				log.Warn("ingest: graph save failed", "error", err, "event_id", ee.Event.ID)
			}
		}
		return fn.Ok(ee.Event.ID)
	}
}

// embeddingText joins the fields worth searching over.
func embeddingText(e domain.CrisisEvent) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{e.Title, e.Summary, e.Text, e.Location} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// NewPipeline constructs the full ingestion pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[domain.CrisisEvent, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	summarized := fn.Then(Validate, NewSummarize(deps.Summarizer))
	embedded := fn.Then(summarized, NewEmbed(deps.Embedder))
	return fn.Then(embedded, NewStore(deps.VectorStore, deps.GraphStore, log))
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Event   domain.CrisisEvent `json:"event"`
	Error   string             `json:"error"`
	Retries int                `json:"retries"`
}

// StartConsumer subscribes ingest workers to the event subject with retry and
// DLQ support. Workers share a queue group so events are processed once; the
// trace context injected by the publisher carries through the pipeline.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return natsutil.QueueSubscribe(nc, IngestSubject, WorkerQueue, func(ctx context.Context, event domain.CrisisEvent) {
		start := time.Now()
		result := pipeline(ctx, event)
		metrics.IngestDuration.Observe(time.Since(start).Seconds())

		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries := natsutil.Retries(ctx) + 1
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"title", event.Title,
				"retry", retries,
			)

			dlq := dlqMessage{Event: event, Error: pipeErr.Error(), Retries: retries}

			// Validation failures are permanent; retrying cannot fix them.
			var verr *domain.ValidationError
			if errors.As(pipeErr, &verr) {
				metrics.IngestDocs.WithLabelValues("invalid").Inc()
				if err := natsutil.Publish(ctx, nc, DLQSubject, dlq); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
				return
			}

			if retries >= MaxRetries {
				metrics.IngestDocs.WithLabelValues("dlq").Inc()
				if err := natsutil.Publish(ctx, nc, DLQSubject, dlq); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				metrics.IngestDocs.WithLabelValues("failed").Inc()
				if err := natsutil.PublishRetry(ctx, nc, IngestSubject, event, retries); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
			return
		}

		eventID, _ := result.Unwrap()
		metrics.IngestDocs.WithLabelValues("stored").Inc()
		log.Info("ingest: stored", "event_id", eventID)
	})
}
