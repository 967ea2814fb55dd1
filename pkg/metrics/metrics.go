// Package metrics defines the Prometheus collectors shared by the CrisisMap
// services. Collectors register on the default registry; serve them with
// promhttp.Handler().
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Answer pipeline.
var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisismap_queries_total",
		Help: "Answer queries processed, by outcome (answered, no_evidence, rejected).",
	}, []string{"outcome"})

	AnswerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crisismap_answer_duration_seconds",
		Help:    "End-to-end answer pipeline latency.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	EvidenceItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisismap_evidence_items_total",
		Help: "Evidence items gathered, by source (web, database).",
	}, []string{"source"})

	EvidenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisismap_evidence_failures_total",
		Help: "Non-fatal evidence source failures, by source.",
	}, []string{"source"})

	ComposeFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisismap_compose_fallbacks_total",
		Help: "Response composition fallback ladder activations, by stage (summarize, raw, truncate, apology).",
	}, []string{"stage"})
)

// Web scraper.
var (
	ScrapeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisismap_scrape_requests_total",
		Help: "Outbound scrape requests, by backend and status (ok, error).",
	}, []string{"backend", "status"})

	ScrapeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crisismap_scrape_duration_seconds",
		Help:    "Scrape request latency by backend.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})
)

// Ingestion pipeline.
var (
	IngestDocs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisismap_ingest_events_total",
		Help: "Crisis events ingested, by result (stored, invalid, failed, dlq).",
	}, []string{"result"})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crisismap_ingest_pipeline_duration_seconds",
		Help:    "Per-event ingestion pipeline time.",
		Buckets: prometheus.DefBuckets,
	})

	EmbedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crisismap_embed_duration_seconds",
		Help:    "Embedding call latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// HTTP layer.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crisismap_http_requests_total",
		Help: "HTTP requests by method, path, and status code.",
	}, []string{"method", "path", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crisismap_http_request_duration_seconds",
		Help:    "HTTP request latency by path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
)
