// Package main implements the CrisisMap API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CrisisMapAI/crisismap-mvp/engine/answer"
	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
	"github.com/CrisisMapAI/crisismap-mvp/engine/evidence"
	"github.com/CrisisMapAI/crisismap-mvp/engine/graph"
	"github.com/CrisisMapAI/crisismap-mvp/engine/respond"
	"github.com/CrisisMapAI/crisismap-mvp/engine/scraper"
	"github.com/CrisisMapAI/crisismap-mvp/engine/semantic"
	"github.com/CrisisMapAI/crisismap-mvp/engine/summarize"
	"github.com/CrisisMapAI/crisismap-mvp/engine/textfmt"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/config"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/crisisnlp"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/mid"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/ollama"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	if err := vectorStore.EnsureCollection(ctx, cfg.Qdrant.Dims); err != nil {
		logger.Warn("ensure collection failed", "err", err)
	}

	// --- Connect to Neo4j ---
	graphStore, err := graph.Connect(cfg.Neo4j.URL, cfg.Neo4j.User, cfg.Neo4j.Password)
	if err != nil {
		return fmt.Errorf("neo4j connect: %w", err)
	}
	defer graphStore.Close(ctx)

	// --- Model client ---
	llm := ollama.New(ollama.Opts{
		BaseURL:    cfg.Ollama.URL,
		EmbedModel: cfg.Ollama.EmbedModel,
		GenModel:   cfg.Ollama.GenModel,
		MaxTokens:  cfg.Ollama.MaxTokens,
	})

	// --- Build answer pipeline ---
	web := scraper.New(cfg.Scraper, logger)
	db := &databaseAdapter{embedder: llm, store: vectorStore}
	agg := evidence.New(web, db, evidence.ProfilesFromConfig(cfg.Classify), logger)
	comp := respond.New(llm, summarize.New(), logger)
	norm := textfmt.New(cfg.Gazetteer)
	svc := answer.New(agg, comp, norm, logger)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/answer", handleAnswer(svc, logger))
	mux.HandleFunc("POST /api/search", handleSearch(db, logger))
	mux.HandleFunc("GET /api/related", handleRelated(graphStore, logger))
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.HTTP.CORSOrigin),
		mid.OTel("crisismap-api"),
		mid.Metrics(),
	)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.HTTP.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// AnswerRequest is the JSON body for POST /api/answer.
type AnswerRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

func handleAnswer(svc *answer.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		ans, err := svc.Answer(r.Context(), req.Query, req.MaxResults)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("answer failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ans)
	}
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResponse lists matched events with scores.
type SearchResponse struct {
	Results []domain.DatabaseEvidence `json:"results"`
}

func handleSearch(db *databaseAdapter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if err := domain.ValidateQuery(domain.Query{Text: req.Query}); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit := req.Limit
		if limit <= 0 {
			limit = domain.DefaultMaxResults
		}

		results, err := db.VectorSearch(r.Context(), req.Query, limit)
		if err != nil {
			logger.Error("search failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{Results: results})
	}
}

// RelatedResponse lists graph-related events.
type RelatedResponse struct {
	Events []domain.CrisisEvent `json:"events"`
}

func handleRelated(gs *graph.GraphStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		country := q.Get("country")
		category := domain.Category(q.Get("category"))

		if country == "" && category == "" {
			writeError(w, http.StatusBadRequest, "country or category is required")
			return
		}
		if category != "" && !domain.ValidCategories[category] {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		limit, _ := strconv.Atoi(q.Get("limit"))

		events, err := gs.RelatedEvents(r.Context(), country, category, limit)
		if err != nil {
			logger.Error("related events failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RelatedResponse{Events: events})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// --- Adapters ---

// databaseAdapter implements evidence.DatabaseSearcher over the vector store.
// Text search re-embeds the raw query enriched with extracted facets, which
// doubles as the fallback when the primary search returns nothing.
type databaseAdapter struct {
	embedder *ollama.Client
	store    *semantic.VectorStore
}

func (a *databaseAdapter) VectorSearch(ctx context.Context, query string, limit int) ([]domain.DatabaseEvidence, error) {
	return a.search(ctx, query, limit)
}

func (a *databaseAdapter) TextSearch(ctx context.Context, query string, limit int) ([]domain.DatabaseEvidence, error) {
	return a.search(ctx, crisisnlp.SearchTerms(query), limit)
}

func (a *databaseAdapter) search(ctx context.Context, query string, limit int) ([]domain.DatabaseEvidence, error) {
	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := a.store.Search(ctx, vec, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DatabaseEvidence, len(hits))
	for i, h := range hits {
		out[i] = domain.DatabaseEvidence{Event: h.Event, Score: h.Score}
	}
	return out, nil
}
