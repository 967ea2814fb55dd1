// Command ingest consumes crisis events from NATS and runs them through the
// ingestion pipeline into Qdrant and Neo4j.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CrisisMapAI/crisismap-mvp/engine/graph"
	"github.com/CrisisMapAI/crisismap-mvp/engine/ingest"
	"github.com/CrisisMapAI/crisismap-mvp/engine/semantic"
	"github.com/CrisisMapAI/crisismap-mvp/engine/summarize"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/config"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/ollama"
)

const defaultMetricsPort = 9091

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	if err := vectorStore.EnsureCollection(ctx, cfg.Qdrant.Dims); err != nil {
		return err
	}
	logger.Info("connected to Qdrant", "collection", cfg.Qdrant.Collection, "dims", cfg.Qdrant.Dims)

	// --- Connect to Neo4j ---
	graphStore, err := graph.Connect(cfg.Neo4j.URL, cfg.Neo4j.User, cfg.Neo4j.Password)
	if err != nil {
		return err
	}
	defer graphStore.Close(ctx)
	logger.Info("connected to Neo4j")

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return err
	}
	defer nc.Drain()
	logger.Info("connected to NATS", "url", cfg.NATS.URL)

	llm := ollama.New(ollama.Opts{
		BaseURL:    cfg.Ollama.URL,
		EmbedModel: cfg.Ollama.EmbedModel,
		GenModel:   cfg.Ollama.GenModel,
	})

	sub, err := ingest.StartConsumer(nc, ingest.Deps{
		Embedder:    llm,
		Summarizer:  summarize.New(),
		VectorStore: vectorStore,
		GraphStore:  graphStore,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	// Metrics endpoint on its own port so scrapes survive pipeline stalls.
	metricsPort := defaultMetricsPort
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			metricsPort = p
		}
	}
	metricsSrv := &http.Server{
		Addr:    ":" + strconv.Itoa(metricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()

	logger.Info("ingest worker started",
		"subject", ingest.IngestSubject,
		"queue", ingest.WorkerQueue,
		"metrics_port", metricsPort,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return metricsSrv.Shutdown(shutCtx)
}
