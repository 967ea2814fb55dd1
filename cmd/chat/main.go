// Command chat is an interactive terminal client for the answer pipeline. It
// runs the same evidence gathering and composition as the API server, without
// requiring it to be up.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/CrisisMapAI/crisismap-mvp/engine/answer"
	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
	"github.com/CrisisMapAI/crisismap-mvp/engine/evidence"
	"github.com/CrisisMapAI/crisismap-mvp/engine/respond"
	"github.com/CrisisMapAI/crisismap-mvp/engine/scraper"
	"github.com/CrisisMapAI/crisismap-mvp/engine/semantic"
	"github.com/CrisisMapAI/crisismap-mvp/engine/summarize"
	"github.com/CrisisMapAI/crisismap-mvp/engine/textfmt"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/config"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/crisisnlp"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/ollama"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("chat failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) error {
	vectorStore, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	llm := ollama.New(ollama.Opts{
		BaseURL:    cfg.Ollama.URL,
		EmbedModel: cfg.Ollama.EmbedModel,
		GenModel:   cfg.Ollama.GenModel,
		MaxTokens:  cfg.Ollama.MaxTokens,
	})

	web := scraper.New(cfg.Scraper, logger)
	db := &databaseAdapter{embedder: llm, store: vectorStore}
	agg := evidence.New(web, db, evidence.ProfilesFromConfig(cfg.Classify), logger)
	comp := respond.New(llm, summarize.New(), logger)
	norm := textfmt.New(cfg.Gazetteer)
	svc := answer.New(agg, comp, norm, logger)

	fmt.Println("CrisisMap chat. Ask about a crisis event, or type 'exit'.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		ans, err := svc.Answer(ctx, line, 0)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}

		fmt.Println()
		fmt.Println(ans.Text)
		if len(ans.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, src := range ans.Sources {
				fmt.Printf("- %s (%s)\n", src.Title, src.Source)
			}
		}

		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

// databaseAdapter implements evidence.DatabaseSearcher over the vector store.
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
