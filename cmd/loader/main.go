// Command loader reads a crisis event dataset from a CSV file and publishes
// each row to the ingest subject on NATS.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
	"github.com/CrisisMapAI/crisismap-mvp/engine/ingest"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/config"
	"github.com/CrisisMapAI/crisismap-mvp/pkg/natsutil"
)

func main() {
	var (
		file    = flag.String("file", "data/crisis_events.csv", "CSV dataset to load")
		subject = flag.String("subject", ingest.IngestSubject, "NATS subject to publish to")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *file, *subject, logger); err != nil {
		logger.Error("loader failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.AppConfig, file, subject string, logger *slog.Logger) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	nc, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	published, skipped := 0, 0
	err = readEvents(f, func(e domain.CrisisEvent) {
		if ctx.Err() != nil {
			return
		}
		if err := domain.ValidateEvent(e); err != nil {
			logger.Warn("skipping invalid row", "title", e.Title, "err", err)
			skipped++
			return
		}
		if err := natsutil.Publish(ctx, nc, subject, e); err != nil {
			logger.Error("publish failed", "title", e.Title, "err", err)
			skipped++
			return
		}
		published++
	})
	if err != nil {
		return err
	}

	// Drain on shutdown does not wait for the server to process; give the
	// connection a moment to flush.
	if err := nc.FlushTimeout(5 * time.Second); err != nil {
		logger.Warn("flush failed", "err", err)
	}

	logger.Info("dataset loaded", "file", file, "published", published, "skipped", skipped)
	return nil
}

// readEvents parses the CSV stream and calls emit per row. The first row is a
// header; unknown columns land in the event's Extra map.
func readEvents(r io.Reader, emit func(domain.CrisisEvent)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		emit(rowToEvent(header, row))
	}
}

func rowToEvent(header, row []string) domain.CrisisEvent {
	var e domain.CrisisEvent
	for i, val := range row {
		if i >= len(header) {
			break
		}
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		switch header[i] {
		case "id":
			e.ID = val
		case "title", "name", "event":
			e.Title = val
		case "summary":
			e.Summary = val
		case "text", "description", "details":
			e.Text = val
		case "location", "place":
			e.Location = val
		case "country":
			e.Country = val
		case "category", "type", "disaster_type":
			e.Category = domain.Category(strings.ToLower(val))
		case "date", "year":
			e.Date = val
		case "casualties", "deaths", "fatalities":
			e.Casualties = val
		default:
			if e.Extra == nil {
				e.Extra = make(map[string]string)
			}
			e.Extra[header[i]] = val
		}
	}
	return e
}
