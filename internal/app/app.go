// Package app wires configuration to concrete adapters and runs one
// ingestion pass.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinbrief/ingestor/internal/config"
	"github.com/coinbrief/ingestor/internal/feed"
	"github.com/coinbrief/ingestor/internal/metrics"
	"github.com/coinbrief/ingestor/internal/policy"
	"github.com/coinbrief/ingestor/internal/rewrite"
	"github.com/coinbrief/ingestor/internal/scraper"
	"github.com/coinbrief/ingestor/internal/storage"
)

// Run executes one invocation end to end and returns an error only for
// fatal failures (store or rewrite client unreachable). It always logs a
// summary of what the run did.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	logRunStart(cfg, log)

	store, err := storage.Open(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer store.Close()

	rewriter, err := rewrite.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Temperature)
	if err != nil {
		return fmt.Errorf("connect rewrite service: %w", err)
	}
	defer rewriter.Close()

	run := metrics.NewRun()

	pol := policy.New(policy.Deps{
		Store:     store,
		Source:    feed.NewClient(cfg.FetchTimeout),
		Extractor: scraper.NewExtractor(cfg.FetchTimeout),
		Rewriter:  rewriter,
		Config:    cfg,
		Log:       log,
		Metrics:   run,
	})

	result, err := pol.Run(ctx)

	summary := run.Summary()
	attrs := make([]any, 0, len(summary)*2)
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	log.Info("run summary", attrs...)

	if err != nil {
		return err
	}
	if result.Published {
		log.Info("run published one article", "slug", result.Slug, "type", result.Type)
	} else {
		log.Info("run published nothing")
	}
	return nil
}

// logRunStart reports the run start in the display timezone. This is the
// only place the display timezone is used; every decision is made in UTC.
func logRunStart(cfg *config.Config, log *slog.Logger) {
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		loc = time.UTC
	}
	log.Info("ingestion run starting",
		"local_time", time.Now().In(loc).Format(time.RFC3339),
		"sources", len(cfg.Sources),
		"fresh_window", cfg.FreshWindow.String(),
	)
}
