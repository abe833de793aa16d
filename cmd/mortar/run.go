package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/config"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/crawl"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/robots"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/sites"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/storage"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

func newRunCommand() *cobra.Command {
	var (
		cfgPath   string
		siteNames []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the crawl for the configured sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cfg, siteNames)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/config.yaml", "path to configuration file")
	cmd.Flags().StringSliceVarP(&siteNames, "site", "s", nil, "override configured sites (repeatable)")
	return cmd
}

type siteSummary struct {
	name    string
	units   int
	records int
	blocked int
	failed  int
}

func runCrawl(ctx context.Context, cfg *config.Config, override []string) error {
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}

	selected := cfg.Sites
	if len(override) > 0 {
		selected = nil
		for _, name := range override {
			selected = append(selected, config.SiteConfig{Name: strings.ToLower(strings.TrimSpace(name))})
		}
	}
	if len(selected) == 0 {
		return fmt.Errorf("no sites selected; configure sites or pass --site")
	}

	var store *storage.Store
	if cfg.Store.SQLitePath != "" {
		store, err = storage.Open(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var jsonl *storage.JSONLWriter
	if cfg.Store.JSONLPath != "" {
		jsonl, err = storage.NewJSONLWriter(cfg.Store.JSONLPath)
		if err != nil {
			return err
		}
		defer jsonl.Close()
	}

	robotsAgent := robots.NewAgent(cfg.Robots, nil)

	var summaries []siteSummary
	for _, sc := range selected {
		site, ok := sites.Lookup(sc.Name)
		if !ok {
			return fmt.Errorf("unknown site %q (see `mortar sites`)", sc.Name)
		}

		sum, err := runSite(ctx, site, sc, cfg, robotsAgent, store, jsonl, logger)
		if err != nil {
			return err
		}
		summaries = append(summaries, sum)

		if ctx.Err() != nil {
			break
		}
	}

	printSummary(summaries)
	return ctx.Err()
}

func runSite(ctx context.Context, site adapter.Site, sc config.SiteConfig, cfg *config.Config, robotsAgent *robots.Agent, store *storage.Store, jsonl *storage.JSONLWriter, logger *slog.Logger) (siteSummary, error) {
	name := site.Name
	sum := siteSummary{name: name}

	orch, err := crawl.New(site, *cfg, sc.Axes, robotsAgent, logger)
	if err != nil {
		return sum, err
	}

	var runID int64
	if store != nil {
		runID, err = store.BeginRun(ctx, name)
		if err != nil {
			return sum, err
		}
	}

	for ev := range orch.Events(ctx) {
		switch e := ev.(type) {
		case types.ProgressEvent:
			sum.units = e.UnitCount
			logger.Info("unit started", "site", name, "unit", e.Unit.Label(),
				"index", e.UnitIndex+1, "total", e.UnitCount)
		case types.RecordEvent:
			sum.records++
			if store != nil {
				if err := store.SaveRecord(ctx, runID, e.Unit, e.Record); err != nil {
					logger.Error("persist failed", "site", name, "error", err)
				}
			}
			if jsonl != nil {
				if err := jsonl.Write(e.Record); err != nil {
					logger.Error("jsonl write failed", "site", name, "error", err)
				}
			}
		case types.BlockEvent:
			sum.blocked++
			logger.Warn("unit blocked", "site", name, "unit", e.Unit.Label(), "reason", e.Reason)
		case types.ErrorEvent:
			sum.failed++
			logger.Error("unit failed", "site", name, "unit", e.Unit.Label(),
				"kind", string(e.Kind), "error", e.Err)
		}
	}

	if store != nil {
		if err := store.FinishRun(ctx, runID, storage.RunSummary{
			Records:      sum.records,
			BlockedUnits: sum.blocked,
			FailedUnits:  sum.failed,
		}); err != nil {
			logger.Error("finish run", "site", name, "error", err)
		}
	}
	return sum, nil
}

func printSummary(summaries []siteSummary) {
	if len(summaries) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Site", "Units", "Records", "Blocked", "Failed"})
	for _, s := range summaries {
		t.AppendRow(table.Row{s.name, s.units, s.records, s.blocked, s.failed})
	}
	t.Render()
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
