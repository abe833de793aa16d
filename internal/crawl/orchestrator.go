// Package crawl enumerates a site's work units and drives each one through
// its own session and pagination driver, exposing a single lazy sequence of
// tagged events to the caller.
package crawl

import (
	"context"
	"log/slog"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/config"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/extract"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/paginate"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/politeness"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/robots"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/session"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

// Orchestrator runs one site's cross-product of work units.
type Orchestrator struct {
	site      adapter.Site
	cfg       config.Config
	overrides map[string][]string
	factory   *session.Factory
	robots    *robots.Agent
	logger    *slog.Logger

	// shared is the run-scoped rate budget; nil when the site scopes its
	// budget per unit.
	shared *politeness.Controller
	seen   *extract.SeenSet
}

// New builds an orchestrator for one site. Axis overrides narrow the site's
// declared axes for this run.
func New(site adapter.Site, cfg config.Config, overrides map[string][]string, robotsAgent *robots.Agent, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	factory, err := session.NewFactory(session.Options{
		Timeout:      cfg.HTTP.RequestTimeout.Duration,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		MaxRedirects: cfg.HTTP.MaxRedirects,
		ProxyURL:     cfg.HTTP.ProxyURL,
		Headers:      site.Headers,
	})
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		site:      site,
		cfg:       cfg,
		overrides: overrides,
		factory:   factory,
		robots:    robotsAgent,
		logger:    logger.With("site", site.Name),
		seen:      extract.NewSeenSet(),
	}
	if o.rateScope() == adapter.RateScopeRun {
		o.shared = o.newController()
	}
	return o, nil
}

func (o *Orchestrator) rateScope() adapter.RateScope {
	if o.site.RateScope != "" {
		return o.site.RateScope
	}
	if o.cfg.Politeness.Scope == "unit" {
		return adapter.RateScopeUnit
	}
	return adapter.RateScopeRun
}

func (o *Orchestrator) newController() *politeness.Controller {
	p := o.cfg.Politeness
	return politeness.New(politeness.Options{
		FloorDelay:      p.FloorDelay.Duration,
		CapDelay:        p.CapDelay.Duration,
		Jitter:          p.Jitter.Duration,
		MaxBlockRetries: p.MaxBlockRetries,
		RotateOnBlock:   p.RotateOnBlock,
		Identities:      p.Identities,
		RateRequests:    p.RateLimit.Requests,
		RateWindow:      p.RateLimit.Window.Duration,
	}, o.logger)
}

// Events starts the run and returns its lazy, finite, non-restartable event
// sequence. The channel closes once every unit reaches a terminal state.
// The consumer may stop pulling at any time; cancelling ctx releases all
// sessions and in-flight requests.
func (o *Orchestrator) Events(ctx context.Context) <-chan types.Event {
	ch := make(chan types.Event)

	units := o.site.Units(o.overrides)
	go func() {
		defer close(ch)

		pool, err := newUnitPool(ctx, o.cfg.Worker.Concurrency, o.cfg.Worker.QueueSize)
		if err != nil {
			o.logger.Error("unit pool", "error", err)
			return
		}
		defer pool.close()

		for _, unit := range units {
			unit := unit
			if err := pool.submit(func(workerCtx context.Context) {
				o.runUnit(workerCtx, unit, len(units), ch)
			}); err != nil {
				break
			}
		}
		// every accepted unit must finish before the channel may close
		pool.wait()
	}()

	return ch
}

func (o *Orchestrator) runUnit(ctx context.Context, unit types.WorkUnit, unitCount int, ch chan<- types.Event) {
	if ctx.Err() != nil {
		return
	}
	if !send(ctx, ch, types.ProgressEvent{Unit: unit, UnitIndex: unit.Index, UnitCount: unitCount}) {
		return
	}

	sess, err := o.factory.Open(o.site.BaseURL)
	if err != nil {
		send(ctx, ch, types.ErrorEvent{Unit: unit, Kind: types.FailProtocolMismatch, Err: err})
		return
	}
	defer sess.Close()

	if o.site.UseRobots && o.robots != nil && !o.robots.Allowed(ctx, sess.Base()) {
		o.logger.Info("unit skipped by robots", "unit", unit.Label())
		send(ctx, ch, types.ErrorEvent{Unit: unit, Kind: types.FailRobots, Err: nil})
		return
	}

	pol := o.shared
	if pol == nil {
		pol = o.newController()
	}

	pipe := extract.NewPipeline(o.site, o.logger)
	driver := paginate.New(o.site, unit, sess, pol, pipe, paginate.Options{
		EmptyPageThreshold: o.cfg.Pagination.EmptyPageThreshold,
		MaxAttempts:        o.cfg.Worker.MaxRetries,
		MaxPages:           o.cfg.Pagination.MaxPages,
	}, o.logger)

	outcome := driver.Run(ctx, func(rec types.Record) bool {
		if !o.seen.Admit(rec.DedupKey()) {
			return true
		}
		return send(ctx, ch, types.RecordEvent{Unit: unit, Record: rec})
	})

	switch outcome.State {
	case paginate.StateExhausted:
		o.logger.Debug("unit exhausted", "unit", unit.Label(), "pages", outcome.Pages)
	case paginate.StateFailed:
		if ctx.Err() != nil {
			return
		}
		if outcome.Kind == types.FailBlocked {
			reason := ""
			if outcome.Err != nil {
				reason = outcome.Err.Error()
			}
			send(ctx, ch, types.BlockEvent{Unit: unit, Reason: reason})
			return
		}
		send(ctx, ch, types.ErrorEvent{Unit: unit, Kind: outcome.Kind, Err: outcome.Err})
	}
}

func send(ctx context.Context, ch chan<- types.Event, ev types.Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
