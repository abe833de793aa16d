// Package paginate walks one work unit's result set under a pluggable
// pagination strategy. Requests within a unit are strictly sequential:
// token and cursor protocols depend on state extracted from the
// immediately preceding response.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/extract"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/politeness"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/session"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

// State is the driver's position in its lifecycle. Exhausted and Failed are
// terminal.
type State int

const (
	StateInit State = iota
	StateFetching
	StateHasMore
	StateExhausted
	StateBlocked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFetching:
		return "fetching"
	case StateHasMore:
		return "has_more"
	case StateExhausted:
		return "exhausted"
	case StateBlocked:
		return "blocked"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress is the mutable pagination bookkeeping, updated once per
// request/response cycle. PagesFetched never decreases;
// ConsecutiveEmpty resets on any non-empty page.
type Progress struct {
	PagesFetched     int
	ConsecutiveEmpty int
	// TotalKnown is the result total announced by the site, or -1.
	TotalKnown int

	firstPage int
}

// FirstPage reports the site's page numbering origin.
func (p *Progress) FirstPage() int { return p.firstPage }

// Options bounds the driver's retries and stop conditions.
type Options struct {
	// EmptyPageThreshold ends pagination after this many consecutive pages
	// with zero extracted records.
	EmptyPageThreshold int
	// MaxAttempts bounds retries of one request after transient or server
	// errors.
	MaxAttempts int
	// MaxPages is a hard safety bound per unit.
	MaxPages int
}

// Outcome describes how a unit ended.
type Outcome struct {
	State State
	Kind  types.FailureKind
	Err   error
	Pages int
}

// Driver runs one work unit to a terminal state, emitting normalized
// records in source page order.
type Driver struct {
	site   adapter.Site
	unit   types.WorkUnit
	sess   *session.Session
	pol    *politeness.Controller
	pipe   *extract.Pipeline
	opts   Options
	logger *slog.Logger

	state    State
	progress Progress
}

// New binds a driver to one unit's session, rate budget, and pipeline.
func New(site adapter.Site, unit types.WorkUnit, sess *session.Session, pol *politeness.Controller, pipe *extract.Pipeline, opts Options, logger *slog.Logger) *Driver {
	if opts.EmptyPageThreshold <= 0 {
		opts.EmptyPageThreshold = 2
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		site:     site,
		unit:     unit,
		sess:     sess,
		pol:      pol,
		pipe:     pipe,
		opts:     opts,
		logger:   logger,
		state:    StateInit,
		progress: Progress{TotalKnown: -1, firstPage: site.Pagination.FirstPage},
	}
}

// State returns the driver's current state.
func (d *Driver) State() State { return d.state }

// Progress returns a copy of the pagination bookkeeping.
func (d *Driver) Progress() Progress { return d.progress }

// Run drives the unit until a terminal state. emit receives every
// normalized record in page order and returns false to stop early (the
// consumer abandoned the sequence).
func (d *Driver) Run(ctx context.Context, emit func(types.Record) bool) Outcome {
	strat, err := newStrategy(d.site, d.unit, d.sess, &d.progress)
	if err != nil {
		return d.fail(types.FailProtocolMismatch, err)
	}

	req, err := strat.first()
	if err != nil {
		return d.fail(types.FailProtocolMismatch, err)
	}

	attempts := 0
	for {
		if err := d.pol.Wait(ctx); err != nil {
			return d.fail(types.FailTransient, err)
		}
		d.sess.SetIdentity(d.pol.Identity())

		d.state = StateFetching
		resp, err := d.sess.Do(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return d.fail(types.FailTransient, ctx.Err())
			}
			if session.IsTransient(err) {
				attempts++
				if attempts >= d.opts.MaxAttempts {
					return d.fail(types.FailTransient, err)
				}
				d.logger.Debug("transient failure, retrying",
					"site", d.site.Name, "unit", d.unit.Label(),
					"attempt", attempts, "error", err)
				continue
			}
			return d.fail(types.FailServerError, err)
		}

		if d.site.DetectBlock != nil && d.site.DetectBlock(resp.Status, resp.Body) {
			d.state = StateBlocked
			reason := fmt.Sprintf("status %d", resp.Status)
			if !d.pol.HandleBlock(reason) {
				return d.fail(types.FailBlocked, fmt.Errorf("abandoned after repeated blocks (%s)", reason))
			}
			continue
		}

		if resp.Status < 200 || resp.Status > 299 {
			attempts++
			if attempts >= d.opts.MaxAttempts {
				return d.fail(types.FailServerError, fmt.Errorf("persistent status %d", resp.Status))
			}
			d.logger.Debug("server error, retrying",
				"site", d.site.Name, "unit", d.unit.Label(),
				"status", resp.Status, "attempt", attempts)
			continue
		}

		attempts = 0
		d.pol.ResetBackoff()

		firstPage := d.progress.PagesFetched == 0
		d.progress.PagesFetched++

		if err := strat.observe(resp.Body, firstPage); err != nil {
			if errors.Is(err, ErrProtocolMismatch) {
				return d.fail(types.FailProtocolMismatch, err)
			}
			return d.fail(types.FailServerError, err)
		}

		raws := d.pipe.Extract(d.sess.Base(), resp.Body)
		if len(raws) == 0 {
			d.progress.ConsecutiveEmpty++
			if d.progress.ConsecutiveEmpty >= d.opts.EmptyPageThreshold {
				return d.finish()
			}
		} else {
			d.progress.ConsecutiveEmpty = 0
			for _, raw := range raws {
				rec, ok := d.pipe.Normalize(raw)
				if !ok {
					continue
				}
				if !emit(rec) {
					return d.fail(types.FailTransient, context.Canceled)
				}
			}
		}

		if d.progress.PagesFetched >= d.opts.MaxPages {
			d.logger.Warn("page safety bound reached",
				"site", d.site.Name, "unit", d.unit.Label(), "pages", d.progress.PagesFetched)
			return d.finish()
		}

		next, ok := strat.next(len(raws))
		if !ok {
			return d.finish()
		}
		req = next
		d.state = StateHasMore
	}
}

func (d *Driver) finish() Outcome {
	d.state = StateExhausted
	return Outcome{State: StateExhausted, Pages: d.progress.PagesFetched}
}

func (d *Driver) fail(kind types.FailureKind, err error) Outcome {
	d.state = StateFailed
	return Outcome{State: StateFailed, Kind: kind, Err: err, Pages: d.progress.PagesFetched}
}
