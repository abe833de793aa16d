// Package extract turns response bodies into canonical records via a
// short-circuiting fallback chain of site-declared strategies, then
// normalizes and deduplicates them.
package extract

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

// Pipeline applies one site's extraction chain and field mapping.
type Pipeline struct {
	source     string
	extractors []adapter.Extractor
	fields     adapter.FieldMapper
	logger     *slog.Logger
}

// NewPipeline builds a pipeline for one site.
func NewPipeline(site adapter.Site, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:     site.Name,
		extractors: site.Extractors,
		fields:     site.Fields,
		logger:     logger,
	}
}

// Extract tries the strategies in declared priority order and returns the
// first non-empty result; lower-priority strategies never run once a higher
// one succeeds. Extractor errors count as empty results so the generic
// fallbacks still get their turn.
func (p *Pipeline) Extract(base *url.URL, body []byte) []types.RawRecord {
	for _, ex := range p.extractors {
		records, err := ex.Run(base, body)
		if err != nil {
			p.logger.Debug("extractor failed", "site", p.source, "strategy", ex.Name, "error", err)
			continue
		}
		if len(records) > 0 {
			return records
		}
	}
	return nil
}

// Normalize applies the site's field mapping plus the shared
// canonicalisation helpers. Records without a usable name or external
// identifier are dropped.
func (p *Pipeline) Normalize(raw types.RawRecord) (types.Record, bool) {
	rec := types.Record{Source: p.source}

	for rawKey, values := range raw {
		canonical := p.fields.Canonical(rawKey)
		for _, v := range values {
			v = strings.TrimSpace(p.fields.Apply(rawKey, v))
			if v == "" {
				continue
			}
			p.assign(&rec, canonical, v)
		}
	}

	if rec.FullName == "" && (rec.FirstName != "" || rec.LastName != "") {
		rec.FullName = strings.TrimSpace(rec.FirstName + " " + rec.LastName)
	}
	if rec.FullName != "" && rec.FirstName == "" && rec.LastName == "" {
		rec.FirstName, rec.LastName = SplitName(rec.FullName)
	}

	if rec.FullName == "" && rec.ExternalID == "" {
		return types.Record{}, false
	}
	return rec, true
}

func (p *Pipeline) assign(rec *types.Record, field, value string) {
	switch field {
	case adapter.FieldFirstName:
		setIfEmpty(&rec.FirstName, value)
	case adapter.FieldLastName:
		setIfEmpty(&rec.LastName, value)
	case adapter.FieldFullName:
		setIfEmpty(&rec.FullName, value)
	case adapter.FieldOrganization:
		setIfEmpty(&rec.Organization, value)
	case adapter.FieldCity:
		setIfEmpty(&rec.City, value)
	case adapter.FieldRegion:
		setIfEmpty(&rec.Region, value)
	case adapter.FieldPostalCode:
		setIfEmpty(&rec.PostalCode, value)
	case adapter.FieldPhone:
		setIfEmpty(&rec.Phone, CleanPhone(value))
	case adapter.FieldEmail:
		setIfEmpty(&rec.Email, DecodeEmail(value))
	case adapter.FieldWebsite:
		setIfEmpty(&rec.Website, value)
	case adapter.FieldExternalID:
		setIfEmpty(&rec.ExternalID, value)
	case adapter.FieldStatus:
		setIfEmpty(&rec.Status, value)
	case adapter.FieldProfileURL:
		setIfEmpty(&rec.ProfileURL, value)
	case adapter.FieldAddress:
		if city, region, postal, ok := SplitAddress(value); ok {
			setIfEmpty(&rec.City, city)
			setIfEmpty(&rec.Region, region)
			setIfEmpty(&rec.PostalCode, postal)
		}
	case adapter.FieldTag:
		rec.Tags = append(rec.Tags, value)
	}
}

func setIfEmpty(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

// SeenSet is the run-scoped dedup set. Safe for concurrent units.
type SeenSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewSeenSet returns an empty dedup set.
func NewSeenSet() *SeenSet {
	return &SeenSet{keys: make(map[string]struct{})}
}

// Admit records the key and reports whether it was new. Duplicates are
// discarded silently by callers; a repeat is not an error.
func (s *SeenSet) Admit(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.keys[key]; dup {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Len reports how many distinct keys the run has seen.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
