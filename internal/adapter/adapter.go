// Package adapter defines the declarative contract between the crawl engine
// and per-site modules. A site contributes configuration and closures only;
// it never receives engine internals such as the session or pagination
// state, so there is no room for per-site control-flow forks.
package adapter

import (
	"net/url"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/session"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

// Canonical field names understood by the normalizer. Adapters map their raw
// extraction keys onto these.
const (
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldFullName     = "full_name"
	FieldOrganization = "organization"
	FieldCity         = "city"
	FieldRegion       = "region"
	FieldPostalCode   = "postal_code"
	FieldPhone        = "phone"
	FieldEmail        = "email"
	FieldWebsite      = "website"
	FieldExternalID   = "external_id"
	FieldStatus       = "status"
	FieldProfileURL   = "profile_url"
	FieldAddress      = "address"
	FieldTag          = "tag"
)

// StrategyKind selects the pagination protocol a site speaks.
type StrategyKind string

const (
	// Offset walks numbered result pages.
	Offset StrategyKind = "offset"
	// Token re-plays server round-tripped state (WebForms postbacks and
	// friends) on every request.
	Token StrategyKind = "token"
	// Cursor passes an opaque continuation value verbatim.
	Cursor StrategyKind = "cursor"
)

// RateScope decides whether a site shares one rate budget across the run or
// scopes it per work unit.
type RateScope string

const (
	RateScopeRun  RateScope = "run"
	RateScopeUnit RateScope = "unit"
)

// Axis is one search dimension of a site (location, practice area, name
// prefix). The engine enumerates the cross-product of all axes.
type Axis struct {
	Name   string
	Values []string
}

// TokenField names one round-tripped token and how to find it.
type TokenField struct {
	Name    string
	Extract session.TokenExtractor
	// Required tokens missing on the first response abort the unit as a
	// protocol mismatch instead of paginating blind.
	Required bool
}

// Postback identifies the server control invoked to advance a token-driven
// grid (event target plus optional argument).
type Postback struct {
	Target   string
	Argument string
}

// Pagination carries the strategy-specific configuration for a site.
type Pagination struct {
	Kind StrategyKind

	// Offset: FirstPage is the site's first page number (0 or 1) and
	// PageRequest builds the request for a given page.
	FirstPage   int
	PageRequest func(unit types.WorkUnit, page int) session.Request

	// Token and Cursor: InitialRequest builds the unit's first fetch.
	InitialRequest func(unit types.WorkUnit) session.Request

	// Token: tracked tokens, the link-finder locating the next postback
	// candidate, and the builder turning it into the next request.
	Tokens      []TokenField
	FindNext    func(body []byte) (Postback, bool)
	PostRequest func(unit types.WorkUnit, pb Postback, tokens map[string]string) session.Request

	// Cursor: extractor for the continuation value and the builder for the
	// follow-up request.
	Cursor        func(body []byte) (string, bool)
	CursorRequest func(unit types.WorkUnit, cursor string) session.Request
}

// Extractor is one strategy in a site's ordered fallback chain. Run returns
// the records it could find; an error is treated like an empty result so a
// lower-priority strategy can still fire.
type Extractor struct {
	Name string
	Run  func(base *url.URL, body []byte) ([]types.RawRecord, error)
}

// FieldMapper declares how a site's raw keys map onto canonical fields and
// any site-specific decoding applied before normalisation.
type FieldMapper struct {
	// Map translates raw keys to canonical field names. Raw keys already
	// using canonical names pass through without an entry.
	Map map[string]string
	// Decode hooks run per raw key before mapping (non-standard email
	// obfuscation variants and similar).
	Decode map[string]func(string) string
}

// Canonical resolves a raw key to its canonical field name.
func (m FieldMapper) Canonical(rawKey string) string {
	if m.Map != nil {
		if mapped, ok := m.Map[rawKey]; ok {
			return mapped
		}
	}
	return rawKey
}

// Apply runs the raw key's decode hook, if any.
func (m FieldMapper) Apply(rawKey, value string) string {
	if m.Decode != nil {
		if fn, ok := m.Decode[rawKey]; ok {
			return fn(value)
		}
	}
	return value
}

// Site is the complete declarative description of one target directory.
type Site struct {
	Name     string
	BaseURL  string
	PageSize int
	Axes     []Axis

	Pagination Pagination

	// Headers is a browser-mimicry overlay merged into every request.
	Headers map[string]string

	// DetectBlock classifies a response as an automated-traffic block
	// (429/403/406 or a challenge marker in the body).
	DetectBlock func(status int, body []byte) bool

	// ResultCount extracts the total result count, when the site announces
	// one on the first page.
	ResultCount func(body []byte) (int, bool)

	// Extractors is the ordered fallback chain; the first non-empty result
	// wins.
	Extractors []Extractor

	Fields FieldMapper

	RateScope RateScope
	UseRobots bool
}

// Units expands the cross-product of the site's axes, optionally narrowed
// by per-run overrides. A site with no axes yields a single unit.
func (s Site) Units(overrides map[string][]string) []types.WorkUnit {
	axes := make([]Axis, 0, len(s.Axes))
	for _, ax := range s.Axes {
		values := ax.Values
		if overrides != nil {
			if narrowed, ok := overrides[ax.Name]; ok && len(narrowed) > 0 {
				values = narrowed
			}
		}
		if len(values) == 0 {
			continue
		}
		axes = append(axes, Axis{Name: ax.Name, Values: values})
	}

	units := []types.WorkUnit{{Values: map[string]string{}}}
	for _, ax := range axes {
		expanded := make([]types.WorkUnit, 0, len(units)*len(ax.Values))
		for _, u := range units {
			for _, v := range ax.Values {
				values := make(map[string]string, len(u.Values)+1)
				for k, existing := range u.Values {
					values[k] = existing
				}
				values[ax.Name] = v
				expanded = append(expanded, types.WorkUnit{Values: values})
			}
		}
		units = expanded
	}

	for i := range units {
		units[i].Index = i
	}
	return units
}

// DefaultDetectBlock flags the classic mitigation status codes and common
// challenge markers.
func DefaultDetectBlock(status int, body []byte) bool {
	switch status {
	case 429, 403, 406:
		return true
	}
	return ContainsChallengeMarker(body)
}
