package sites

import (
	"net/http"
	"net/url"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/session"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

// lawfinder is the reference adapter for single-page-app backends whose
// JSON API was discovered opportunistically: cursor continuation plus a
// probe chain of likely response shapes. Best effort by nature.
func init() {
	searchRequest := func(unit types.WorkUnit, cursor string) session.Request {
		q := url.Values{}
		q.Set("region", unit.Value("region"))
		q.Set("size", "50")
		if cursor != "" {
			q.Set("after", cursor)
		}
		return session.Request{
			Method: http.MethodGet,
			URL:    "api/v2/solicitors?" + q.Encode(),
			Header: map[string]string{"Accept": "application/json"},
		}
	}

	Register(adapter.Site{
		Name:     "lawfinder",
		BaseURL:  "https://find-a-solicitor.example.org/",
		PageSize: 50,
		Axes: []adapter.Axis{
			{Name: "region", Values: []string{"north", "midlands", "south-east", "south-west"}},
		},
		Pagination: adapter.Pagination{
			Kind: adapter.Cursor,
			InitialRequest: func(unit types.WorkUnit) session.Request {
				return searchRequest(unit, "")
			},
			Cursor: adapter.RegexToken(`"nextCursor"\s*:\s*"([^"]+)"`),
			CursorRequest: func(unit types.WorkUnit, cursor string) session.Request {
				return searchRequest(unit, cursor)
			},
		},
		DetectBlock: adapter.DefaultDetectBlock,
		Extractors: []adapter.Extractor{
			adapter.JSONList("results"),
			adapter.JSONList("items"),
			adapter.JSONList(""),
		},
		Fields: adapter.FieldMapper{
			Map: map[string]string{
				"name":          adapter.FieldFullName,
				"firm":          adapter.FieldOrganization,
				"town":          adapter.FieldCity,
				"postcode":      adapter.FieldPostalCode,
				"sraNumber":     adapter.FieldExternalID,
				"telephone":     adapter.FieldPhone,
				"emailAddress":  adapter.FieldEmail,
				"websiteUrl":    adapter.FieldWebsite,
				"profileUrl":    adapter.FieldProfileURL,
				"practiceAreas": adapter.FieldTag,
			},
		},
		RateScope: adapter.RateScopeRun,
	})
}
