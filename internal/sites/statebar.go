package sites

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/session"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

// statebar is the reference adapter for the most common target shape: a
// stateless query-string search over a server-rendered result table with a
// numeric page parameter and a "1 - 20 of N" total banner.
func init() {
	Register(adapter.Site{
		Name:     "statebar",
		BaseURL:  "https://apps.statebar.example.gov/member-search/",
		PageSize: 20,
		Axes: []adapter.Axis{
			{Name: "city", Values: []string{"Springfield", "Riverton", "Fairview"}},
			{Name: "practice", Values: []string{"family", "criminal", "real-estate"}},
		},
		Pagination: adapter.Pagination{
			Kind:      adapter.Offset,
			FirstPage: 1,
			PageRequest: func(unit types.WorkUnit, page int) session.Request {
				q := url.Values{}
				q.Set("City", unit.Value("city"))
				q.Set("PracticeArea", unit.Value("practice"))
				q.Set("PageNumber", fmt.Sprintf("%d", page))
				return session.Request{Method: http.MethodGet, URL: "Results?" + q.Encode()}
			},
		},
		DetectBlock: adapter.DefaultDetectBlock,
		ResultCount: adapter.CountPattern(`of\s+([\d,]+)\s+(?:results|members)`),
		Extractors: []adapter.Extractor{
			adapter.TableRows("table.member-results tbody tr", map[string]string{
				adapter.FieldFullName:   "td.name a",
				adapter.FieldExternalID: "td.bar-number",
				adapter.FieldCity:       "td.city",
				adapter.FieldStatus:     "td.status",
				adapter.FieldPhone:      "td.phone",
			}),
			adapter.Cards("div.member-card", map[string]string{
				adapter.FieldFullName:   "h3.member-name a",
				adapter.FieldExternalID: "span.bar-no",
				adapter.FieldCity:       "span.locality",
				adapter.FieldStatus:     "span.standing",
			}),
			adapter.LinkScan(`/member-search/profile/\d+`),
		},
		Fields: adapter.FieldMapper{
			Map: map[string]string{
				adapter.FieldFullName + "_url": adapter.FieldProfileURL,
			},
		},
		RateScope: adapter.RateScopeRun,
		UseRobots: true,
	})
}
