package sites

import (
	"net/http"
	"net/url"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/session"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

// countyroll is the reference adapter for WebForms targets: every grid page
// turn is a postback carrying the server's round-tripped hidden state, and
// the next page control is discovered from __doPostBack hrefs in the
// current body.
func init() {
	tokens := []adapter.TokenField{
		{Name: "__VIEWSTATE", Extract: adapter.HiddenInput("__VIEWSTATE"), Required: true},
		{Name: "__VIEWSTATEGENERATOR", Extract: adapter.HiddenInput("__VIEWSTATEGENERATOR")},
		{Name: "__EVENTVALIDATION", Extract: adapter.HiddenInput("__EVENTVALIDATION"), Required: true},
	}

	Register(adapter.Site{
		Name:     "countyroll",
		BaseURL:  "https://rolls.countycourts.example.us/attorneys/search.aspx",
		PageSize: 25,
		Axes: []adapter.Axis{
			{Name: "county", Values: []string{"Adams", "Brown", "Clark"}},
		},
		Pagination: adapter.Pagination{
			Kind: adapter.Token,
			InitialRequest: func(unit types.WorkUnit) session.Request {
				q := url.Values{}
				q.Set("county", unit.Value("county"))
				return session.Request{Method: http.MethodGet, URL: "search.aspx?" + q.Encode()}
			},
			Tokens:   tokens,
			FindNext: adapter.PostbackLinks(`gvAttorneys`),
			PostRequest: func(unit types.WorkUnit, pb adapter.Postback, tok map[string]string) session.Request {
				form := url.Values{}
				for name, value := range tok {
					form.Set(name, value)
				}
				form.Set("__EVENTTARGET", pb.Target)
				form.Set("__EVENTARGUMENT", pb.Argument)
				form.Set("ctl00$MainContent$txtCounty", unit.Value("county"))
				return session.Request{Method: http.MethodPost, URL: "search.aspx", Form: form}
			},
		},
		DetectBlock: adapter.DefaultDetectBlock,
		Extractors: []adapter.Extractor{
			adapter.TableRows("table#gvAttorneys tr.data-row", map[string]string{
				adapter.FieldFullName:   "td.attorney-name",
				adapter.FieldExternalID: "td.registration-no",
				adapter.FieldAddress:    "td.address",
				adapter.FieldStatus:     "td.standing",
			}),
			adapter.LinkScan(`attorneydetail\.aspx\?id=\d+`),
		},
		Fields:    adapter.FieldMapper{},
		RateScope: adapter.RateScopeUnit,
	})
}
