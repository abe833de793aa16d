package adapter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnitsCrossProduct(t *testing.T) {
	site := Site{
		Axes: []Axis{
			{Name: "region", Values: []string{"NV", "UT"}},
			{Name: "practice", Values: []string{"family", "tax", "ip"}},
		},
	}

	units := site.Units(nil)
	require.Len(t, units, 6)
	for i, u := range units {
		require.Equal(t, i, u.Index)
		require.NotEmpty(t, u.Value("region"))
		require.NotEmpty(t, u.Value("practice"))
	}

	labels := map[string]struct{}{}
	for _, u := range units {
		labels[u.Label()] = struct{}{}
	}
	require.Len(t, labels, 6)
}

func TestUnitsOverridesNarrowAxes(t *testing.T) {
	site := Site{
		Axes: []Axis{
			{Name: "region", Values: []string{"NV", "UT", "AZ"}},
			{Name: "practice", Values: []string{"family", "tax"}},
		},
	}

	units := site.Units(map[string][]string{"region": {"AZ"}})
	require.Len(t, units, 2)
	for _, u := range units {
		require.Equal(t, "AZ", u.Value("region"))
	}
}

func TestUnitsNoAxesYieldsSingleUnit(t *testing.T) {
	units := Site{}.Units(nil)
	require.Len(t, units, 1)
	require.Empty(t, units[0].Values)
}

func TestHiddenInput(t *testing.T) {
	body := []byte(`<form>
		<input type="hidden" name="__VIEWSTATE" value="dDwtMTQ4OTIx" />
		<input type="hidden" name="__EVENTVALIDATION" value="" />
	</form>`)

	value, ok := HiddenInput("__VIEWSTATE")(body)
	require.True(t, ok)
	require.Equal(t, "dDwtMTQ4OTIx", value)

	// present but empty is still a hit
	value, ok = HiddenInput("__EVENTVALIDATION")(body)
	require.True(t, ok)
	require.Empty(t, value)

	_, ok = HiddenInput("__VIEWSTATEGENERATOR")(body)
	require.False(t, ok)
}

func TestRegexToken(t *testing.T) {
	extract := RegexToken(`"nextCursor"\s*:\s*"([^"]+)"`)
	value, ok := extract([]byte(`{"nextCursor":"abc123","results":[]}`))
	require.True(t, ok)
	require.Equal(t, "abc123", value)

	_, ok = extract([]byte(`{"results":[]}`))
	require.False(t, ok)
}

func TestCountPattern(t *testing.T) {
	count := CountPattern(`of\s+([\d,]+)\s+results`)

	n, ok := count([]byte("Showing 1-20 of 1,284 results"))
	require.True(t, ok)
	require.Equal(t, 1284, n)

	_, ok = count([]byte("no results found"))
	require.False(t, ok)
}

func TestTableRowsResolvesAnchors(t *testing.T) {
	base, _ := url.Parse("https://directory.example/search")
	body := []byte(`<table id="results">
		<tr class="row"><td class="name"><a href="/profile/101">Iris Wong</a></td><td class="city">Reno</td></tr>
		<tr class="row"><td class="name"><a href="/profile/102">Jon Mack</a></td><td class="city">Elko</td></tr>
	</table>`)

	records, err := TableRows("tr.row", map[string]string{
		"full_name": "td.name",
		"city":      "td.city",
	}).Run(base, body)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Iris Wong", records[0].First("full_name"))
	require.Equal(t, "https://directory.example/profile/101", records[0].First("full_name_url"))
	require.Equal(t, "Elko", records[1].First("city"))
}

func TestLinkScanMatchesProfileHrefs(t *testing.T) {
	base, _ := url.Parse("https://directory.example/")
	body := []byte(`<div>
		<a href="/attorney/55">Kay Boone</a>
		<a href="/about">About us</a>
		<a href="/attorney/56"></a>
	</div>`)

	records, err := LinkScan(`/attorney/\d+`).Run(base, body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Kay Boone", records[0].First(FieldFullName))
	require.Equal(t, "https://directory.example/attorney/55", records[0].First(FieldProfileURL))
}

func TestJSONList(t *testing.T) {
	body := []byte(`{"total":2,"results":[
		{"name":"Lena Park","barNumber":9920,"active":true,"practiceAreas":["family","tax"]},
		{"name":"Mo Idris"}
	]}`)

	records, err := JSONList("results").Run(nil, body)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Lena Park", records[0].First("name"))
	require.Equal(t, "9920", records[0].First("barNumber"))
	require.Equal(t, "true", records[0].First("active"))
	require.Equal(t, []string{"family", "tax"}, records[0]["practiceAreas"])

	// top-level array form
	records, err = JSONList("").Run(nil, []byte(`[{"name":"Nia Cole"}]`))
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = JSONList("results").Run(nil, []byte(`<html>not json</html>`))
	require.Error(t, err)
}

func TestPostbackLinksPicksSuccessorPage(t *testing.T) {
	findNext := PostbackLinks(`gvAttorneys`)

	// first page: sort controls are ignored, page 2 is next
	page1 := []byte(`<a href="javascript:__doPostBack('ctl00$main$gvAttorneys','Sort$Name')">Name</a>
		<a href="javascript:__doPostBack('ctl00$main$gvAttorneys','Page$2')">2</a>
		<a href="javascript:__doPostBack('ctl00$main$gvAttorneys','Page$3')">3</a>`)
	pb, ok := findNext(page1)
	require.True(t, ok)
	require.Equal(t, "ctl00$main$gvAttorneys", pb.Target)
	require.Equal(t, "Page$2", pb.Argument)

	// second page: its pager links pages 1 and 3, never itself
	page2 := []byte(`<a href="javascript:__doPostBack('ctl00$main$gvAttorneys','Page$1')">1</a>
		<a href="javascript:__doPostBack('ctl00$main$gvAttorneys','Page$3')">3</a>`)
	pb, ok = findNext(page2)
	require.True(t, ok)
	require.Equal(t, "Page$3", pb.Argument)

	// last page: no successor to move to
	page3 := []byte(`<a href="javascript:__doPostBack('ctl00$main$gvAttorneys','Page$1')">1</a>
		<a href="javascript:__doPostBack('ctl00$main$gvAttorneys','Page$2')">2</a>`)
	_, ok = findNext(page3)
	require.False(t, ok)
}

func TestPostbackLinksPrefersNextControl(t *testing.T) {
	body := []byte(`<a href="javascript:__doPostBack('ctl00$main$gvAttorneys','Page$1')">1</a>
		<a href="javascript:__doPostBack('ctl00$main$gvAttorneys','Page$Next')">&gt;</a>`)

	pb, ok := PostbackLinks(`gvAttorneys`)(body)
	require.True(t, ok)
	require.Equal(t, "Page$Next", pb.Argument)

	_, ok = PostbackLinks(`gvSolicitors`)(body)
	require.False(t, ok)
}

func TestDefaultDetectBlock(t *testing.T) {
	require.True(t, DefaultDetectBlock(429, nil))
	require.True(t, DefaultDetectBlock(403, nil))
	require.True(t, DefaultDetectBlock(406, nil))
	require.False(t, DefaultDetectBlock(200, []byte("<html>20 results</html>")))
	require.True(t, DefaultDetectBlock(200, []byte("<html>Please complete the CAPTCHA to continue</html>")))
	require.True(t, DefaultDetectBlock(503, []byte("Request unsuccessful. Incapsula incident ID")))
	require.False(t, DefaultDetectBlock(500, []byte("internal error")))
}
