package extract

import (
	"errors"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

func fixedExtractor(name string, records []types.RawRecord, calls *int) adapter.Extractor {
	return adapter.Extractor{
		Name: name,
		Run: func(*url.URL, []byte) ([]types.RawRecord, error) {
			*calls++
			return records, nil
		},
	}
}

func record(kv map[string]string) types.RawRecord {
	rec := types.RawRecord{}
	for k, v := range kv {
		rec.Add(k, v)
	}
	return rec
}

func testSite(extractors ...adapter.Extractor) adapter.Site {
	return adapter.Site{Name: "fixture", Extractors: extractors}
}

func TestExtractShortCircuitsOnFirstHit(t *testing.T) {
	var first, second, third int
	site := testSite(
		fixedExtractor("primary", []types.RawRecord{record(map[string]string{"full_name": "A"})}, &first),
		fixedExtractor("secondary", []types.RawRecord{record(map[string]string{"full_name": "B"})}, &second),
		fixedExtractor("generic", nil, &third),
	)
	p := NewPipeline(site, slog.Default())

	out := p.Extract(nil, []byte("<html/>"))
	require.Len(t, out, 1)
	require.Equal(t, "A", out[0].First("full_name"))
	require.Equal(t, 1, first)
	require.Zero(t, second)
	require.Zero(t, third)
}

func TestExtractFallsThroughEmptyAndErroredStrategies(t *testing.T) {
	var second, third int
	errored := adapter.Extractor{
		Name: "broken",
		Run: func(*url.URL, []byte) ([]types.RawRecord, error) {
			return nil, errors.New("selector set not present")
		},
	}
	site := testSite(
		errored,
		fixedExtractor("empty", nil, &second),
		fixedExtractor("generic", []types.RawRecord{
			record(map[string]string{"full_name": "Vera Cole"}),
			record(map[string]string{"full_name": "Omar Haddad"}),
		}, &third),
	)
	p := NewPipeline(site, slog.Default())

	out := p.Extract(nil, []byte("<html/>"))
	require.Len(t, out, 2)
	require.Equal(t, 1, second)
	require.Equal(t, 1, third)
}

func TestExtractAllEmpty(t *testing.T) {
	var calls int
	p := NewPipeline(testSite(fixedExtractor("only", nil, &calls)), slog.Default())
	require.Empty(t, p.Extract(nil, []byte("<html/>")))
	require.Equal(t, 1, calls)
}

func TestNormalizeAppliesMappingAndHelpers(t *testing.T) {
	site := adapter.Site{
		Name: "fixture",
		Fields: adapter.FieldMapper{
			Map: map[string]string{
				"attorney": adapter.FieldFullName,
				"bar_no":   adapter.FieldExternalID,
				"addr":     adapter.FieldAddress,
				"tel":      adapter.FieldPhone,
				"areas":    adapter.FieldTag,
			},
		},
	}
	p := NewPipeline(site, slog.Default())

	raw := record(map[string]string{
		"attorney": "Alvarez, Sofia M.",
		"bar_no":   "88412",
		"addr":     "12 Court Sq\nRiverton, WY 82501",
		"tel":      "Phone (307) 555-0101",
	})
	raw.Add("areas", "family")
	raw.Add("areas", "probate")

	rec, ok := p.Normalize(raw)
	require.True(t, ok)
	require.Equal(t, "fixture", rec.Source)
	require.Equal(t, "Sofia", rec.FirstName)
	require.Equal(t, "Alvarez", rec.LastName)
	require.Equal(t, "88412", rec.ExternalID)
	require.Equal(t, "Riverton", rec.City)
	require.Equal(t, "WY", rec.Region)
	require.Equal(t, "82501", rec.PostalCode)
	require.Equal(t, "(307) 555-0101", rec.Phone)
	require.Equal(t, []string{"family", "probate"}, rec.Tags)
}

func TestNormalizeDropsUnidentifiableRecords(t *testing.T) {
	p := NewPipeline(adapter.Site{Name: "fixture"}, slog.Default())
	_, ok := p.Normalize(record(map[string]string{"phone": "555-0100"}))
	require.False(t, ok)
}

func TestNormalizeDecodeHookRunsBeforeMapping(t *testing.T) {
	site := adapter.Site{
		Name: "fixture",
		Fields: adapter.FieldMapper{
			Map: map[string]string{"contact": adapter.FieldEmail},
			Decode: map[string]func(string) string{
				"contact": func(s string) string { return s + "@chambers.example" },
			},
		},
	}
	p := NewPipeline(site, slog.Default())

	rec, ok := p.Normalize(record(map[string]string{
		"full_name": "Dana Whitfield",
		"contact":   "dwhitfield",
	}))
	require.True(t, ok)
	require.Equal(t, "dwhitfield@chambers.example", rec.Email)
}

func TestSeenSetDedupesAcrossPages(t *testing.T) {
	seen := NewSeenSet()

	a := types.Record{ExternalID: "4471", FullName: "Gail Ortiz"}
	b := types.Record{ExternalID: "4471", FullName: "Gail M. Ortiz"}
	require.True(t, seen.Admit(a.DedupKey()))
	require.False(t, seen.Admit(b.DedupKey()))

	// records without an external id fall back to name+location
	c := types.Record{FullName: "Hank Pym", City: "Fairview", Region: "OH"}
	d := types.Record{FullName: "Hank Pym", City: "Fairview", Region: "OH"}
	e := types.Record{FullName: "Hank Pym", City: "Fairview", Region: "PA"}
	require.True(t, seen.Admit(c.DedupKey()))
	require.False(t, seen.Admit(d.DedupKey()))
	require.True(t, seen.Admit(e.DedupKey()))

	require.Equal(t, 3, seen.Len())
}
