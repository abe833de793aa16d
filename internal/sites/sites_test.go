package sites

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
)

func TestShippedAdaptersAreRegistered(t *testing.T) {
	require.Equal(t, []string{"countyroll", "lawfinder", "statebar"}, Names())
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	site, ok := Lookup("  StateBar ")
	require.True(t, ok)
	require.Equal(t, "statebar", site.Name)

	_, ok = Lookup("unknown-directory")
	require.False(t, ok)
}

// Every registered adapter must carry the pieces its pagination strategy
// needs, a base URL, and at least one extractor; a broken registration
// should fail here rather than mid-run.
func TestRegisteredAdaptersAreComplete(t *testing.T) {
	for _, name := range Names() {
		site, ok := Lookup(name)
		require.True(t, ok)

		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, site.BaseURL)
			require.NotEmpty(t, site.Extractors)
			require.NotNil(t, site.DetectBlock)

			switch site.Pagination.Kind {
			case adapter.Offset:
				require.NotNil(t, site.Pagination.PageRequest)
				require.Positive(t, site.PageSize)
			case adapter.Token:
				require.NotNil(t, site.Pagination.InitialRequest)
				require.NotNil(t, site.Pagination.FindNext)
				require.NotNil(t, site.Pagination.PostRequest)
				require.NotEmpty(t, site.Pagination.Tokens)
			case adapter.Cursor:
				require.NotNil(t, site.Pagination.InitialRequest)
				require.NotNil(t, site.Pagination.Cursor)
				require.NotNil(t, site.Pagination.CursorRequest)
			default:
				t.Fatalf("adapter %q has unknown pagination kind %q", name, site.Pagination.Kind)
			}
		})
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	require.Panics(t, func() {
		Register(adapter.Site{Name: "statebar"})
	})
	require.Panics(t, func() {
		Register(adapter.Site{Name: "   "})
	})
}
