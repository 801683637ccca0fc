package musicstore

import (
	"regexp"
	"testing"
)

// camelIdent matches a CamelCase identifier that is not wrapped in quotes.
var camelIdent = regexp.MustCompile(`(^|[^"\w])([A-Z][a-z]+[A-Z]\w*|[a-z]+_[a-z_]+)([^"\w]|$)`)

func TestQueriesQuoteIdentifiers(t *testing.T) {
	t.Parallel()

	queries := map[string]string{
		"customer":         queryCustomer,
		"invoices":         queryInvoices,
		"purchased albums": queryPurchasedAlbums,
		"top artists":      queryTopArtists,
		"albums by artist": queryAlbumsByArtists,
		"tracks by artist": queryTracksByArtists,
	}
	for name, q := range queries {
		if m := camelIdent.FindStringSubmatch(q); m != nil {
			t.Fatalf("%s query has unquoted identifier %q", name, m[2])
		}
	}

	for name, q := range map[string]string{"artists": queryArtists, "tracks": queryTracks} {
		for _, m := range camelIdent.FindAllStringSubmatch(q, -1) {
			// snake_case aliases are the bun scan targets and stay unquoted.
			if m[2][0] >= 'A' && m[2][0] <= 'Z' {
				t.Fatalf("%s query has unquoted identifier %q", name, m[2])
			}
		}
	}
}
