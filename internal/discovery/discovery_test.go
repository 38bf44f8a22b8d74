package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupeByExternalVersionPrefersLaterLocation(t *testing.T) {
	versions := []DiscoveredVersion{
		{ExternalVersion: "96.0", SourceLocation: "historical/"},
		{ExternalVersion: "97.0", SourceLocation: "historical/"},
		{ExternalVersion: "96.0", SourceLocation: "current/"},
	}

	deduped := DedupeByExternalVersion(versions)

	assert.Len(t, deduped, 2)
	for _, v := range deduped {
		if v.ExternalVersion == "96.0" {
			assert.Equal(t, "current/", v.SourceLocation)
		}
	}
}

func TestSortOldestFirstByDateNotLexical(t *testing.T) {
	versions := []DiscoveredVersion{
		{ExternalVersion: "10.0", ReleaseDate: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)},
		{ExternalVersion: "9.0", ReleaseDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)},
	}

	SortOldestFirst(versions)

	assert.Equal(t, "9.0", versions[0].ExternalVersion)
	assert.Equal(t, "10.0", versions[1].ExternalVersion)
}

func TestSortOldestFirstCurrentLast(t *testing.T) {
	versions := []DiscoveredVersion{
		{ExternalVersion: "2024_02", IsCurrent: true, ReleaseDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ExternalVersion: "2023_01", IsCurrent: false, ReleaseDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	SortOldestFirst(versions)

	assert.Equal(t, "2023_01", versions[0].ExternalVersion)
	assert.True(t, versions[1].IsCurrent)
}

func TestIsVersionEntryFiltersNonVersionNames(t *testing.T) {
	assert.False(t, IsVersionEntry("README.txt"))
	assert.False(t, IsVersionEntry("CHECKSUMS"))
	assert.True(t, IsVersionEntry("2024_01"))
}

func TestParseEnsemblListingOrdersNumerically(t *testing.T) {
	html := `<html><body><pre>
<a href="release-110/">release-110/</a>         18-Jul-2023 12:00    -
<a href="release-96/">release-96/</a>           04-Apr-2019 09:30    -
<a href="README">README</a>                    01-Jan-2019 00:00  1kB
<a href="release-109/">release-109/</a>         14-Feb-2023 08:15    -
</pre></body></html>`

	versions := parseEnsemblListing(html, "https://ftp.ensembl.org/pub")

	assert.Len(t, versions, 3)
	assert.Equal(t, "96", versions[0].ExternalVersion)
	assert.Equal(t, "109", versions[1].ExternalVersion)
	assert.Equal(t, "110", versions[2].ExternalVersion)
	assert.Equal(t, "https://ftp.ensembl.org/pub/release-110/", versions[2].SourceLocation)
	assert.Equal(t, time.Date(2019, 4, 4, 0, 0, 0, 0, time.UTC), versions[0].ReleaseDate)
}

func TestFilterFromVersion(t *testing.T) {
	versions := []DiscoveredVersion{
		{ExternalVersion: "95.0"},
		{ExternalVersion: "96.0"},
		{ExternalVersion: "97.0"},
	}

	filtered := FilterFromVersion(versions, "96.0")

	assert.Len(t, filtered, 2)
	assert.Equal(t, "96.0", filtered[0].ExternalVersion)
}
