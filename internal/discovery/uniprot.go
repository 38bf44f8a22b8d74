package discovery

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/biopkg/bdp/internal/httpx"
)

// uniprotReleaseBase mirrors the upstream UniProt release tree used by the
// original ingester to fetch release notes and knowledgebase archives.
const uniprotReleaseBase = "https://ftp.uniprot.org/pub/databases/uniprot"

var uniprotVersionPattern = regexp.MustCompile(`^\d{4}_\d{2}$`)

// UniProtDriver discovers UniProt knowledgebase releases (e.g. "2024_01")
// by listing the release_notes archive, which lists every historical
// release directory alongside "current_release".
type UniProtDriver struct {
	releaseBase string
	maxRetries  int
}

func NewUniProtDriver() *UniProtDriver {
	return &UniProtDriver{
		releaseBase: uniprotReleaseBase,
		maxRetries:  3,
	}
}

func (d *UniProtDriver) Name() string { return "uniprot" }

// DiscoverAllVersions lists the historical_releases directory plus the
// current_release pointer, deduping by release identifier.
func (d *UniProtDriver) DiscoverAllVersions(ctx context.Context) ([]DiscoveredVersion, error) {
	var entries []string
	err := retry(ctx, d.Name(), d.maxRetries, func() error {
		listed, ferr := d.listDirectory(ctx, d.releaseBase+"/previous_releases/")
		if ferr != nil {
			return ferr
		}
		entries = listed
		return nil
	})
	if err != nil {
		return nil, err
	}

	versions := make([]DiscoveredVersion, 0, len(entries))
	for _, name := range entries {
		if !IsVersionEntry(name) || !uniprotVersionPattern.MatchString(name) {
			continue
		}
		versions = append(versions, DiscoveredVersion{
			ExternalVersion: name,
			ReleaseDate:     parseUniProtReleaseDate(name),
			IsCurrent:       false,
			SourceLocation:  d.releaseBase + "/previous_releases/" + name + "/",
		})
	}

	current, err := d.currentRelease(ctx)
	if err == nil && current.ExternalVersion != "" {
		versions = append(versions, current)
	}

	versions = DedupeByExternalVersion(versions)
	SortOldestFirst(versions)
	return versions, nil
}

func (d *UniProtDriver) currentRelease(ctx context.Context) (DiscoveredVersion, error) {
	req := httpx.NewRequest("GET", d.releaseBase+"/current_release/relnotes.txt")
	resp, err := httpx.Execute(ctx, req)
	if err != nil || !resp.IsSuccess() {
		return DiscoveredVersion{}, fmt.Errorf("uniprot: fetch current release notes: %w", err)
	}
	version := extractUniProtVersion(resp.BodyString)
	return DiscoveredVersion{
		ExternalVersion: version,
		ReleaseDate:     parseUniProtReleaseDate(version),
		IsCurrent:       true,
		SourceLocation:  d.releaseBase + "/current_release/",
	}, nil
}

// listDirectory performs a GET against an Apache-style autoindex and
// extracts directory-entry names; actual HTML scraping details are an
// upstream-specific concern left to the driver.
func (d *UniProtDriver) listDirectory(ctx context.Context, url string) ([]string, error) {
	req := httpx.NewRequest("GET", url)
	resp, err := httpx.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("uniprot: listing %s returned %d", url, resp.StatusCode)
	}
	return parseAutoindexEntries(resp.BodyString), nil
}

var autoindexEntryPattern = regexp.MustCompile(`href="([^"/?]+)/?"`)

func parseAutoindexEntries(html string) []string {
	matches := autoindexEntryPattern.FindAllStringSubmatch(html, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

var uniprotVersionInText = regexp.MustCompile(`UniProt Release (\d{4}_\d{2})`)

func extractUniProtVersion(text string) string {
	m := uniprotVersionInText.FindStringSubmatch(text)
	if len(m) == 2 {
		return m[1]
	}
	return ""
}

// parseUniProtReleaseDate derives an orderable date from a "YYYY_NN"
// release identifier (NN is a bimonthly release counter, approximated
// here as a month step for ordering purposes only).
func parseUniProtReleaseDate(externalVersion string) time.Time {
	if !uniprotVersionPattern.MatchString(externalVersion) {
		return time.Time{}
	}
	var year, release int
	if _, err := fmt.Sscanf(externalVersion, "%d_%d", &year, &release); err != nil {
		return time.Time{}
	}
	return time.Date(year, time.Month(release), 1, 0, 0, 0, 0, time.UTC)
}
