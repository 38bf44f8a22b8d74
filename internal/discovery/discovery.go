// Package discovery implements the version-discovery driver contract (C3):
// per-source adapters that list available upstream versions from remote
// archives and parse release metadata, using internal/httpx for retrying
// network listing.
package discovery

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/biopkg/bdp/internal/models"
)

// DiscoveredVersion is one upstream release as reported by a driver.
type DiscoveredVersion struct {
	ExternalVersion string
	ReleaseDate     time.Time
	IsCurrent       bool
	SourceLocation  string
}

// Driver is the per-source version-discovery contract.
type Driver interface {
	// Name identifies the source for error messages and logging.
	Name() string
	// DiscoverAllVersions lists every known upstream version, sorted
	// oldest-first with the current release last.
	DiscoverAllVersions(ctx context.Context) ([]DiscoveredVersion, error)
}

// FilterFromVersion keeps only versions at or after fromVersion in the
// sorted order DiscoverAllVersions returns them in.
func FilterFromVersion(versions []DiscoveredVersion, fromVersion string) []DiscoveredVersion {
	for i, v := range versions {
		if v.ExternalVersion == fromVersion {
			return versions[i:]
		}
	}
	return nil
}

// FilterSince keeps only versions released on or after since.
func FilterSince(versions []DiscoveredVersion, since time.Time) []DiscoveredVersion {
	out := make([]DiscoveredVersion, 0, len(versions))
	for _, v := range versions {
		if !v.ReleaseDate.Before(since) {
			out = append(out, v)
		}
	}
	return out
}

// FilterNewVersions drops any discovered version whose external version is
// already present in alreadyIngested.
func FilterNewVersions(discovered []DiscoveredVersion, alreadyIngested map[string]bool) []DiscoveredVersion {
	out := make([]DiscoveredVersion, 0, len(discovered))
	for _, v := range discovered {
		if !alreadyIngested[v.ExternalVersion] {
			out = append(out, v)
		}
	}
	return out
}

// DedupeByExternalVersion collapses entries that share an external version
// (e.g. upstream moved a release between "current" and "historical"
// directories without changing its identifier); the later-listed location
// wins, matching the contract's "newer location wins for download" rule.
func DedupeByExternalVersion(versions []DiscoveredVersion) []DiscoveredVersion {
	byVersion := make(map[string]DiscoveredVersion, len(versions))
	order := make([]string, 0, len(versions))
	for _, v := range versions {
		if _, seen := byVersion[v.ExternalVersion]; !seen {
			order = append(order, v.ExternalVersion)
		}
		byVersion[v.ExternalVersion] = v
	}
	out := make([]DiscoveredVersion, 0, len(order))
	for _, ev := range order {
		out = append(out, byVersion[ev])
	}
	return out
}

// SortOldestFirst orders versions by release date (not lexical string
// order, so "10.0" correctly sorts after "9.0"), current release last.
func SortOldestFirst(versions []DiscoveredVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		if versions[i].IsCurrent != versions[j].IsCurrent {
			return !versions[i].IsCurrent
		}
		return versions[i].ReleaseDate.Before(versions[j].ReleaseDate)
	})
}

// nonVersionEntry matches directory-listing entries that are not
// themselves a release (readmes, checksums, index files) so drivers can
// filter a raw listing down to real candidates.
var nonVersionEntry = regexp.MustCompile(`(?i)^(readme|index|checksums?|\.|\.\.)`)

// IsVersionEntry reports whether a raw directory-listing name looks like a
// release rather than incidental metadata.
func IsVersionEntry(name string) bool {
	return !nonVersionEntry.MatchString(name)
}

// retry is shared by drivers that need exponential backoff on transient
// upstream listing failures.
func retry(ctx context.Context, source string, maxAttempts int, fn func() error) error {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
	}
	return models.DiscoveryFailed(source, lastErr)
}
