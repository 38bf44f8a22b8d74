package discovery

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/biopkg/bdp/internal/httpx"
)

// ensemblReleaseBase is the Ensembl FTP root, whose autoindex lists one
// "release-NN" directory per published release.
const ensemblReleaseBase = "https://ftp.ensembl.org/pub"

// ensemblReleaseRow matches one autoindex row: the release directory name
// plus the Apache-style modification date ("18-Jul-2023") alongside it,
// which is the closest thing the listing offers to a release date.
var ensemblReleaseRow = regexp.MustCompile(`href="release-(\d+)/?"(?:[^\n]*?(\d{2}-[A-Za-z]{3}-\d{4}))?`)

// EnsemblDriver discovers Ensembl releases ("96", "110", ...) from the FTP
// root listing. Every historical release stays in place under the same
// root, so unlike UniProt there is no separate current/previous split; the
// highest release number is the current one.
type EnsemblDriver struct {
	releaseBase string
	maxRetries  int
}

func NewEnsemblDriver() *EnsemblDriver {
	return &EnsemblDriver{releaseBase: ensemblReleaseBase, maxRetries: 3}
}

func (d *EnsemblDriver) Name() string { return "ensembl" }

func (d *EnsemblDriver) DiscoverAllVersions(ctx context.Context) ([]DiscoveredVersion, error) {
	var body string
	err := retry(ctx, d.Name(), d.maxRetries, func() error {
		req := httpx.NewRequest("GET", d.releaseBase+"/")
		resp, ferr := httpx.Execute(ctx, req)
		if ferr != nil {
			return ferr
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("ensembl: listing %s returned %d", d.releaseBase, resp.StatusCode)
		}
		body = resp.BodyString
		return nil
	})
	if err != nil {
		return nil, err
	}

	versions := parseEnsemblListing(body, d.releaseBase)
	if len(versions) > 0 {
		versions[len(versions)-1].IsCurrent = true
	}
	return versions, nil
}

// parseEnsemblListing extracts release directories from the autoindex body,
// ordered by release number ("10" after "9", not lexical order) with the
// row's modification date carried through when present.
func parseEnsemblListing(html, base string) []DiscoveredVersion {
	rows := ensemblReleaseRow.FindAllStringSubmatch(html, -1)

	byNumber := make(map[int]DiscoveredVersion, len(rows))
	numbers := make([]int, 0, len(rows))
	for _, row := range rows {
		n, err := strconv.Atoi(row[1])
		if err != nil {
			continue
		}
		var released time.Time
		if row[2] != "" {
			if parsed, perr := time.Parse("02-Jan-2006", row[2]); perr == nil {
				released = parsed
			}
		}
		if _, seen := byNumber[n]; !seen {
			numbers = append(numbers, n)
		}
		byNumber[n] = DiscoveredVersion{
			ExternalVersion: row[1],
			ReleaseDate:     released,
			SourceLocation:  fmt.Sprintf("%s/release-%d/", base, n),
		}
	}

	sort.Ints(numbers)
	out := make([]DiscoveredVersion, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, byNumber[n])
	}
	return out
}
