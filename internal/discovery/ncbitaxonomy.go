package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/biopkg/bdp/internal/httpx"
)

// ncbiTaxdumpURL is NCBI's single rolling taxonomy dump; unlike UniProt or
// InterPro there is no historical-release directory, so every discovery
// call surfaces exactly one "current" version dated by the archive's
// Last-Modified header.
const ncbiTaxdumpURL = "https://ftp.ncbi.nlm.nih.gov/pub/taxonomy/taxdump.tar.gz"

// NCBITaxonomyDriver discovers the current NCBI taxonomy dump release.
type NCBITaxonomyDriver struct {
	url        string
	maxRetries int
}

func NewNCBITaxonomyDriver() *NCBITaxonomyDriver {
	return &NCBITaxonomyDriver{url: ncbiTaxdumpURL, maxRetries: 3}
}

func (d *NCBITaxonomyDriver) Name() string { return "ncbi-taxonomy" }

func (d *NCBITaxonomyDriver) DiscoverAllVersions(ctx context.Context) ([]DiscoveredVersion, error) {
	var version DiscoveredVersion
	err := retry(ctx, d.Name(), d.maxRetries, func() error {
		req := httpx.NewRequest("HEAD", d.url)
		resp, ferr := httpx.Execute(ctx, req)
		if ferr != nil {
			return ferr
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("ncbi-taxonomy: HEAD %s returned %d", d.url, resp.StatusCode)
		}

		releaseDate := time.Now().UTC()
		if lastMod, ok := resp.Headers["Last-Modified"]; ok {
			if parsed, perr := time.Parse(time.RFC1123, lastMod); perr == nil {
				releaseDate = parsed
			}
		}
		version = DiscoveredVersion{
			ExternalVersion: releaseDate.Format("2006-01-02"),
			ReleaseDate:     releaseDate,
			IsCurrent:       true,
			SourceLocation:  d.url,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []DiscoveredVersion{version}, nil
}
