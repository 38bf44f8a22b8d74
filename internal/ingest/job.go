package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"

	"github.com/biopkg/bdp/internal/blobstore"
	"github.com/biopkg/bdp/internal/config"
	"github.com/biopkg/bdp/internal/dbpg"
	"github.com/biopkg/bdp/internal/discovery"
	"github.com/biopkg/bdp/internal/httpx"
	"github.com/biopkg/bdp/internal/models"
	"github.com/biopkg/bdp/internal/parser"
	"github.com/biopkg/bdp/internal/versioning"
)

// driverPairing is a discovery.Driver alongside the parser.Parser (and the
// Formatter producing its canonical output format) that can interpret what
// it discovers.
type driverPairing struct {
	driver    discovery.Driver
	parser    parser.Parser
	formatter parser.Formatter
	format    string
}

// Drivers maps a driver name (as selected by an ingest request) to the
// discovery+parser pairing RunDiscoveryAndIngest dispatches to, the single
// reachable path wiring C3 (discovery), C4 (parsers), C5 (the coordinator)
// and C6 (the version calculator and cascade) together.
var Drivers = map[string]func() driverPairing{
	"uniprot": func() driverPairing {
		return driverPairing{
			driver:    discovery.NewUniProtDriver(),
			parser:    parser.NewFASTAParser(),
			formatter: &parser.FASTAFormatter{},
			format:    "fasta",
		}
	},
	"ensembl": func() driverPairing {
		return driverPairing{
			driver:    discovery.NewEnsemblDriver(),
			parser:    parser.NewFASTAParser(),
			formatter: &parser.FASTAFormatter{},
			format:    "fasta",
		}
	},
	"ncbi-taxonomy": func() driverPairing {
		return driverPairing{
			driver:    discovery.NewNCBITaxonomyDriver(),
			parser:    parser.NewTaxdumpParser(),
			formatter: &parser.TaxdumpFormatter{},
			format:    "tsv",
		}
	},
}

// Dependencies bundles the repositories and services RunDiscoveryAndIngest
// needs, mirroring apiserver.Dependencies' shape.
type Dependencies struct {
	Entries  *dbpg.RegistryEntryRepository
	Versions *dbpg.VersionRepository
	Jobs     *dbpg.IngestionJobRepository
	Store    *blobstore.Store
	Cfg      config.IngestConfig
}

// Request targets one registry entry for a discovery-driven ingestion run.
type Request struct {
	OrgSlug     string
	EntrySlug   string
	Driver      string
	DownloadURL string // direct URL to the release's data file
	Strategy    versioning.Strategy
	Changelog   models.VersionChangelog // optional; empty yields BumpNone
}

// Result reports what RunDiscoveryAndIngest did.
type Result struct {
	Job           *models.IngestionJob
	Version       *models.Version
	Skipped       bool // true if the discovered version was already ingested
	CascadedCount int
}

// RunDiscoveryAndIngest discovers a registry entry's upstream versions,
// skips ones already ingested, and otherwise downloads, decompresses,
// parses and stores the target release: it creates the IngestionJob row,
// runs the Coordinator against the decompressed bytes, materializes the
// resulting Version and its canonical VersionFile in the blob store, and
// cascades the bump to any dependents.
func RunDiscoveryAndIngest(ctx context.Context, deps *Dependencies, req Request) (*Result, error) {
	pairing, ok := Drivers[req.Driver]
	if !ok {
		return nil, models.InvalidSpec("ingest: unknown driver %q", req.Driver)
	}
	return runDiscoveryAndIngest(ctx, deps, pairing(), req)
}

// runDiscoveryAndIngest is RunDiscoveryAndIngest's body, taking an already
// resolved driverPairing so tests can exercise the full discovery-to-
// cascade pipeline against a fake Driver instead of a live upstream.
func runDiscoveryAndIngest(ctx context.Context, deps *Dependencies, pair driverPairing, req Request) (*Result, error) {
	org, entry, err := deps.Entries.GetByOrgAndSlug(ctx, req.OrgSlug, req.EntrySlug)
	if err != nil {
		return nil, err
	}

	discovered, err := pair.driver.DiscoverAllVersions(ctx)
	if err != nil {
		return nil, err
	}
	discovered = discovery.DedupeByExternalVersion(discovered)
	discovery.SortOldestFirst(discovered)
	if len(discovered) == 0 {
		return nil, models.DiscoveryFailed(pair.driver.Name(), fmt.Errorf("no versions discovered"))
	}
	target := discovered[len(discovered)-1]

	previous, err := deps.Versions.Latest(ctx, entry.ID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if previous != nil && previous.ExternalVersion == target.ExternalVersion {
		return &Result{Skipped: true}, nil
	}

	job := &models.IngestionJob{
		JobType:         pair.parser.RecordType(),
		OrganizationID:  org.ID,
		ExternalVersion: target.ExternalVersion,
		Mode:            models.JobModeLatest,
		Status:          models.JobPending,
	}
	if err := deps.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	data, sum, size, err := fetchAndDecompress(ctx, req.DownloadURL)
	if err != nil {
		return nil, deps.failJob(ctx, job, err)
	}

	src := Source{
		OrganizationID:  org.ID,
		RegistryEntryID: entry.ID,
		OrgSlug:         org.Slug,
		EntrySlug:       entry.Slug,
		ExternalVersion: target.ExternalVersion,
		Data:            data,
	}

	keyPrefix := fmt.Sprintf("%s/%s/%s", org.Slug, entry.Slug, target.ExternalVersion)
	writer := NewBlobRecordWriter(deps.Store, pair.formatter, pair.format, keyPrefix)
	coordinator := NewCoordinator(deps.Jobs, deps.Store, deps.Cfg)
	if err := coordinator.Run(ctx, job, src, pair.parser, writer); err != nil {
		return nil, err
	}

	version, err := deps.materializeVersion(ctx, org, entry, previous, req, target, data, sum, size, pair.format)
	if err != nil {
		return nil, err
	}

	cascaded := 0
	if previous != nil {
		cascade := versioning.NewCascade(deps.Versions)
		created, err := cascade.Run(ctx, previous.ID, version.ID)
		if err != nil {
			return nil, err
		}
		cascaded = len(created)
	}

	job.InternalVersion = version.VersionString
	return &Result{Job: job, Version: version, CascadedCount: cascaded}, nil
}

func (deps *Dependencies) failJob(ctx context.Context, job *models.IngestionJob, cause error) error {
	_ = deps.Jobs.SetStatus(ctx, job.ID, models.JobFailed, cause.Error())
	return cause
}

// materializeVersion stores the canonical downloaded artifact in the blob
// store and records the new Version and VersionFile rows, computing the
// next version string from the bump ClassifyChangelog derives. A
// caller that supplies no changelog gets BumpMinor for a first release or
// BumpNone (no new version needed to reflect a no-op re-ingest) otherwise;
// an explicit changelog overrides this.
func (deps *Dependencies) materializeVersion(ctx context.Context, org *models.Organization, entry *models.RegistryEntry, previous *models.Version, req Request, target discovery.DiscoveredVersion, data []byte, sum string, size int64, format string) (*models.Version, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = versioning.StrategyMajorMinorPatch
	}

	kind := versioning.ClassifyChangelog(req.Changelog)
	previousVersionString := "0.0.0"
	if previous != nil {
		previousVersionString = previous.VersionString
		if kind == versioning.BumpNone {
			kind = versioning.BumpMinor
		}
	} else {
		kind = versioning.BumpMajor
	}

	versionString, err := versioning.CalculateNextVersion(strategy, previousVersionString, kind, target.ReleaseDate)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s.%s", entry.Slug, format)
	key := blobstore.ObjectKey(org.Slug, entry.Slug, target.ExternalVersion, filename)
	if _, err := deps.Store.Put(ctx, key, data, sum); err != nil {
		return nil, err
	}

	version := &models.Version{
		RegistryEntryID: entry.ID,
		VersionString:   versionString,
		ExternalVersion: target.ExternalVersion,
		ReleaseDate:     target.ReleaseDate,
		Trigger:         "discovery",
	}
	file := models.VersionFile{Format: format, StorageKey: key, SHA256: sum, Size: size}
	if err := deps.Versions.Create(ctx, version, []models.VersionFile{file}); err != nil {
		return nil, err
	}
	if previous != nil {
		if err := deps.Versions.AddDependency(ctx, version.ID, previous.ID, "supersedes"); err != nil {
			return nil, err
		}
	}
	return version, nil
}

// fetchAndDecompress downloads url to a temporary file and decompresses
// it, returning the decompressed bytes, their sha-256, and byte size.
func fetchAndDecompress(ctx context.Context, url string) ([]byte, string, int64, error) {
	tmp, err := os.CreateTemp("", "bdp-ingest-*"+path.Ext(url))
	if err != nil {
		return nil, "", 0, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	req := httpx.NewRequest("GET", url)
	req.SaveTo = tmpPath
	req.Timeout = 300
	req.RetryCount = 3
	resp, err := httpx.Execute(ctx, req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("ingest: download %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return nil, "", 0, fmt.Errorf("ingest: download %s: %s", url, resp.Status)
	}

	data, err := Decompress(tmpPath)
	if err != nil {
		return nil, "", 0, err
	}

	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), int64(len(data)), nil
}

func isNotFound(err error) bool {
	bdpErr, ok := err.(*models.Error)
	return ok && bdpErr.Category == models.CategoryNotFound
}
