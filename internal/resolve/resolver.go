package resolve

import (
	"context"
	"time"

	"github.com/biopkg/bdp/internal/blobstore"
	"github.com/biopkg/bdp/internal/dbpg"
	"github.com/biopkg/bdp/internal/models"
)

// Request is the resolve endpoint's input.
type Request struct {
	Sources []string `json:"sources"`
	Tools   []string `json:"tools"`
}

// Result is the resolve endpoint's output: resolved sources and tools,
// keyed by the original requested spec text.
type Result struct {
	Sources map[string]models.ResolvedSource `json:"sources"`
	Tools   map[string]models.ResolvedSource `json:"tools"`
}

// Resolver implements C7. It only reads from the metadata store and the
// blob store (to mint download grants); it never writes.
type Resolver struct {
	orgs       *dbpg.OrganizationRepository
	entries    *dbpg.RegistryEntryRepository
	versions   *dbpg.VersionRepository
	store      *blobstore.Store
	grantTTL   time.Duration
}

// color marks a version's DFS visitation state for cycle detection, the
// same scheme Cascade uses.
type color int

const (
	white color = iota
	gray
	black
)

func NewResolver(orgs *dbpg.OrganizationRepository, entries *dbpg.RegistryEntryRepository, versions *dbpg.VersionRepository, store *blobstore.Store, grantTTL time.Duration) *Resolver {
	if grantTTL <= 0 {
		grantTTL = 15 * time.Minute
	}
	return &Resolver{orgs: orgs, entries: entries, versions: versions, store: store, grantTTL: grantTTL}
}

// Resolve parses every requested spec, resolves it to a concrete version
// and file, expands transitive dependencies (detecting cycles and
// conflicts), and mints a download grant for each selected file.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	result := &Result{
		Sources: make(map[string]models.ResolvedSource),
		Tools:   make(map[string]models.ResolvedSource),
	}

	selected := make(map[string]string) // registry entry id -> chosen version id, for conflict detection

	for _, raw := range req.Sources {
		resolved, err := r.resolveOne(ctx, raw, selected)
		if err != nil {
			return nil, err
		}
		result.Sources[raw] = *resolved
	}
	for _, raw := range req.Tools {
		resolved, err := r.resolveOne(ctx, raw, selected)
		if err != nil {
			return nil, err
		}
		result.Tools[raw] = *resolved
	}

	return result, nil
}

func (r *Resolver) resolveOne(ctx context.Context, raw string, selected map[string]string) (*models.ResolvedSource, error) {
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, err
	}

	org, entry, err := r.entries.GetByOrgAndSlug(ctx, spec.Org, spec.Name)
	if err != nil {
		return nil, err
	}

	version, err := r.selectVersion(ctx, entry.ID, spec.Version)
	if err != nil {
		return nil, err
	}

	file, err := r.fileForFormat(ctx, version, spec.Format)
	if err != nil {
		return nil, err
	}

	depCount, err := r.expandDependencies(ctx, version.ID, selected, raw)
	if err != nil {
		return nil, err
	}

	url, err := r.store.PresignedGet(ctx, file.StorageKey, r.grantTTL)
	if err != nil {
		return nil, err
	}

	resolvedSpec := org.Slug + ":" + entry.Slug + "@" + version.VersionString

	return &models.ResolvedSource{
		ResolvedSpec:    resolvedSpec,
		Format:          file.Format,
		Checksum:        "sha256:" + file.SHA256,
		Size:            file.Size,
		ExternalVersion: version.ExternalVersion,
		DownloadURL:     url,
		DependencyCount: depCount,
	}, nil
}

func (r *Resolver) selectVersion(ctx context.Context, registryEntryID, requested string) (*models.Version, error) {
	switch requested {
	case "latest":
		return r.versions.Latest(ctx, registryEntryID)
	default:
		if v, err := r.versions.ByVersionString(ctx, registryEntryID, requested); err == nil {
			return v, nil
		}
		return r.versions.ByExternalVersion(ctx, registryEntryID, requested)
	}
}

// fileForFormat selects the version_file row matching format. An empty
// format requests the version's default file, stored with FileByFormat's
// empty-format key by an ingestion worker that only wrote one format.
func (r *Resolver) fileForFormat(ctx context.Context, version *models.Version, format string) (*models.VersionFile, error) {
	return r.versions.FileByFormat(ctx, version.ID, format)
}

// expandDependencies walks the dependency graph depth-first from
// versionID, detecting cycles and unifying each encountered dependency
// with whatever is already selected for its registry entry.
// It color-marks each visited version the same way Cascade.Run does: a
// version revisited while still gray (on the current path) is a real
// cycle, while one revisited after going black (already fully expanded)
// is a legitimate diamond dependency and must not be flagged. The count returned is the size of the reachable set,
// excluding the root.
func (r *Resolver) expandDependencies(ctx context.Context, versionID string, selected map[string]string, rootSpec string) (int, error) {
	colors := make(map[string]color)
	count := 0

	var visit func(current string) error
	visit = func(current string) error {
		if colors[current] == gray {
			return models.CircularDependency(rootSpec)
		}
		if colors[current] == black {
			return nil
		}
		colors[current] = gray

		deps, err := r.versions.Dependencies(ctx, current)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			depVersion, err := r.versions.Get(ctx, dep.DependsOnID)
			if err != nil {
				return err
			}
			if existing, ok := selected[depVersion.RegistryEntryID]; ok && existing != dep.DependsOnID {
				return models.DependencyConflict(rootSpec, existing, dep.DependsOnID)
			}
			selected[depVersion.RegistryEntryID] = dep.DependsOnID

			if colors[dep.DependsOnID] == white {
				count++
			}
			if err := visit(dep.DependsOnID); err != nil {
				return err
			}
		}

		colors[current] = black
		return nil
	}

	if err := visit(versionID); err != nil {
		return 0, err
	}
	return count, nil
}
