package versioning

import (
	"context"
	"strings"
	"time"

	"github.com/biopkg/bdp/internal/models"
)

// VersionStore is the subset of the version repository the cascade walks
// and writes through.
type VersionStore interface {
	Get(ctx context.Context, id string) (*models.Version, error)
	DependentsOf(ctx context.Context, versionID string) ([]models.Dependency, error)
	Dependencies(ctx context.Context, versionID string) ([]models.Dependency, error)
	Create(ctx context.Context, v *models.Version, files []models.VersionFile) error
	AddDependency(ctx context.Context, versionID, dependsOnID, role string) error
}

// Cascade propagates a version bump of one registry entry to every data
// source that depends on its previous version: for each transitive
// dependent, a trigger row is created and a new version is materialized
// that re-pins the bumped dependency. Cascade visits every dependent
// exactly once; a cycle in the dependent graph is a fatal data-model
// violation.
type Cascade struct {
	versions VersionStore
}

func NewCascade(versions VersionStore) *Cascade {
	return &Cascade{versions: versions}
}

// color marks a node's DFS visitation state; the first back-edge found
// (a gray node revisited) is reported as the cycle diagnostic.
type color int

const (
	white color = iota
	gray
	black
)

// nextCascadeVersion bumps a dependent's own version string one patch
// step, keeping the component count the dependent already uses ("1.0"
// bumps to "1.1", "1.0.0" to "1.0.1"). A string that is not semver
// (date-based sources) re-versions by the cascade date instead.
func nextCascadeVersion(previous string, now time.Time) string {
	strategy := StrategyMajorMinorPatch
	if strings.Count(previous, ".") == 1 {
		strategy = StrategyMajorMinor
	}
	next, err := CalculateNextVersion(strategy, previous, BumpPatch, now)
	if err != nil {
		return now.Format("2006-01-02")
	}
	return next
}

// Run cascades from publishedVersionID, the newly committed version that
// replaces previousVersionID: every version that currently depends on
// previousVersionID gets a freshly materialized successor version, with
// its own bumped version string, that re-pins publishedVersionID in place
// of previousVersionID, and the walk repeats from each dependent's own
// version id so the propagation is transitive. It returns the new version
// ids created, in visitation order.
func (c *Cascade) Run(ctx context.Context, previousVersionID, publishedVersionID string) ([]string, error) {
	colors := make(map[string]color)
	var created []string

	var visit func(versionID, replacesID, replacedByID string) error
	visit = func(versionID, replacesID, replacedByID string) error {
		if colors[versionID] == gray {
			return models.CascadeCycle(versionID)
		}
		if colors[versionID] == black {
			return nil
		}
		colors[versionID] = gray

		dependents, err := c.versions.DependentsOf(ctx, versionID)
		if err != nil {
			return err
		}
		for _, dep := range dependents {
			dependentVersion, err := c.versions.Get(ctx, dep.VersionID)
			if err != nil {
				return err
			}

			now := time.Now()
			newVersion := &models.Version{
				RegistryEntryID: dependentVersion.RegistryEntryID,
				VersionString:   nextCascadeVersion(dependentVersion.VersionString, now),
				ExternalVersion: dependentVersion.ExternalVersion,
				ReleaseDate:     now,
				Trigger:         "dependency_version_bump",
			}
			if err := c.versions.Create(ctx, newVersion, nil); err != nil {
				return err
			}

			existingDeps, err := c.versions.Dependencies(ctx, dependentVersion.ID)
			if err != nil {
				return err
			}
			for _, existing := range existingDeps {
				target := existing.DependsOnID
				if target == versionID {
					target = replacedByID
				}
				if err := c.versions.AddDependency(ctx, newVersion.ID, target, existing.Role); err != nil {
					return err
				}
			}

			created = append(created, newVersion.ID)

			if err := visit(dep.VersionID, versionID, newVersion.ID); err != nil {
				return err
			}
		}

		colors[versionID] = black
		return nil
	}

	if err := visit(previousVersionID, previousVersionID, publishedVersionID); err != nil {
		return nil, err
	}
	return created, nil
}
