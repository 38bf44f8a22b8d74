package dbpg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/biopkg/bdp/internal/models"
	"github.com/biopkg/bdp/internal/versioning"
)

// VersionRepository manages the append-only version history of a registry
// entry, its version files, and the weak dependency edges between
// versions.
type VersionRepository struct {
	db *gorm.DB
}

func NewVersionRepository(db *gorm.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Create inserts a version and its files in one transaction; versions are
// never mutated after creation.
func (r *VersionRepository) Create(ctx context.Context, v *models.Version, files []models.VersionFile) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		for i := range files {
			files[i].VersionID = v.ID
			if files[i].ID == "" {
				files[i].ID = uuid.NewString()
			}
		}
		if len(files) > 0 {
			return tx.Create(&files).Error
		}
		return nil
	})
}

// Get fetches a single version row by id.
func (r *VersionRepository) Get(ctx context.Context, id string) (*models.Version, error) {
	var v models.Version
	err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NotFound("version %s not found", id)
	}
	return &v, err
}

// Latest returns the greatest version of a registry entry by semantic
// ordering (ties broken by creation time), used by the resolver's
// "latest" keyword. Ordering happens in Go rather than SQL because
// version strings compare numerically per component, not lexically, so
// "10.0" must sort after "9.0"; a historical-mode job backfilling an
// older release must not make it "latest" just because its row is newer.
func (r *VersionRepository) Latest(ctx context.Context, registryEntryID string) (*models.Version, error) {
	var vs []models.Version
	err := r.db.WithContext(ctx).
		Where("registry_entry_id = ?", registryEntryID).
		Find(&vs).Error
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, models.NotFound("no versions for registry entry %s", registryEntryID)
	}
	return greatestVersion(vs), nil
}

// ByVersionString looks up an exact semver match.
func (r *VersionRepository) ByVersionString(ctx context.Context, registryEntryID, versionString string) (*models.Version, error) {
	var v models.Version
	err := r.db.WithContext(ctx).
		Where("registry_entry_id = ? AND version_string = ?", registryEntryID, versionString).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.VersionNotFound("", "", versionString)
	}
	return &v, err
}

// ByExternalVersion looks up the greatest internal version carrying a
// given upstream external-version tag, by the same semantic ordering
// Latest uses (an external tag is not unique across an entry's history,
// so several internal versions can carry it).
func (r *VersionRepository) ByExternalVersion(ctx context.Context, registryEntryID, externalVersion string) (*models.Version, error) {
	var vs []models.Version
	err := r.db.WithContext(ctx).
		Where("registry_entry_id = ? AND external_version = ?", registryEntryID, externalVersion).
		Find(&vs).Error
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, models.VersionNotFound("", "", externalVersion)
	}
	return greatestVersion(vs), nil
}

// greatestVersion picks the row with the greatest semantic version.
// Version strings that don't parse as semver (date-based sources) compare
// as plain strings, which orders ISO dates correctly; ties fall back to
// creation time.
func greatestVersion(vs []models.Version) *models.Version {
	best := &vs[0]
	for i := 1; i < len(vs); i++ {
		if versionLess(best, &vs[i]) {
			best = &vs[i]
		}
	}
	return best
}

func versionLess(a, b *models.Version) bool {
	av, aerr := versioning.ParseSemVer(a.VersionString)
	bv, berr := versioning.ParseSemVer(b.VersionString)
	if aerr != nil || berr != nil {
		if a.VersionString != b.VersionString {
			return a.VersionString < b.VersionString
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if c := av.Compare(bv); c != 0 {
		return c < 0
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// FileByFormat selects the version_file row for a requested format.
func (r *VersionRepository) FileByFormat(ctx context.Context, versionID, format string) (*models.VersionFile, error) {
	var f models.VersionFile
	err := r.db.WithContext(ctx).
		Where("version_id = ? AND format = ?", versionID, format).
		First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.FormatNotAvailable("", "", format)
	}
	return &f, err
}

// Dependencies returns the direct dependency edges of a version.
func (r *VersionRepository) Dependencies(ctx context.Context, versionID string) ([]models.Dependency, error) {
	var deps []models.Dependency
	err := r.db.WithContext(ctx).Where("version_id = ?", versionID).Find(&deps).Error
	return deps, err
}

// AddDependency records a weak edge from one version to another.
func (r *VersionRepository) AddDependency(ctx context.Context, versionID, dependsOnID, role string) error {
	dep := models.Dependency{
		ID:          uuid.NewString(),
		VersionID:   versionID,
		DependsOnID: dependsOnID,
		Role:        role,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&dep).Error
}

// DependentsOf returns every version that currently depends on versionID,
// used by the cascade engine to enumerate dependents of a newly
// published version's predecessor.
func (r *VersionRepository) DependentsOf(ctx context.Context, versionID string) ([]models.Dependency, error) {
	var deps []models.Dependency
	err := r.db.WithContext(ctx).Where("depends_on_id = ?", versionID).Find(&deps).Error
	return deps, err
}

// UpsertVersionFiles batch-writes file rows for one version in a single
// round trip; records producing file artifacts are written here by the
// ingestion worker rather than one insert per record.
func (r *VersionRepository) UpsertVersionFiles(ctx context.Context, files []models.VersionFile) error {
	if len(files) == 0 {
		return nil
	}
	for i := range files {
		if files[i].ID == "" {
			files[i].ID = uuid.NewString()
		}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "version_id"}, {Name: "format"}},
		DoUpdates: clause.AssignmentColumns([]string{"storage_key", "sha256", "size", "compression"}),
	}).Create(&files).Error
}
