package dbpg

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biopkg/bdp/internal/models"
)

// OrganizationRepository provides CRUD access to organizations, enforcing
// the foreign-key-preservation invariant that an organization cannot be
// deleted while any registry entry still references it.
type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		if isUniqueViolation(err) {
			return models.Conflict("organization with slug %q already exists", org.Slug)
		}
		return err
	}
	return nil
}

func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NotFound("organization %q not found", slug)
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *OrganizationRepository) List(ctx context.Context, page, perPage int) ([]models.Organization, int64, error) {
	var orgs []models.Organization
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Organization{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	err := r.db.WithContext(ctx).Order("slug").Offset(offset).Limit(perPage).Find(&orgs).Error
	if err != nil {
		return nil, 0, err
	}
	return orgs, total, nil
}

func (r *OrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Model(&models.Organization{}).
		Where("id = ?", org.ID).
		Updates(map[string]interface{}{
			"display_name": org.DisplayName,
			"website":      org.Website,
			"description":  org.Description,
			"logo_url":     org.LogoURL,
		}).Error
}

// Delete refuses to remove an organization with any registry entries, per
// the foreign-key-preservation invariant.
func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.RegistryEntry{}).
		Where("organization_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return models.Conflict("cannot delete organization %s: %d registry entries reference it", id, count)
	}
	return r.db.WithContext(ctx).Delete(&models.Organization{}, "id = ?", id).Error
}

func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint"))
}
