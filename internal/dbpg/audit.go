package dbpg

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biopkg/bdp/internal/models"
)

// AuditLogRepository records server-side state-changing operations.
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Record(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditLogRepository) ListByResource(ctx context.Context, resourceType, resourceID string) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}
