package dbpg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/biopkg/bdp/internal/models"
)

// IngestionJobRepository persists the job state machine and its work units
// for the coordinator.
type IngestionJobRepository struct {
	db *gorm.DB
}

func NewIngestionJobRepository(db *gorm.DB) *IngestionJobRepository {
	return &IngestionJobRepository{db: db}
}

func (r *IngestionJobRepository) Create(ctx context.Context, job *models.IngestionJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobPending
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// FindResumable returns an existing job for (organizationID, externalVersion)
// that is not in a terminal done/skipped state, supporting the coordinator's
// resume-by-rerunning-incomplete-units behavior.
func (r *IngestionJobRepository) FindResumable(ctx context.Context, organizationID, externalVersion string) (*models.IngestionJob, error) {
	var job models.IngestionJob
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND external_version = ? AND status NOT IN ?",
			organizationID, externalVersion, []models.JobStatus{models.JobDone, models.JobSkipped}).
		Order("started_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &job, err
}

func (r *IngestionJobRepository) SetStatus(ctx context.Context, jobID string, status models.JobStatus, errorText string) error {
	updates := map[string]interface{}{"status": status}
	if errorText != "" {
		updates["error_text"] = errorText
	}
	now := time.Now()
	switch status {
	case models.JobRunning:
		updates["started_at"] = now
	case models.JobDone, models.JobFailed, models.JobCancelled, models.JobSkipped:
		updates["completed_at"] = now
	}
	return r.db.WithContext(ctx).Model(&models.IngestionJob{}).
		Where("id = ?", jobID).Updates(updates).Error
}

// IncrementCounters atomically bumps a job's record counters; called after
// each worker batch completes rather than re-reading and re-writing the
// whole row.
func (r *IngestionJobRepository) IncrementCounters(ctx context.Context, jobID string, processed, stored, failed int64) error {
	return r.db.WithContext(ctx).Model(&models.IngestionJob{}).
		Where("id = ?", jobID).
		UpdateColumns(map[string]interface{}{
			"records_processed": gorm.Expr("records_processed + ?", processed),
			"records_stored":    gorm.Expr("records_stored + ?", stored),
			"records_failed":    gorm.Expr("records_failed + ?", failed),
		}).Error
}

func (r *IngestionJobRepository) Get(ctx context.Context, id string) (*models.IngestionJob, error) {
	var job models.IngestionJob
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NotFound("ingestion job %s not found", id)
	}
	return &job, err
}

func (r *IngestionJobRepository) List(ctx context.Context, page, perPage int) ([]models.IngestionJob, int64, error) {
	var jobs []models.IngestionJob
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.IngestionJob{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * perPage
	err := r.db.WithContext(ctx).Order("started_at DESC NULLS LAST").Offset(offset).Limit(perPage).Find(&jobs).Error
	return jobs, total, err
}

// CreateWorkUnits bulk-inserts the partitioning of [0, N) into K units for
// a job, one round trip per job rather than one insert per unit.
func (r *IngestionJobRepository) CreateWorkUnits(ctx context.Context, units []models.WorkUnit) error {
	for i := range units {
		if units[i].ID == "" {
			units[i].ID = uuid.NewString()
		}
		if units[i].Status == "" {
			units[i].Status = models.WorkUnitPending
		}
	}
	if len(units) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&units).Error
}

// PendingWorkUnits returns units not yet done for a job, allowing a resumed
// job to skip units whose records are already present.
func (r *IngestionJobRepository) PendingWorkUnits(ctx context.Context, jobID string) ([]models.WorkUnit, error) {
	var units []models.WorkUnit
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND status != ?", jobID, models.WorkUnitDone).
		Order("\"start\"").
		Find(&units).Error
	return units, err
}

func (r *IngestionJobRepository) UpdateWorkUnit(ctx context.Context, unit *models.WorkUnit) error {
	return r.db.WithContext(ctx).Model(&models.WorkUnit{}).
		Where("id = ?", unit.ID).
		Updates(map[string]interface{}{
			"status":    unit.Status,
			"processed": unit.Processed,
			"stored":    unit.Stored,
			"failed":    unit.Failed,
		}).Error
}

// SyncStatusRepository tracks the per-organization roll-up exposed by the
// job-status read model (C11).
type SyncStatusRepository struct {
	db *gorm.DB
}

func NewSyncStatusRepository(db *gorm.DB) *SyncStatusRepository {
	return &SyncStatusRepository{db: db}
}

func (r *SyncStatusRepository) Upsert(ctx context.Context, status *models.OrganizationSyncStatus) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_external_version", "last_sync_at", "last_error", "total_entries"}),
	}).Create(status).Error
}

func (r *SyncStatusRepository) Get(ctx context.Context, organizationID string) (*models.OrganizationSyncStatus, error) {
	var status models.OrganizationSyncStatus
	err := r.db.WithContext(ctx).First(&status, "organization_id = ?", organizationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NotFound("no sync status for organization %s", organizationID)
	}
	return &status, err
}

func (r *SyncStatusRepository) List(ctx context.Context) ([]models.OrganizationSyncStatus, error) {
	var statuses []models.OrganizationSyncStatus
	err := r.db.WithContext(ctx).Find(&statuses).Error
	return statuses, err
}
