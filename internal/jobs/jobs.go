// Package jobs implements the job-status read model (C11): filtered,
// sorted, paginated views over ingestion jobs and per-organization sync
// status, backed by the raw pgx pool so list queries can take arbitrary
// caller-chosen filter and sort combinations without growing a GORM
// query-builder call for every permutation. Every value a caller supplies
// is bound as a pgx parameter; only column names come from the allowlists
// below, never from request input directly.
package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/biopkg/bdp/internal/dbpg"
	"github.com/biopkg/bdp/internal/models"
)

// allowed sort columns for ListJobs, mapping the API's sort_by value to the
// actual column so a caller can never inject arbitrary SQL through it.
var jobSortColumns = map[string]string{
	"started_at":   "started_at",
	"completed_at": "completed_at",
	"status":       "status",
	"job_type":     "job_type",
}

// JobFilter selects and orders the ingestion_jobs rows returned by
// ListJobs.
type JobFilter struct {
	OrganizationID string
	Status         string
	JobType        string
	SortBy         string // key into jobSortColumns; defaults to started_at
	Descending     bool
	Page           int
	PerPage        int
}

// ListJobs returns a page of ingestion jobs matching filter, most recent
// first by default.
func ListJobs(ctx context.Context, db *dbpg.PostgresDB, f JobFilter) ([]models.IngestionJob, int, error) {
	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	sortCol, ok := jobSortColumns[f.SortBy]
	if !ok {
		sortCol = "started_at"
	}
	direction := "DESC"
	if !f.Descending && f.SortBy != "" {
		direction = "ASC"
	}

	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.OrganizationID != "" {
		conditions = append(conditions, fmt.Sprintf("organization_id = %s", arg(f.OrganizationID)))
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = %s", arg(f.Status)))
	}
	if f.JobType != "" {
		conditions = append(conditions, fmt.Sprintf("job_type = %s", arg(f.JobType)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM ingestion_jobs %s", where)
	var total int
	if err := db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("jobs: count: %w", err)
	}

	limitArg := arg(perPage)
	offsetArg := arg((page - 1) * perPage)
	selectSQL := fmt.Sprintf(`
		SELECT id, job_type, organization_id, external_version, internal_version, mode, status,
		       records_total, records_processed, records_stored, records_failed, started_at, completed_at, error_text
		FROM ingestion_jobs
		%s
		ORDER BY %s %s NULLS LAST
		LIMIT %s OFFSET %s
	`, where, sortCol, direction, limitArg, offsetArg)

	rows, err := db.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("jobs: query: %w", err)
	}
	defer rows.Close()

	var result []models.IngestionJob
	for rows.Next() {
		var j models.IngestionJob
		if err := rows.Scan(&j.ID, &j.JobType, &j.OrganizationID, &j.ExternalVersion, &j.InternalVersion, &j.Mode, &j.Status,
			&j.RecordsTotal, &j.RecordsProcessed, &j.RecordsStored, &j.RecordsFailed, &j.StartedAt, &j.CompletedAt, &j.ErrorText); err != nil {
			return nil, 0, fmt.Errorf("jobs: scan: %w", err)
		}
		result = append(result, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// GetJob fetches a single job by id.
func GetJob(ctx context.Context, db *dbpg.PostgresDB, id string) (*models.IngestionJob, error) {
	var j models.IngestionJob
	row := db.QueryRow(ctx, `
		SELECT id, job_type, organization_id, external_version, internal_version, mode, status,
		       records_total, records_processed, records_stored, records_failed, started_at, completed_at, error_text
		FROM ingestion_jobs WHERE id = $1
	`, id)
	err := row.Scan(&j.ID, &j.JobType, &j.OrganizationID, &j.ExternalVersion, &j.InternalVersion, &j.Mode, &j.Status,
		&j.RecordsTotal, &j.RecordsProcessed, &j.RecordsStored, &j.RecordsFailed, &j.StartedAt, &j.CompletedAt, &j.ErrorText)
	if err != nil {
		return nil, models.NotFound("ingestion job %s not found", id)
	}
	return &j, nil
}

// ListSyncStatus returns every organization's rolled-up sync state,
// ordered by organization for stable output.
func ListSyncStatus(ctx context.Context, db *dbpg.PostgresDB) ([]models.OrganizationSyncStatus, error) {
	rows, err := db.Query(ctx, `
		SELECT organization_id, last_external_version, last_sync_at, last_error, total_entries
		FROM organization_sync_statuses
		ORDER BY organization_id
	`)
	if err != nil {
		return nil, fmt.Errorf("jobs: list sync status: %w", err)
	}
	defer rows.Close()

	var result []models.OrganizationSyncStatus
	for rows.Next() {
		var s models.OrganizationSyncStatus
		if err := rows.Scan(&s.OrganizationID, &s.LastExternalVersion, &s.LastSyncAt, &s.LastError, &s.TotalEntries); err != nil {
			return nil, fmt.Errorf("jobs: scan sync status: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetSyncStatus returns one organization's sync status by id.
func GetSyncStatus(ctx context.Context, db *dbpg.PostgresDB, organizationID string) (*models.OrganizationSyncStatus, error) {
	var s models.OrganizationSyncStatus
	row := db.QueryRow(ctx, `
		SELECT organization_id, last_external_version, last_sync_at, last_error, total_entries
		FROM organization_sync_statuses WHERE organization_id = $1
	`, organizationID)
	if err := row.Scan(&s.OrganizationID, &s.LastExternalVersion, &s.LastSyncAt, &s.LastError, &s.TotalEntries); err != nil {
		return nil, models.NotFound("no sync status for organization %s", organizationID)
	}
	return &s, nil
}
