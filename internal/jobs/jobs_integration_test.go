//go:build integration

package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/biopkg/bdp/internal/dbpg"
	"github.com/biopkg/bdp/internal/models"
)

func setupPostgresContainer(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgresql://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
}

func TestListJobsFiltersByStatusAndOrganization(t *testing.T) {
	dsn := setupPostgresContainer(t)

	gdb, err := dbpg.Open(dsn)
	require.NoError(t, err)

	orgA := uuid.NewString()
	orgB := uuid.NewString()

	jobRepo := dbpg.NewIngestionJobRepository(gdb)
	require.NoError(t, jobRepo.Create(context.Background(), &models.IngestionJob{
		JobType: "protein-ingest", OrganizationID: orgA, ExternalVersion: "2024_01", Status: models.JobRunning,
	}))
	require.NoError(t, jobRepo.Create(context.Background(), &models.IngestionJob{
		JobType: "protein-ingest", OrganizationID: orgA, ExternalVersion: "2024_02", Status: models.JobDone,
	}))
	require.NoError(t, jobRepo.Create(context.Background(), &models.IngestionJob{
		JobType: "taxonomy-ingest", OrganizationID: orgB, ExternalVersion: "2024_01", Status: models.JobRunning,
	}))

	db, err := dbpg.NewPostgresDB(dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	results, total, err := ListJobs(ctx, db, JobFilter{OrganizationID: orgA})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, results, 2)

	results, total, err = ListJobs(ctx, db, JobFilter{OrganizationID: orgA, Status: string(models.JobDone)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "2024_02", results[0].ExternalVersion)

	job, err := GetJob(ctx, db, results[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, job.Status)
}

func TestSyncStatusListAndGet(t *testing.T) {
	dsn := setupPostgresContainer(t)

	gdb, err := dbpg.Open(dsn)
	require.NoError(t, err)

	orgID := uuid.NewString()
	statusRepo := dbpg.NewSyncStatusRepository(gdb)
	require.NoError(t, statusRepo.Upsert(context.Background(), &models.OrganizationSyncStatus{
		OrganizationID:      orgID,
		LastExternalVersion: "2024_01",
		TotalEntries:        42,
	}))

	db, err := dbpg.NewPostgresDB(dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	all, err := ListSyncStatus(ctx, db)
	require.NoError(t, err)
	require.Len(t, all, 1)

	status, err := GetSyncStatus(ctx, db, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), status.TotalEntries)

	_, err = GetSyncStatus(ctx, db, uuid.NewString())
	assert.Error(t, err)
}
