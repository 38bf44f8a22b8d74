//go:build integration

package versioning_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/biopkg/bdp/internal/dbpg"
	"github.com/biopkg/bdp/internal/models"
	"github.com/biopkg/bdp/internal/versioning"
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

// makeEntry creates an organization-owned registry entry with one
// version, returning the version id.
func makeEntry(t *testing.T, orgs *dbpg.OrganizationRepository, entries *dbpg.RegistryEntryRepository, versions *dbpg.VersionRepository, orgSlug, entrySlug, versionString string) string {
	t.Helper()
	ctx := context.Background()

	org := &models.Organization{Slug: orgSlug, DisplayName: orgSlug}
	err := orgs.Create(ctx, org)
	if err != nil {
		org, err = orgs.GetBySlug(ctx, orgSlug)
		require.NoError(t, err)
	}

	entry := &models.RegistryEntry{
		OrganizationID: org.ID,
		Slug:           entrySlug,
		EntryType:      models.EntryTypeDataSource,
		DisplayName:    entrySlug,
	}
	require.NoError(t, entries.Create(ctx, entry, nil))

	v := &models.Version{
		RegistryEntryID: entry.ID,
		VersionString:   versionString,
		ExternalVersion: versionString,
		ReleaseDate:     time.Now(),
	}
	require.NoError(t, versions.Create(ctx, v, nil))
	return v.ID
}

// TestCascadeRepublishesTransitiveDependents builds swissprot@1.0 <- pdb@1.0
// <- interpro@1.0 (interpro depends on pdb depends on swissprot), publishes
// swissprot@2.0, and asserts both pdb and interpro receive freshly
// materialized versions re-pinning the new chain.
func TestCascadeRepublishesTransitiveDependents(t *testing.T) {
	dsn := setupPostgresContainer(t)
	gdb, err := dbpg.Open(dsn)
	require.NoError(t, err)

	orgs := dbpg.NewOrganizationRepository(gdb)
	entries := dbpg.NewRegistryEntryRepository(gdb)
	versions := dbpg.NewVersionRepository(gdb)
	ctx := context.Background()

	swissprotV1 := makeEntry(t, orgs, entries, versions, "uniprot", "swissprot", "1.0")
	pdbV1 := makeEntry(t, orgs, entries, versions, "rcsb", "pdb", "1.0")
	interproV1 := makeEntry(t, orgs, entries, versions, "ebi", "interpro", "1.0")

	require.NoError(t, versions.AddDependency(ctx, pdbV1, swissprotV1, "reference"))
	require.NoError(t, versions.AddDependency(ctx, interproV1, pdbV1, "reference"))

	swissprotV2 := &models.Version{
		RegistryEntryID: mustEntryID(t, versions, swissprotV1),
		VersionString:   "2.0",
		ExternalVersion: "2024_01",
		ReleaseDate:     time.Now(),
	}
	require.NoError(t, versions.Create(ctx, swissprotV2, nil))

	cascade := versioning.NewCascade(versions)
	created, err := cascade.Run(ctx, swissprotV1, swissprotV2.ID)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	for _, newVersionID := range created {
		v, err := versions.Get(ctx, newVersionID)
		require.NoError(t, err)
		assert.Equal(t, "1.1", v.VersionString, "republished version must carry its own bumped version string")

		deps, err := versions.Dependencies(ctx, newVersionID)
		require.NoError(t, err)
		for _, d := range deps {
			assert.NotEqual(t, swissprotV1, d.DependsOnID, "republished version must not keep pointing at the old dependency")
			assert.NotEqual(t, pdbV1, d.DependsOnID, "republished version must not keep pointing at the old dependency")
		}
	}
}

func TestCascadeDetectsCycle(t *testing.T) {
	dsn := setupPostgresContainer(t)
	gdb, err := dbpg.Open(dsn)
	require.NoError(t, err)

	orgs := dbpg.NewOrganizationRepository(gdb)
	entries := dbpg.NewRegistryEntryRepository(gdb)
	versions := dbpg.NewVersionRepository(gdb)
	ctx := context.Background()

	aV1 := makeEntry(t, orgs, entries, versions, "cyc", "a", "1.0")
	bV1 := makeEntry(t, orgs, entries, versions, "cyc", "b", "1.0")

	require.NoError(t, versions.AddDependency(ctx, bV1, aV1, "reference"))
	require.NoError(t, versions.AddDependency(ctx, aV1, bV1, "reference"))

	aV2 := &models.Version{
		RegistryEntryID: mustEntryID(t, versions, aV1),
		VersionString:   "2.0",
		ExternalVersion: "2.0",
		ReleaseDate:     time.Now(),
	}
	require.NoError(t, versions.Create(ctx, aV2, nil))

	cascade := versioning.NewCascade(versions)
	_, err = cascade.Run(ctx, aV1, aV2.ID)
	require.Error(t, err)

	var modelErr *models.Error
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, models.CategoryFatal, modelErr.Category)
}

func mustEntryID(t *testing.T, versions *dbpg.VersionRepository, versionID string) string {
	t.Helper()
	v, err := versions.Get(context.Background(), versionID)
	require.NoError(t, err)
	return v.RegistryEntryID
}
