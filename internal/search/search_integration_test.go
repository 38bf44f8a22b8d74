//go:build integration

package search

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

func seedRegistry(t *testing.T, dsn string) {
	t.Helper()
	gdb, err := dbpg.Open(dsn)
	require.NoError(t, err)

	org := &models.Organization{ID: uuid.NewString(), Slug: "uniprot", DisplayName: "UniProt"}
	require.NoError(t, gdb.Create(org).Error)

	organism := &models.Organism{ID: uuid.NewString(), ScientificName: "Homo sapiens", TaxonomyID: 9606}
	require.NoError(t, gdb.Create(organism).Error)

	entry := &models.RegistryEntry{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		Slug:           "human-proteome",
		EntryType:      models.EntryTypeDataSource,
		DisplayName:    "Human Reference Proteome",
		Description:    "Canonical and isoform sequences for Homo sapiens",
	}
	require.NoError(t, gdb.Create(entry).Error)

	meta := &models.DataSourceMetadata{
		RegistryEntryID: entry.ID,
		SourceType:      models.SourceTypeProtein,
		Format:          "fasta",
		OrganismID:      &organism.ID,
	}
	require.NoError(t, gdb.Create(meta).Error)
}

func TestSearchFindsSeededEntryByText(t *testing.T) {
	dsn := setupPostgresContainer(t)
	seedRegistry(t, dsn)

	db, err := dbpg.NewPostgresDB(dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, EnsureView(ctx, db))
	require.NoError(t, Refresh(ctx, db))

	results, total, err := Search(ctx, db, Query{Text: "proteome"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "uniprot", results[0].OrgSlug)
	assert.Equal(t, "human-proteome", results[0].EntrySlug)
}

func TestSearchFiltersByOrganismAndFormat(t *testing.T) {
	dsn := setupPostgresContainer(t)
	seedRegistry(t, dsn)

	db, err := dbpg.NewPostgresDB(dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, EnsureView(ctx, db))
	require.NoError(t, Refresh(ctx, db))

	_, total, err := Search(ctx, db, Query{Organism: "Homo sapiens", Format: "fasta"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = Search(ctx, db, Query{Format: "bed"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
