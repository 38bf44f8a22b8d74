//go:build integration

package resolve

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/biopkg/bdp/internal/blobstore"
	"github.com/biopkg/bdp/internal/config"
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

// setupMinioStore starts a MinIO container, creates bucket, and returns a
// blobstore.Store pointed at it (path-style addressing, as the resolver's
// PresignedGet needs a live S3-compatible endpoint to mint a grant).
func setupMinioStore(t *testing.T) *blobstore.Store {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	endpoint := fmt.Sprintf("http://%s:%s", host, port.Port())
	cfg := config.S3Config{
		Endpoint:  endpoint,
		Region:    "us-east-1",
		Bucket:    "bdp-test",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		PathStyle: true,
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	require.NoError(t, err)
	rawClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	_, err = rawClient.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
	require.NoError(t, err)

	store, err := blobstore.New(ctx, cfg)
	require.NoError(t, err)
	return store
}

func TestResolveHappyPathProducesDownloadGrant(t *testing.T) {
	dsn := setupPostgresContainer(t)
	gdb, err := dbpg.Open(dsn)
	require.NoError(t, err)
	store := setupMinioStore(t)

	ctx := context.Background()
	orgs := dbpg.NewOrganizationRepository(gdb)
	entries := dbpg.NewRegistryEntryRepository(gdb)
	versions := dbpg.NewVersionRepository(gdb)

	org := &models.Organization{Slug: "uniprot", DisplayName: "UniProt"}
	require.NoError(t, orgs.Create(ctx, org))
	entry := &models.RegistryEntry{OrganizationID: org.ID, Slug: "P01308", EntryType: models.EntryTypeDataSource, DisplayName: "P01308"}
	require.NoError(t, entries.Create(ctx, entry, nil))

	_, err = store.Put(ctx, "uniprot/P01308/1.0/P01308.fasta", []byte(">P01308\nMALWM\n"), "")
	require.NoError(t, err)

	v := &models.Version{RegistryEntryID: entry.ID, VersionString: "1.0", ExternalVersion: "1.0", ReleaseDate: time.Now()}
	require.NoError(t, versions.Create(ctx, v, []models.VersionFile{{
		Format:     "fasta",
		StorageKey: "uniprot/P01308/1.0/P01308.fasta",
		SHA256:     "abc123",
		Size:       4096,
	}}))

	resolver := NewResolver(orgs, entries, versions, store, 15*time.Minute)
	result, err := resolver.Resolve(ctx, Request{Sources: []string{"uniprot:P01308-fasta@1.0"}})
	require.NoError(t, err)

	resolved, ok := result.Sources["uniprot:P01308-fasta@1.0"]
	require.True(t, ok)
	assert.Equal(t, "uniprot:P01308@1.0", resolved.ResolvedSpec)
	assert.Equal(t, "fasta", resolved.Format)
	assert.Equal(t, "sha256:abc123", resolved.Checksum)
	assert.Equal(t, int64(4096), resolved.Size)
	assert.NotEmpty(t, resolved.DownloadURL)
	assert.Equal(t, 0, resolved.DependencyCount)
}

func TestResolveSourceNotFound(t *testing.T) {
	dsn := setupPostgresContainer(t)
	gdb, err := dbpg.Open(dsn)
	require.NoError(t, err)

	orgs := dbpg.NewOrganizationRepository(gdb)
	entries := dbpg.NewRegistryEntryRepository(gdb)
	versions := dbpg.NewVersionRepository(gdb)

	resolver := NewResolver(orgs, entries, versions, nil, 0)
	_, err = resolver.Resolve(context.Background(), Request{Sources: []string{"missing:nothing@1.0"}})
	require.Error(t, err)

	var modelErr *models.Error
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, models.CategoryNotFound, modelErr.Category)
}

func TestResolveVersionNotFound(t *testing.T) {
	dsn := setupPostgresContainer(t)
	gdb, err := dbpg.Open(dsn)
	require.NoError(t, err)

	ctx := context.Background()
	orgs := dbpg.NewOrganizationRepository(gdb)
	entries := dbpg.NewRegistryEntryRepository(gdb)
	versions := dbpg.NewVersionRepository(gdb)

	org := &models.Organization{Slug: "uniprot2", DisplayName: "UniProt2"}
	require.NoError(t, orgs.Create(ctx, org))
	entry := &models.RegistryEntry{OrganizationID: org.ID, Slug: "P01308", EntryType: models.EntryTypeDataSource, DisplayName: "P01308"}
	require.NoError(t, entries.Create(ctx, entry, nil))

	resolver := NewResolver(orgs, entries, versions, nil, 0)
	_, err = resolver.Resolve(ctx, Request{Sources: []string{"uniprot2:P01308@9.9"}})
	require.Error(t, err)

	var modelErr *models.Error
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, models.CategoryNotFound, modelErr.Category)
}

func TestResolveCircularDependency(t *testing.T) {
	dsn := setupPostgresContainer(t)
	gdb, err := dbpg.Open(dsn)
	require.NoError(t, err)

	ctx := context.Background()
	orgs := dbpg.NewOrganizationRepository(gdb)
	entries := dbpg.NewRegistryEntryRepository(gdb)
	versions := dbpg.NewVersionRepository(gdb)

	org := &models.Organization{Slug: "cycorg", DisplayName: "Cyclic"}
	require.NoError(t, orgs.Create(ctx, org))
	entryA := &models.RegistryEntry{OrganizationID: org.ID, Slug: "a", EntryType: models.EntryTypeDataSource, DisplayName: "a"}
	require.NoError(t, entries.Create(ctx, entryA, nil))
	entryB := &models.RegistryEntry{OrganizationID: org.ID, Slug: "b", EntryType: models.EntryTypeDataSource, DisplayName: "b"}
	require.NoError(t, entries.Create(ctx, entryB, nil))

	vA := &models.Version{RegistryEntryID: entryA.ID, VersionString: "1.0", ExternalVersion: "1.0", ReleaseDate: time.Now()}
	require.NoError(t, versions.Create(ctx, vA, []models.VersionFile{{Format: "fasta", StorageKey: "k-a", SHA256: "x", Size: 1}}))
	vB := &models.Version{RegistryEntryID: entryB.ID, VersionString: "1.0", ExternalVersion: "1.0", ReleaseDate: time.Now()}
	require.NoError(t, versions.Create(ctx, vB, []models.VersionFile{{Format: "fasta", StorageKey: "k-b", SHA256: "x", Size: 1}}))

	require.NoError(t, versions.AddDependency(ctx, vA.ID, vB.ID, "reference"))
	require.NoError(t, versions.AddDependency(ctx, vB.ID, vA.ID, "reference"))

	resolver := NewResolver(orgs, entries, versions, nil, 0)
	_, err = resolver.Resolve(ctx, Request{Sources: []string{"cycorg:a-fasta@1.0"}})
	require.Error(t, err)

	var modelErr *models.Error
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, models.CategoryConflict, modelErr.Category)
}

// TestResolveDiamondDependencyIsNotACycle builds top -> {mid1, mid2} -> base,
// a diamond shape where base is reachable through two paths, and asserts it
// resolves cleanly instead of being misreported as a circular dependency.
func TestResolveDiamondDependencyIsNotACycle(t *testing.T) {
	dsn := setupPostgresContainer(t)
	gdb, err := dbpg.Open(dsn)
	require.NoError(t, err)
	store := setupMinioStore(t)

	ctx := context.Background()
	orgs := dbpg.NewOrganizationRepository(gdb)
	entries := dbpg.NewRegistryEntryRepository(gdb)
	versions := dbpg.NewVersionRepository(gdb)

	org := &models.Organization{Slug: "diamond", DisplayName: "Diamond"}
	require.NoError(t, orgs.Create(ctx, org))

	makeVersion := func(slug string) *models.Version {
		entry := &models.RegistryEntry{OrganizationID: org.ID, Slug: slug, EntryType: models.EntryTypeDataSource, DisplayName: slug}
		require.NoError(t, entries.Create(ctx, entry, nil))

		key := "diamond/" + slug + "/1.0/" + slug + ".fasta"
		_, err := store.Put(ctx, key, []byte(">"+slug+"\nACGT\n"), "")
		require.NoError(t, err)

		v := &models.Version{RegistryEntryID: entry.ID, VersionString: "1.0", ExternalVersion: "1.0", ReleaseDate: time.Now()}
		require.NoError(t, versions.Create(ctx, v, []models.VersionFile{{Format: "fasta", StorageKey: key, SHA256: "x", Size: 4}}))
		return v
	}

	base := makeVersion("base")
	mid1 := makeVersion("mid1")
	mid2 := makeVersion("mid2")
	top := makeVersion("top")

	require.NoError(t, versions.AddDependency(ctx, mid1.ID, base.ID, "reference"))
	require.NoError(t, versions.AddDependency(ctx, mid2.ID, base.ID, "reference"))
	require.NoError(t, versions.AddDependency(ctx, top.ID, mid1.ID, "reference"))
	require.NoError(t, versions.AddDependency(ctx, top.ID, mid2.ID, "reference"))

	resolver := NewResolver(orgs, entries, versions, store, 15*time.Minute)
	result, err := resolver.Resolve(ctx, Request{Sources: []string{"diamond:top-fasta@1.0"}})
	require.NoError(t, err)

	resolved, ok := result.Sources["diamond:top-fasta@1.0"]
	require.True(t, ok)
	assert.Equal(t, 3, resolved.DependencyCount, "base must be counted once, not once per path")
}
