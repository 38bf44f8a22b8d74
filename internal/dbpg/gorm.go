// Package dbpg holds the relational metadata store (C2): organizations,
// registry entries, versions, version files, dependencies, ingestion jobs,
// work units, sync status, and the server audit log. Most access goes
// through GORM; the search query engine and job-status read model use the
// raw pgx pool exposed by PostgresDB for parameterized hand-written SQL.
package dbpg

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/biopkg/bdp/internal/models"
)

// Open connects GORM to the given DSN and migrates the C2 schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("dbpg: open: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Organization{},
		&models.RegistryEntry{},
		&models.DataSourceMetadata{},
		&models.Organism{},
		&models.Version{},
		&models.VersionFile{},
		&models.Dependency{},
		&models.IngestionJob{},
		&models.WorkUnit{},
		&models.OrganizationSyncStatus{},
		&models.AuditLogEntry{},
	); err != nil {
		return nil, fmt.Errorf("dbpg: migrate: %w", err)
	}

	return db, nil
}
