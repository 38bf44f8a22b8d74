// Package models defines the shared domain types for organizations, registry
// entries, versions, ingestion jobs, and the audit/cache records that travel
// between the server's metadata store, the ingestion pipeline, and the CLI.
package models

import "time"

// EntryType distinguishes a registry entry that carries versioned data files
// from one that packages a tool.
type EntryType string

const (
	EntryTypeDataSource EntryType = "data-source"
	EntryTypeTool       EntryType = "tool"
)

// SourceType classifies the kind of biological data a data source holds.
type SourceType string

const (
	SourceTypeProtein   SourceType = "protein"
	SourceTypeGenome    SourceType = "genome"
	SourceTypeTaxonomy  SourceType = "taxonomy"
	SourceTypeOntology  SourceType = "ontology"
	SourceTypeDomain    SourceType = "domain"
)

// JobStatus is the ingestion job lifecycle state.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobSkipped   JobStatus = "skipped"
	JobCancelled JobStatus = "cancelled"
)

// JobMode selects which upstream versions an ingestion job targets.
type JobMode string

const (
	JobModeLatest     JobMode = "latest"
	JobModeHistorical JobMode = "historical"
	JobModeSingle     JobMode = "single"
)

// WorkUnitStatus tracks one slice of a job's record range.
type WorkUnitStatus string

const (
	WorkUnitPending WorkUnitStatus = "pending"
	WorkUnitRunning WorkUnitStatus = "running"
	WorkUnitDone    WorkUnitStatus = "done"
	WorkUnitFailed  WorkUnitStatus = "failed"
)

// AuditAction enumerates the server-side mutations that get audited.
type AuditAction string

const (
	AuditCreate  AuditAction = "create"
	AuditUpdate  AuditAction = "update"
	AuditDelete  AuditAction = "delete"
	AuditPublish AuditAction = "publish"
)

// Organization owns registry entries under a unique, immutable slug.
type Organization struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	Slug        string    `json:"slug" gorm:"uniqueIndex;not null"`
	DisplayName string    `json:"display_name" gorm:"not null"`
	Website     string    `json:"website,omitempty"`
	Description string    `json:"description,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
	IsSystem    bool      `json:"is_system" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RegistryEntry is a (organization, slug) unique data source or tool.
type RegistryEntry struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	OrganizationID string    `json:"organization_id" gorm:"not null;uniqueIndex:idx_entry_org_slug"`
	Slug           string    `json:"slug" gorm:"not null;uniqueIndex:idx_entry_org_slug"`
	EntryType      EntryType `json:"entry_type" gorm:"not null"`
	DisplayName    string    `json:"display_name" gorm:"not null"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DataSourceMetadata is the 1:1 data-source extension of a RegistryEntry.
type DataSourceMetadata struct {
	RegistryEntryID string     `json:"registry_entry_id" gorm:"primaryKey;type:uuid"`
	SourceType      SourceType `json:"source_type" gorm:"not null"`
	Format          string     `json:"format" gorm:"not null"`
	OrganismID      *string    `json:"organism_id,omitempty" gorm:"index"`
	Aggregate       bool       `json:"aggregate" gorm:"default:false"`
}

// Organism is a normalized record referenced by many data sources.
type Organism struct {
	ID             string `json:"id" gorm:"primaryKey;type:uuid"`
	ScientificName string `json:"scientific_name" gorm:"uniqueIndex;not null"`
	TaxonomyID     int64  `json:"taxonomy_id,omitempty"`
	CommonName     string `json:"common_name,omitempty"`
}

// Version is an append-only row of one registry entry's release history.
type Version struct {
	ID              string    `json:"id" gorm:"primaryKey;type:uuid"`
	RegistryEntryID string    `json:"registry_entry_id" gorm:"not null;uniqueIndex:idx_version_entry_version_string"`
	VersionString   string    `json:"version_string" gorm:"not null;uniqueIndex:idx_version_entry_version_string"`
	ExternalVersion string    `json:"external_version" gorm:"not null"`
	ReleaseDate     time.Time `json:"release_date"`
	ChangelogID     *string   `json:"changelog_id,omitempty"`
	Trigger         string    `json:"trigger,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// VersionFile is a (version, format) unique pointer into the blob store.
type VersionFile struct {
	ID          string  `json:"id" gorm:"primaryKey;type:uuid"`
	VersionID   string  `json:"version_id" gorm:"not null;uniqueIndex:idx_version_file_version_format"`
	Format      string  `json:"format" gorm:"not null;uniqueIndex:idx_version_file_version_format"`
	StorageKey  string  `json:"storage_key" gorm:"not null"`
	SHA256      string  `json:"sha256" gorm:"not null"`
	Size        int64   `json:"size" gorm:"not null"`
	Compression string  `json:"compression,omitempty"`
}

// Dependency is a weak, lookup-only edge from version A to version B.
type Dependency struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid"`
	VersionID    string `json:"version_id" gorm:"index;not null"`
	DependsOnID  string `json:"depends_on_id" gorm:"index;not null"`
	Role         string `json:"role,omitempty"`
}

// IngestionJob is one run of the coordinator against a single target.
type IngestionJob struct {
	ID               string     `json:"id" gorm:"primaryKey;type:uuid"`
	JobType          string     `json:"job_type" gorm:"not null"`
	OrganizationID   string     `json:"organization_id" gorm:"index;not null"`
	ExternalVersion  string     `json:"external_version"`
	InternalVersion  string     `json:"internal_version,omitempty"`
	Mode             JobMode    `json:"mode"`
	Status           JobStatus  `json:"status" gorm:"index;not null"`
	RecordsTotal     int64      `json:"records_total"`
	RecordsProcessed int64      `json:"records_processed"`
	RecordsStored    int64      `json:"records_stored"`
	RecordsFailed    int64      `json:"records_failed"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ErrorText        string     `json:"error_text,omitempty"`
}

// WorkUnit is a crash-resumable slice of an IngestionJob's record range.
type WorkUnit struct {
	ID        string         `json:"id" gorm:"primaryKey;type:uuid"`
	JobID     string         `json:"job_id" gorm:"index;not null"`
	Start     int64          `json:"start"`
	End       int64          `json:"end"`
	Status    WorkUnitStatus `json:"status" gorm:"index;not null"`
	Processed int64          `json:"processed"`
	Stored    int64          `json:"stored"`
	Failed    int64          `json:"failed"`
}

// OrganizationSyncStatus is the rolled-up per-organization sync state.
type OrganizationSyncStatus struct {
	OrganizationID      string     `json:"organization_id" gorm:"primaryKey;type:uuid"`
	LastExternalVersion string     `json:"last_external_version,omitempty"`
	LastSyncAt          *time.Time `json:"last_sync_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	TotalEntries         int64      `json:"total_entries"`
}

// AuditLogEntry is a server-side record of a state-changing API call.
type AuditLogEntry struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	Action       AuditAction `json:"action" gorm:"not null"`
	ResourceType string    `json:"resource_type" gorm:"not null"`
	ResourceID   string    `json:"resource_id" gorm:"index;not null"`
	Actor        string    `json:"actor,omitempty"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Before       string    `json:"before,omitempty" gorm:"type:jsonb"`
	After        string    `json:"after,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time `json:"created_at"`
}

// VersionChangelog is the change-detector output feeding the version
// calculator.
type VersionChangelog struct {
	Entries []ChangelogEntry `json:"entries"`
}

// ChangeType classifies one detected delta between two ingested versions.
type ChangeType string

const (
	ChangeRemovedRecord   ChangeType = "removed_record"
	ChangeChangedIdentity ChangeType = "changed_identifier"
	ChangeChangedSchema   ChangeType = "changed_schema"
	ChangeNewRecord       ChangeType = "new_record"
	ChangeNewField        ChangeType = "new_field"
	ChangeNewAnnotation   ChangeType = "new_annotation"
	ChangeCorrectedField  ChangeType = "corrected_field"
	ChangeCosmetic        ChangeType = "cosmetic"
)

// ChangelogEntry describes a single detected change.
type ChangelogEntry struct {
	ChangeType ChangeType `json:"change_type"`
	Before      string     `json:"before,omitempty"`
	After       string     `json:"after,omitempty"`
	Rationale   string     `json:"rationale,omitempty"`
}

// ResolvedSource is one entry in a resolved manifest response.
type ResolvedSource struct {
	ResolvedSpec     string `json:"resolved_spec"`
	Format           string `json:"format"`
	Checksum         string `json:"checksum"`
	Size             int64  `json:"size"`
	ExternalVersion  string `json:"external_version"`
	DownloadURL      string `json:"download_url"`
	DependencyCount  int    `json:"dependency_count"`
}

// LockfileEntry is the pinned resolution recorded in bdl.lock.
type LockfileEntry struct {
	Resolved        string `yaml:"resolved" json:"resolved"`
	Format          string `yaml:"format" json:"format"`
	Checksum        string `yaml:"checksum" json:"checksum"`
	Size            int64  `yaml:"size" json:"size"`
	ExternalVersion string `yaml:"external_version" json:"external_version"`
}

// CachedSource is the client cache's record for one resolved spec.
type CachedSource struct {
	Spec         string    `json:"spec"`
	Resolved     string    `json:"resolved"`
	Format       string    `json:"format"`
	Checksum     string    `json:"checksum"`
	Size         int64     `json:"size"`
	BlobPath     string    `json:"blob_path"`
	CachedAt     time.Time `json:"cached_at"`
}
