package versioning

import "github.com/biopkg/bdp/internal/models"

// breakingChangeTypes, additiveChangeTypes, and correctiveChangeTypes
// classify a models.ChangeType into the bump magnitude it forces:
// any breaking entry forces MAJOR regardless of what else is present; any
// additive entry (with no breaking entry) forces MINOR; otherwise, if only
// corrective entries are present, the bump is PATCH.
var breakingChangeTypes = map[models.ChangeType]bool{
	models.ChangeRemovedRecord:   true,
	models.ChangeChangedIdentity: true,
	models.ChangeChangedSchema:   true,
}

var additiveChangeTypes = map[models.ChangeType]bool{
	models.ChangeNewRecord:     true,
	models.ChangeNewField:      true,
	models.ChangeNewAnnotation: true,
}

// ClassifyChangelog inspects every entry in a VersionChangelog and returns
// the BumpKind the version calculator must apply. An empty changelog
// yields BumpNone.
func ClassifyChangelog(changelog models.VersionChangelog) BumpKind {
	if len(changelog.Entries) == 0 {
		return BumpNone
	}
	sawAdditive := false
	for _, e := range changelog.Entries {
		if breakingChangeTypes[e.ChangeType] {
			return BumpMajor
		}
		if additiveChangeTypes[e.ChangeType] {
			sawAdditive = true
		}
	}
	if sawAdditive {
		return BumpMinor
	}
	return BumpPatch
}

// Detector produces the structured changelog between the records staged
// for a new external version and the latest stored version of the same
// registry entry. Concrete detectors are registered per source type
//: the calculator depends only on the returned
// VersionChangelog, never on source-specific fields.
type Detector interface {
	// Detect compares stagedRecords (freshly parsed, keyed by a stable
	// record identifier) against storedRecords (the same shape, loaded
	// from the previous version) and returns the changelog.
	Detect(stagedRecords, storedRecords map[string]map[string]string) models.VersionChangelog
}

// Registry maps a source type to the Detector that understands its record
// shape, so the calculator never branches on source-specific fields.
type Registry struct {
	detectors map[models.SourceType]Detector
}

func NewRegistry() *Registry {
	return &Registry{detectors: make(map[models.SourceType]Detector)}
}

func (r *Registry) Register(sourceType models.SourceType, d Detector) {
	r.detectors[sourceType] = d
}

func (r *Registry) For(sourceType models.SourceType) (Detector, bool) {
	d, ok := r.detectors[sourceType]
	return d, ok
}

// GenericDetector is a field-level diff applicable to any record shape
// keyed by a stable identifier: it classifies additions, removals, and
// field-level edits without understanding the domain meaning of any
// field, used when no source-specific Detector is registered.
type GenericDetector struct {
	// IdentityFields are compared to decide whether an edit qualifies as
	// a "changed identifier" breaking change rather than a corrected
	// field; empty means no field is treated as an identifier.
	IdentityFields []string
}

func (g GenericDetector) Detect(staged, stored map[string]map[string]string) models.VersionChangelog {
	var entries []models.ChangelogEntry

	for key, newFields := range staged {
		oldFields, existed := stored[key]
		if !existed {
			entries = append(entries, models.ChangelogEntry{
				ChangeType: models.ChangeNewRecord,
				After:      key,
				Rationale:  "record present in new version but absent from previous",
			})
			continue
		}
		entries = append(entries, g.diffFields(key, oldFields, newFields)...)
	}

	for key := range stored {
		if _, stillPresent := staged[key]; !stillPresent {
			entries = append(entries, models.ChangelogEntry{
				ChangeType: models.ChangeRemovedRecord,
				Before:     key,
				Rationale:  "record present in previous version but absent from new version",
			})
		}
	}

	return models.VersionChangelog{Entries: entries}
}

func (g GenericDetector) diffFields(key string, oldFields, newFields map[string]string) []models.ChangelogEntry {
	var entries []models.ChangelogEntry
	isIdentity := make(map[string]bool, len(g.IdentityFields))
	for _, f := range g.IdentityFields {
		isIdentity[f] = true
	}

	for field, newVal := range newFields {
		oldVal, existed := oldFields[field]
		if !existed {
			entries = append(entries, models.ChangelogEntry{
				ChangeType: models.ChangeNewField,
				After:      field + "=" + newVal,
				Rationale:  "record " + key + " gained field " + field,
			})
			continue
		}
		if oldVal == newVal {
			continue
		}
		changeType := models.ChangeCorrectedField
		if isIdentity[field] {
			changeType = models.ChangeChangedIdentity
		}
		entries = append(entries, models.ChangelogEntry{
			ChangeType: changeType,
			Before:     field + "=" + oldVal,
			After:      field + "=" + newVal,
			Rationale:  "record " + key + " field " + field + " changed",
		})
	}

	return entries
}
