package versioning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biopkg/bdp/internal/models"
)

func TestSemVerCompareNumericNotLexical(t *testing.T) {
	a, err := ParseSemVer("10.0")
	require.NoError(t, err)
	b, err := ParseSemVer("9.0")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Compare(b))
}

func TestClassifyChangelogBreakingWinsOverAdditive(t *testing.T) {
	kind := ClassifyChangelog(models.VersionChangelog{Entries: []models.ChangelogEntry{
		{ChangeType: models.ChangeNewRecord},
		{ChangeType: models.ChangeRemovedRecord},
	}})
	assert.Equal(t, BumpMajor, kind)
}

func TestClassifyChangelogAdditiveOnly(t *testing.T) {
	kind := ClassifyChangelog(models.VersionChangelog{Entries: []models.ChangelogEntry{
		{ChangeType: models.ChangeNewAnnotation},
	}})
	assert.Equal(t, BumpMinor, kind)
}

func TestClassifyChangelogCorrectiveOnly(t *testing.T) {
	kind := ClassifyChangelog(models.VersionChangelog{Entries: []models.ChangelogEntry{
		{ChangeType: models.ChangeCorrectedField},
	}})
	assert.Equal(t, BumpPatch, kind)
}

func TestCalculateNextVersionMajorMinorPatch(t *testing.T) {
	next, err := CalculateNextVersion(StrategyMajorMinorPatch, "1.2.3", BumpMinor, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", next)
}

func TestCalculateNextVersionDateBased(t *testing.T) {
	next, err := CalculateNextVersion(StrategyDateBased, "", BumpNone, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024-11-01", next)
}

func TestGenericDetectorDetectsAdditionsRemovalsAndEdits(t *testing.T) {
	d := GenericDetector{IdentityFields: []string{"accession"}}
	staged := map[string]map[string]string{
		"P01308": {"accession": "P01308", "description": "Insulin, corrected"},
		"P99999": {"accession": "P99999", "description": "New protein"},
	}
	stored := map[string]map[string]string{
		"P01308": {"accession": "P01308", "description": "Insulin"},
		"P00000": {"accession": "P00000", "description": "Removed protein"},
	}

	changelog := d.Detect(staged, stored)

	var sawNew, sawRemoved, sawCorrected bool
	for _, e := range changelog.Entries {
		switch e.ChangeType {
		case models.ChangeNewRecord:
			sawNew = true
		case models.ChangeRemovedRecord:
			sawRemoved = true
		case models.ChangeCorrectedField:
			sawCorrected = true
		}
	}
	assert.True(t, sawNew)
	assert.True(t, sawRemoved)
	assert.True(t, sawCorrected)
}

func TestNextCascadeVersionBumpsDependent(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "1.1", nextCascadeVersion("1.0", now))
	assert.Equal(t, "1.0.1", nextCascadeVersion("1.0.0", now))
	assert.Equal(t, "2024-06-01", nextCascadeVersion("2024-01-15", now))
}
