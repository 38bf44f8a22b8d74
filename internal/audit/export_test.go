package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportEachFormatWritesFileAndSnapshot(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.LogEvent(EventInitStart, "", nil)
	require.NoError(t, err)
	_, err = l.LogEvent(EventInitSuccess, "", nil)
	require.NoError(t, err)
	_, err = l.LogEvent(EventDownloadStart, "uniprot:P01308@1.0", nil)
	require.NoError(t, err)
	last, err := l.LogEvent(EventDownloadSuccess, "uniprot:P01308@1.0", nil)
	require.NoError(t, err)

	for _, format := range []Format{FormatFDA, FormatNIH, FormatEMA, FormatDAS, FormatJSON} {
		dir := t.TempDir()
		outPath := filepath.Join(dir, "report."+string(format))

		snap, err := l.Export(format, 1, last.ID, outPath)
		require.NoError(t, err, "format %s", format)
		assert.Equal(t, int64(1), snap.FromID)
		assert.Equal(t, last.ID, snap.ToID)
		assert.True(t, snap.ChainValid)
		assert.Equal(t, format, snap.Format)

		contents, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.NotEmpty(t, contents)
	}
}

func TestExportDASFiltersToAccessEvents(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.LogEvent(EventInitStart, "", nil)
	require.NoError(t, err)
	_, err = l.LogEvent(EventDownloadStart, "uniprot:P01308@1.0", nil)
	require.NoError(t, err)
	last, err := l.LogEvent(EventDownloadSuccess, "uniprot:P01308@1.0", nil)
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "das.txt")
	_, err = l.Export(FormatDAS, 1, last.ID, outPath)
	require.NoError(t, err)

	contents, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "download-start")
	assert.NotContains(t, string(contents), "init-start")
}

func TestExportAnnotatesBrokenChainWithoutFailing(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.LogEvent(EventInitStart, "", nil)
	require.NoError(t, err)
	ev, err := l.LogEvent(EventInitSuccess, "", nil)
	require.NoError(t, err)

	ev.Details = `{"tampered":true}`
	require.NoError(t, l.db.PutJSON(eventsBucket, keyFor(ev.ID), ev))

	outPath := filepath.Join(t.TempDir(), "broken.json")
	snap, err := l.Export(FormatJSON, 1, ev.ID, outPath)
	require.NoError(t, err)
	assert.False(t, snap.ChainValid)
	assert.NotEmpty(t, snap.ChainBreakReason)

	var payload struct {
		Verification VerificationResult `json:"verification"`
	}
	contents, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(contents, &payload))
	assert.False(t, payload.Verification.Valid)
}

func TestExportUnknownFormatErrors(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.LogEvent(EventInitStart, "", nil)
	require.NoError(t, err)

	_, err = l.Export(Format("bogus"), 1, 1, filepath.Join(t.TempDir(), "out"))
	assert.Error(t, err)
}
