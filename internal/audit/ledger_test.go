package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, cleanup, err := NewInMemory("test-machine")
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return l
}

func TestLogEventChainsPreviousHash(t *testing.T) {
	l := newTestLedger(t)

	e1, err := l.LogEvent(EventInitStart, "", nil)
	require.NoError(t, err)
	e2, err := l.LogEvent(EventInitSuccess, "", nil)
	require.NoError(t, err)
	e3, err := l.LogEvent(EventDownloadStart, "uniprot:P01308@1.0", nil)
	require.NoError(t, err)
	e4, err := l.LogEvent(EventDownloadFailure, "uniprot:P01308@1.0", map[string]string{"error": "timeout"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), e1.ID)
	assert.Equal(t, int64(4), e4.ID)
	assert.Equal(t, e1.EventHash, e2.PreviousHash)
	assert.Equal(t, e2.EventHash, e3.PreviousHash)
	assert.Equal(t, e3.EventHash, e4.PreviousHash)

	result, err := l.VerifyIntegrity()
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestVerifyIntegrityDetectsMutation(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.LogEvent(EventInitStart, "", nil)
	require.NoError(t, err)
	ev, err := l.LogEvent(EventInitSuccess, "", map[string]string{"note": "ok"})
	require.NoError(t, err)

	ev.Details = `{"note":"tampered"}`
	require.NoError(t, l.db.PutJSON(eventsBucket, keyFor(ev.ID), ev))

	result, err := l.VerifyIntegrity()
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ev.ID, result.BreakAtID)
}

func TestWrapCommandLogsStartSuccess(t *testing.T) {
	l := newTestLedger(t)

	result, err := WrapCommand(l, "pull", "uniprot:P01308@1.0", func() (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	events, err := l.All()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventType("pull-start"), events[0].EventType)
	assert.Equal(t, EventType("pull-success"), events[1].EventType)
}

func TestWrapCommandLogsFailureAndReturnsOriginalError(t *testing.T) {
	l := newTestLedger(t)

	boom := assert.AnError
	_, err := WrapCommand(l, "pull", "uniprot:P01308@1.0", func() (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	events, aerr := l.All()
	require.NoError(t, aerr)
	require.Len(t, events, 2)
	assert.Equal(t, EventType("pull-failure"), events[1].EventType)
}

func TestMachineIDPersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "bdp.db")
	idPath := filepath.Join(dir, "machine-id")

	l1, err := Open(dbPath, idPath)
	require.NoError(t, err)
	id1 := l1.MachineID()
	require.NoError(t, l1.Close())

	l2, err := Open(dbPath, idPath)
	require.NoError(t, err)
	defer l2.Close()
	assert.Equal(t, id1, l2.MachineID())

	data, err := os.ReadFile(idPath)
	require.NoError(t, err)
	assert.Equal(t, id1, string(data))
}

func TestExportJSONProducesSnapshot(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.LogEvent(EventInitStart, "", nil)
	require.NoError(t, err)
	_, err = l.LogEvent(EventInitSuccess, "", nil)
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "export.json")
	snap, err := l.Export(FormatJSON, 1, 2, outPath)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.EventCount)
	assert.True(t, snap.ChainValid)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "init-start")
}
