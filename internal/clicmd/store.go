package clicmd

import (
	"os"
	"path/filepath"

	"github.com/biopkg/bdp/internal/audit"
	"github.com/biopkg/bdp/internal/boltkv"
)

func dotBDPDir(dir string) string {
	return filepath.Join(dir, ".bdp")
}

func ledgerDBPath(dir string) string {
	return filepath.Join(dotBDPDir(dir), "bdp.db")
}

func machineIDPath(dir string) string {
	return filepath.Join(dotBDPDir(dir), "machine-id")
}

// openLedger opens the project's audit ledger in its own bbolt handle, for
// commands that only ever touch the ledger (`bdp audit ...`).
func openLedger(dir string) (*audit.Ledger, error) {
	if err := os.MkdirAll(dotBDPDir(dir), 0o755); err != nil {
		return nil, err
	}
	return audit.Open(ledgerDBPath(dir), machineIDPath(dir))
}

// openProjectDB opens the shared project bbolt database for commands that
// need both the audit ledger and the cache manager against it (`bdp
// pull`). bbolt's file lock is exclusive per process, so the handle is
// opened once here and shared rather than opened a second time through
// audit.Open.
func openProjectDB(dir string) (*boltkv.DB, error) {
	if err := os.MkdirAll(dotBDPDir(dir), 0o755); err != nil {
		return nil, err
	}
	return boltkv.Open(ledgerDBPath(dir))
}
