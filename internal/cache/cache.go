// Package cache implements the client cache manager (C9): a
// content-addressed local cache keyed by source spec, with size
// accounting and lockfile emission.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/biopkg/bdp/internal/boltkv"
	"github.com/biopkg/bdp/internal/models"
)

const cacheBucket = "cached_sources"

// Manager owns the project's local content-addressed cache: resolved
// source bytes on disk under cacheDir, indexed by spec in the project's
// shared bbolt database.
type Manager struct {
	db      *boltkv.DB
	cacheDir string
}

// Open opens the cache index bucket in the shared project bbolt database
// and ensures cacheDir exists.
func Open(db *boltkv.DB, cacheDir string) (*Manager, error) {
	if err := db.CreateBucket(cacheBucket); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create cache dir: %w", err)
	}
	return &Manager{db: db, cacheDir: cacheDir}, nil
}

// blobPath is the on-disk path for a cached blob, content-addressed by its
// sha-256 so identical bytes for two different specs are stored once.
func (m *Manager) blobPath(checksum string) string {
	return filepath.Join(m.cacheDir, "blobs", checksum[:2], checksum)
}

// Put verifies data's sha-256 against the resolved source's checksum,
// writes it to the content-addressed path, and records a CachedSource
// entry keyed by spec.
func (m *Manager) Put(spec string, resolved models.ResolvedSource, data []byte) (*models.CachedSource, error) {
	wantHex := resolved.Checksum
	if len(wantHex) > 7 && wantHex[:7] == "sha256:" {
		wantHex = wantHex[7:]
	}
	sum := sha256.Sum256(data)
	gotHex := hex.EncodeToString(sum[:])
	if wantHex != "" && gotHex != wantHex {
		return nil, models.ChecksumMismatch(spec, wantHex, gotHex)
	}

	path := m.blobPath(gotHex)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("cache: write blob: %w", err)
		}
	}

	entry := &models.CachedSource{
		Spec:     spec,
		Resolved: resolved.ResolvedSpec,
		Format:   resolved.Format,
		Checksum: resolved.Checksum,
		Size:     int64(len(data)),
		BlobPath: path,
		CachedAt: time.Now(),
	}
	if err := m.db.PutJSON(cacheBucket, spec, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Get returns the cached entry for spec, or (nil, nil) if not cached.
func (m *Manager) Get(spec string) (*models.CachedSource, error) {
	var entry models.CachedSource
	if err := m.db.GetJSON(cacheBucket, spec, &entry); err != nil {
		return nil, nil
	}
	return &entry, nil
}

// All returns every cached entry, used by `bdp status`.
func (m *Manager) All() ([]models.CachedSource, error) {
	var entries []models.CachedSource
	err := m.db.ForEachJSON(cacheBucket, func() interface{} { return &models.CachedSource{} }, func(_ string, v interface{}) error {
		entries = append(entries, *(v.(*models.CachedSource)))
		return nil
	})
	return entries, err
}

// TotalSize sums the recorded size of every cached entry; since blobs are
// content-addressed, two specs sharing identical bytes are deduplicated on
// disk but still counted once each here (this is the logical size a
// client declared, matching what `bdp clean` reports it will free).
func (m *Manager) TotalSize() (int64, error) {
	entries, err := m.All()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total, nil
}

// Remove deletes spec's cache index entry. It does not remove the
// underlying blob file, since another spec may reference the same
// content-addressed bytes.
func (m *Manager) Remove(spec string) error {
	return m.db.Delete(cacheBucket, spec)
}
