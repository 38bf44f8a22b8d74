package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/biopkg/bdp/internal/models"
)

// Lockfile is the bdl.lock document: a pinned resolution per declared
// source spec.
type Lockfile struct {
	Sources map[string]models.LockfileEntry `yaml:"sources"`
}

// WriteLockfile atomically replaces the lockfile at path: write to a temp
// file in the same directory, then rename over the target, so a crash
// mid-write never leaves a truncated bdl.lock behind.
func WriteLockfile(path string, entries map[string]models.LockfileEntry) error {
	data, err := yaml.Marshal(Lockfile{Sources: entries})
	if err != nil {
		return fmt.Errorf("cache: marshal lockfile: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bdl.lock.tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadLockfile loads an existing lockfile, returning an empty Lockfile if
// none exists yet.
func ReadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Lockfile{Sources: map[string]models.LockfileEntry{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var lf Lockfile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, err
	}
	if lf.Sources == nil {
		lf.Sources = map[string]models.LockfileEntry{}
	}
	return &lf, nil
}

// FormatBytes renders a byte count as binary-multiple units with two
// decimal places, except whole bytes below 1 KB which are printed with no
// fraction ("512 B", "1.50 KB", "1.00 MB"). Hand-written rather than
// built on github.com/dustin/go-humanize (used elsewhere in the CLI for
// approximate human sizes) because lockfile tooling expects this exact
// output format, which go-humanize's "1.0 kB"/"1.0 KiB" styles don't
// produce.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for n/div >= unit && exp < 3 {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.2f %s", float64(n)/float64(div), units[exp])
}
