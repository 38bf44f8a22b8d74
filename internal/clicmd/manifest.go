package clicmd

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/biopkg/bdp/internal/models"
)

const manifestFileName = "bdp.yml"
const lockfileName = "bdl.lock"

// Manifest is the project's declared set of dataset dependencies, the
// client-side counterpart to models.ResolvedSource / models.LockfileEntry.
type Manifest struct {
	Sources []ManifestSource `yaml:"sources"`
}

type ManifestSource struct {
	Spec string `yaml:"spec"`
}

func manifestPath(dir string) string {
	return filepath.Join(dir, manifestFileName)
}

func loadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath(dir))
	if os.IsNotExist(err) {
		return nil, models.NotInitialized("no %s in %s; run 'bdp init' first", manifestFileName, dir)
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// saveManifest writes the manifest atomically: write to a temp file in the
// same directory, then rename over the target, so a crash mid-write never
// leaves a truncated bdp.yml behind.
func saveManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".bdp.yml.tmp-*")
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
	return os.Rename(tmpName, manifestPath(dir))
}
