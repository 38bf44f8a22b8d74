package clicmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biopkg/bdp/internal/audit"
	"github.com/biopkg/bdp/internal/cache"
	"github.com/biopkg/bdp/internal/httpx"
	"github.com/biopkg/bdp/internal/models"
	"github.com/biopkg/bdp/internal/resolve"
)

var forcePull bool
var pullServerURL string

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Resolve the manifest against the server and download sources into the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := currentDir()
		cfg := loadClientConfig()
		if pullServerURL != "" {
			cfg.ServerURL = pullServerURL
		}

		m, err := loadManifest(dir)
		if err != nil {
			return err
		}
		if len(m.Sources) == 0 {
			fmt.Println("no sources declared; run 'bdp source add' first")
			return nil
		}

		db, err := openProjectDB(dir)
		if err != nil {
			return err
		}
		defer db.Close()

		ledger, err := audit.OpenWith(db, machineIDPath(dir))
		if err != nil {
			return err
		}

		mgr, err := cache.Open(db, cfg.CacheDir)
		if err != nil {
			return err
		}

		specs := make([]string, 0, len(m.Sources))
		for _, s := range m.Sources {
			specs = append(specs, s.Spec)
		}

		progress := NewProgressReporter(cmd.OutOrStdout())
		_, err = audit.WrapCommand(ledger, "pull", "", func() (struct{}, error) {
			return struct{}{}, runPull(ledger, mgr, progress, cfg.ServerURL, dir, specs)
		})
		return err
	},
}

// runPull resolves specs against the server, downloads and verifies each
// one into the local cache, and writes the lockfile pinning what was
// pulled.
func runPull(ledger *audit.Ledger, mgr *cache.Manager, progress ProgressReporter, serverURL, dir string, specs []string) error {
	result, err := requestResolve(serverURL, specs)
	if err != nil {
		return err
	}

	entries := make(map[string]models.LockfileEntry, len(specs))
	for _, spec := range specs {
		resolved, ok := result.Sources[spec]
		if !ok {
			return fmt.Errorf("server did not resolve %s", spec)
		}

		entry, err := pullOne(ledger, mgr, progress, spec, resolved)
		if err != nil {
			return err
		}
		entries[spec] = *entry
	}

	if err := cache.WriteLockfile(lockfilePath(dir), entries); err != nil {
		return err
	}

	progress.Done(len(specs), serverURL)
	return nil
}

// pullOne fetches, caches, and audits a single resolved source, skipping
// the download when it's already cached under the same checksum unless
// --force was given.
func pullOne(ledger *audit.Ledger, mgr *cache.Manager, progress ProgressReporter, spec string, resolved models.ResolvedSource) (*models.LockfileEntry, error) {
	if !forcePull {
		if cached, _ := mgr.Get(spec); cached != nil && cached.Checksum == resolved.Checksum {
			progress.Cached(spec)
			return lockEntryFor(resolved), nil
		}
	}

	cached, err := audit.WrapCommand(ledger, "download", spec, func() (*models.CachedSource, error) {
		data, err := downloadBlob(resolved.DownloadURL)
		if err != nil {
			return nil, err
		}
		return mgr.Put(spec, resolved, data)
	})
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", spec, err)
	}

	if _, err := audit.WrapCommand(ledger, "verify", spec, func() (struct{}, error) {
		return struct{}{}, nil
	}); err != nil {
		return nil, fmt.Errorf("pull %s: %w", spec, err)
	}

	progress.Pulled(spec, cached.Size, cached.BlobPath)
	return lockEntryFor(resolved), nil
}

func downloadBlob(url string) ([]byte, error) {
	req := httpx.NewRequest("GET", url)
	resp, err := httpx.Execute(context.Background(), req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}
	return resp.Body, nil
}

func requestResolve(serverURL string, specs []string) (*resolve.Result, error) {
	body, err := json.Marshal(map[string]interface{}{"sources": specs})
	if err != nil {
		return nil, err
	}

	req := httpx.NewRequest("POST", serverURL+"/api/v1/resolve")
	req.JSONBody = string(body)
	resp, err := httpx.Execute(context.Background(), req)
	if err != nil {
		return nil, fmt.Errorf("resolve request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("resolve failed: %s", resp.BodyString)
	}

	var envelope struct {
		Success bool           `json:"success"`
		Data    resolve.Result `json:"data"`
		Error   string         `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("decode resolve response: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("resolve failed: %s", envelope.Error)
	}
	return &envelope.Data, nil
}

func lockEntryFor(r models.ResolvedSource) *models.LockfileEntry {
	return &models.LockfileEntry{
		Resolved:        r.ResolvedSpec,
		Format:          r.Format,
		Checksum:        r.Checksum,
		Size:            r.Size,
		ExternalVersion: r.ExternalVersion,
	}
}

func init() {
	pullCmd.Flags().BoolVar(&forcePull, "force", false, "re-download sources even if already cached")
	pullCmd.Flags().StringVar(&pullServerURL, "server-url", "", "override BDP_SERVER_URL for this invocation")
}
