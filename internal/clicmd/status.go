package clicmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/biopkg/bdp/internal/cache"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the manifest, lockfile, and cache state for this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := currentDir()
		m, err := loadManifest(dir)
		if err != nil {
			return err
		}
		fmt.Printf("manifest: %s (%d source(s))\n", manifestPath(dir), len(m.Sources))

		lockPath := lockfilePath(dir)
		if _, err := os.Stat(lockPath); err == nil {
			fmt.Println("lockfile:", lockPath)
		} else {
			fmt.Println("lockfile: not generated yet; run 'bdp pull'")
		}

		cfg := loadClientConfig()
		fmt.Println("cache dir:", cfg.CacheDir)
		fmt.Println("server:", cfg.ServerURL)

		db, err := openProjectDB(dir)
		if err != nil {
			return err
		}
		defer db.Close()

		mgr, err := cache.Open(db, cfg.CacheDir)
		if err != nil {
			return err
		}
		cached, err := mgr.All()
		if err != nil {
			return err
		}
		total, err := mgr.TotalSize()
		if err != nil {
			return err
		}
		fmt.Printf("cached: %d source(s), %s\n", len(cached), humanize.Bytes(uint64(total)))
		return nil
	},
}

func lockfilePath(dir string) string {
	return dir + "/" + lockfileName
}
