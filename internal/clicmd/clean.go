package clicmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	cleanAll           bool
	cleanSearchOnly    bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove cached source files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadClientConfig()
		if cleanSearchOnly {
			searchCacheDir := cfg.CacheDir + "/search"
			freed := dirSize(searchCacheDir)
			if err := os.RemoveAll(searchCacheDir); err != nil {
				return err
			}
			fmt.Printf("removed %s (%s freed)\n", searchCacheDir, humanize.Bytes(uint64(freed)))
			return nil
		}
		if !cleanAll {
			return fmt.Errorf("specify --all or --search-cache-only")
		}
		freed := dirSize(cfg.CacheDir)
		if err := os.RemoveAll(cfg.CacheDir); err != nil {
			return err
		}
		fmt.Printf("removed %s (%s freed)\n", cfg.CacheDir, humanize.Bytes(uint64(freed)))
		return nil
	},
}

// dirSize sums file sizes under root; a missing or unreadable directory
// counts as zero since clean treats it as already gone.
func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, ierr := d.Info(); ierr == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "remove the entire local cache")
	cleanCmd.Flags().BoolVar(&cleanSearchOnly, "search-cache-only", false, "remove only the cached search index")
}
