package clicmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the local cache and manifest for this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := currentDir()
		cfg := loadClientConfig()

		if err := os.RemoveAll(cfg.CacheDir); err != nil {
			return err
		}
		if err := os.Remove(manifestPath(dir)); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := os.Remove(lockfilePath(dir)); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Println("removed manifest, lockfile, and cache for", dir)
		return nil
	},
}
