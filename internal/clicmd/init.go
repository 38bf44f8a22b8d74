package clicmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/biopkg/bdp/internal/audit"
	"github.com/biopkg/bdp/internal/models"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new bdp.yml manifest in the current project",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := currentDir()
		if _, err := os.Stat(manifestPath(dir)); err == nil {
			return models.AlreadyInitialized("%s already exists", manifestPath(dir))
		}

		ledger, err := openLedger(dir)
		if err != nil {
			return err
		}
		defer ledger.Close()

		_, err = audit.WrapCommand(ledger, "init", "", func() (struct{}, error) {
			return struct{}{}, saveManifest(dir, &Manifest{Sources: []ManifestSource{}})
		})
		if err != nil {
			return err
		}
		fmt.Println("created", manifestPath(dir))
		return nil
	},
}
