package clicmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biopkg/bdp/internal/resolve"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage declared data-source dependencies",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add <org:name[-format]@version>",
	Short: "Add a data source to the manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := resolve.ParseSpec(args[0]); err != nil {
			return err
		}
		dir := currentDir()
		m, err := loadManifest(dir)
		if err != nil {
			return err
		}
		for _, s := range m.Sources {
			if s.Spec == args[0] {
				return fmt.Errorf("%s is already declared", args[0])
			}
		}
		m.Sources = append(m.Sources, ManifestSource{Spec: args[0]})
		if err := saveManifest(dir, m); err != nil {
			return err
		}
		fmt.Println("added", args[0])
		return nil
	},
}

var sourceRemoveCmd = &cobra.Command{
	Use:   "remove <org:name>",
	Short: "Remove a data source from the manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := currentDir()
		m, err := loadManifest(dir)
		if err != nil {
			return err
		}
		kept := m.Sources[:0]
		removed := false
		for _, s := range m.Sources {
			if s.Spec == args[0] {
				removed = true
				continue
			}
			kept = append(kept, s)
		}
		m.Sources = kept
		if !removed {
			return fmt.Errorf("%s is not declared", args[0])
		}
		if err := saveManifest(dir, m); err != nil {
			return err
		}
		fmt.Println("removed", args[0])
		return nil
	},
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List declared data sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest(currentDir())
		if err != nil {
			return err
		}
		for _, s := range m.Sources {
			fmt.Println(s.Spec)
		}
		return nil
	},
}

func init() {
	sourceCmd.AddCommand(sourceAddCmd, sourceRemoveCmd, sourceListCmd)
}
