package cliapp

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biopkg/bdp/internal/apiserver"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Bcrypt-hash a password for ADMIN_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := apiserver.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(hashPasswordCmd)
}
