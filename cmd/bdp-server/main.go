// Command bdp-server runs the BDP registry and manifest resolver API.
package main

import (
	"fmt"
	"os"

	"github.com/biopkg/bdp/internal/cliapp"
)

func main() {
	if err := cliapp.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
