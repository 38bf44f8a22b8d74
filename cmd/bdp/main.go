// Command bdp is the BDP client: manifest resolution against a bdp-server,
// local source caching, and the tamper-evident audit ledger.
package main

import (
	"github.com/biopkg/bdp/internal/clicmd"
)

func main() {
	clicmd.Execute()
}
