package clicmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biopkg/bdp/internal/audit"
)

var (
	auditFormat string
	auditOutput string
	auditFromID int64
	auditToID   int64
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the local tamper-evident audit ledger",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := currentDir()
		ledger, err := openLedger(dir)
		if err != nil {
			return err
		}
		defer ledger.Close()

		events, err := ledger.All()
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("no audit events recorded yet for this project")
			return nil
		}
		for _, e := range events {
			fmt.Printf("#%d %s %s source=%s machine=%s\n",
				e.ID, e.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), e.EventType, e.SourceSpec, e.MachineID)
		}
		return nil
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit ledger's hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := currentDir()
		ledger, err := openLedger(dir)
		if err != nil {
			return err
		}
		defer ledger.Close()

		events, err := ledger.All()
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("audit ledger is empty; nothing to verify")
			return nil
		}

		result, err := ledger.VerifyIntegrity()
		if err != nil {
			return err
		}
		if result.Valid {
			fmt.Printf("chain integrity verified across %d event(s)\n", len(events))
			return nil
		}
		fmt.Printf("chain integrity BROKEN at event #%d: %s\n", result.BreakAtID, result.Reason)
		return fmt.Errorf("audit chain verification failed at event #%d", result.BreakAtID)
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit ledger (fda, nih, ema, das, or json format)",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := audit.Format(auditFormat)
		switch format {
		case audit.FormatFDA, audit.FormatNIH, audit.FormatEMA, audit.FormatDAS, audit.FormatJSON:
		default:
			return fmt.Errorf("unsupported export format %q", auditFormat)
		}

		dir := currentDir()
		ledger, err := openLedger(dir)
		if err != nil {
			return err
		}
		defer ledger.Close()

		events, err := ledger.All()
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("no audit events to export")
			return nil
		}

		fromID, toID := auditFromID, auditToID
		if fromID == 0 {
			fromID = events[0].ID
		}
		if toID == 0 {
			toID = events[len(events)-1].ID
		}

		outputPath := auditOutput
		if outputPath == "" {
			outputPath = fmt.Sprintf("audit-export.%s", auditFormat)
		}

		snap, err := ledger.Export(format, fromID, toID, outputPath)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d event(s) (#%d-#%d) to %s\n", snap.EventCount, snap.FromID, snap.ToID, snap.OutputPath)
		if !snap.ChainValid {
			fmt.Printf("warning: chain integrity broken at event #%d: %s\n", snap.ToID, snap.ChainBreakReason)
		}
		return nil
	},
}

func init() {
	auditExportCmd.Flags().StringVar(&auditFormat, "format", "json", "export format: fda, nih, ema, das, or json")
	auditExportCmd.Flags().StringVar(&auditOutput, "output", "", "output file path (default: audit-export.<format>)")
	auditExportCmd.Flags().Int64Var(&auditFromID, "from", 0, "first event id to export (default: the first event in the ledger)")
	auditExportCmd.Flags().Int64Var(&auditToID, "to", 0, "last event id to export (default: the last event in the ledger)")
	auditCmd.AddCommand(auditListCmd, auditVerifyCmd, auditExportCmd)
}
