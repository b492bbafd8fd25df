package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status DOCUMENT_ID",
	Short: "List the executions recorded for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print executions as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("Failed to close backends", "error", err)
		}
	}()

	execs, err := a.Executions.ListByDocument(ctx, args[0])
	if err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(execs)
	}

	if len(execs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no executions for document %s\n", args[0])
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXECUTION\tSTATUS\tSTAGE\tATTEMPT\tREASON\tUPDATED")
	for _, e := range execs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.ID, e.Status, e.Stage, e.Attempt, e.FailureReason, e.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
