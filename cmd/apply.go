package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/library-sorter/internal/dedup"
	"github.com/kozaktomas/library-sorter/internal/reconcile"
	"github.com/kozaktomas/library-sorter/internal/sorter"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

var applyCmd = &cobra.Command{
	Use:   "apply <proposals-file>",
	Short: "Apply approved proposals",
	Long: `Apply the approved entries of a proposals file written by "match".

Files are copied into their profile folder, the source is deleted and the
affected profiles are recomputed once at the end. Ctrl+C stops after the
current file; everything applied so far stays applied.

Examples:
  library-sorter apply proposals.json

  # Apply every entry regardless of its approved flag
  library-sorter apply proposals.json --all`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().Bool("all", false, "Apply every proposal, ignoring the approved flag")
	applyCmd.Flags().Bool("json", false, "Output the summary as JSON instead of a progress bar")
}

func approvedActions(file *proposalsFile, all bool) []dedup.ProposedAction {
	var actions []dedup.ProposedAction
	for _, a := range file.Actions {
		if all || a.Approved {
			actions = append(actions, a.ProposedAction)
		}
	}
	return actions
}

func printSummary(summary reconcile.Summary) {
	fmt.Printf("  Succeeded:        %d\n", summary.Succeeded)
	if summary.SkippedQuality > 0 {
		fmt.Printf("  Skipped (worse):  %d\n", summary.SkippedQuality)
	}
	if summary.SkippedOther > 0 {
		fmt.Printf("  Skipped (other):  %d\n", summary.SkippedOther)
	}
	if summary.CopyErrors > 0 {
		fmt.Printf("  Copy errors:      %d\n", summary.CopyErrors)
	}
	if summary.DeleteErrors > 0 {
		fmt.Printf("  Delete errors:    %d\n", summary.DeleteErrors)
	}
	if len(summary.Recomputed) > 0 {
		fmt.Printf("  Recomputed:       %d profiles\n", len(summary.Recomputed))
	}
}

func runApply(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	file, err := readProposals(args[0])
	if err != nil {
		return err
	}
	actions := approvedActions(file, mustGetBool(cmd, "all"))
	if len(actions) == 0 {
		fmt.Println("No approved proposals to apply")
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, jsonOutput)
	if err != nil {
		return err
	}
	defer a.Close()

	if !jsonOutput {
		fmt.Printf("Applying %d approved proposals...\n", len(actions))
	}
	value, runErr := a.run(ctx, "apply", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return a.svc.Apply(ctx, actions, sorter.ReportTo(op))
	})

	summary, ok := value.(reconcile.Summary)
	if !ok {
		return runErr
	}
	if jsonOutput {
		if err := outputJSON(summary); err != nil {
			return err
		}
		return runErr
	}

	if runErr != nil {
		fmt.Printf("\nApply stopped after %d of %d proposals\n", summary.Total(), len(actions))
	} else {
		fmt.Println("\nApply complete!")
	}
	printSummary(summary)
	return runErr
}
