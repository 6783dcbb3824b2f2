package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/library-sorter/internal/sorter"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup <namespace>",
	Short: "Remove near-identical images inside each profile of a namespace",
	Long: `Find groups of near-identical images inside every profile of a namespace,
keep the best one of each group (resolution, then file size) and delete the rest.

Examples:
  library-sorter dedup Anna
  library-sorter dedup Anna --json`,
	Args: cobra.ExactArgs(1),
	RunE: runDedup,
}

func init() {
	rootCmd.AddCommand(dedupCmd)

	dedupCmd.Flags().Bool("json", false, "Output the summary as JSON instead of a progress bar")
}

func runDedup(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, jsonOutput)
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := a.run(ctx, "dedup", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return a.svc.RemoveDuplicates(ctx, args[0], sorter.ReportTo(op))
	})
	if err != nil {
		return err
	}
	result := value.(*sorter.DedupResult)

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println("\nDedup complete!")
	fmt.Printf("  Profiles checked:  %d\n", result.Profiles)
	fmt.Printf("  Duplicate groups:  %d\n", result.Groups)
	fmt.Printf("  Files deleted:     %d\n", len(result.Deleted))
	for _, path := range result.Deleted {
		fmt.Printf("    - %s\n", path)
	}
	if result.DeleteErrors > 0 {
		fmt.Printf("  Delete errors:     %d\n", result.DeleteErrors)
	}
	return nil
}
