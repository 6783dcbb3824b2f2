package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/library-sorter/internal/dedup"
	"github.com/kozaktomas/library-sorter/internal/sorter"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

var matchCmd = &cobra.Command{
	Use:   "match [namespace]",
	Short: "Match images in source folders against profiles",
	Long: `Scan the source folders (e.g. "Mix") of a namespace, match every image
against the namespace's profile centroids and resolve duplicates.

Duplicates that are clearly worse than an existing file are deleted
automatically. Everything else is written to a proposals file for review;
set "approved": true on the entries to keep and run "library-sorter apply".

Examples:
  # Match the Anna namespace
  library-sorter match Anna

  # Match every namespace that has profiles
  library-sorter match --all

  # Write proposals somewhere else
  library-sorter match Anna --output /tmp/anna.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Bool("all", false, "Match every namespace with profiles")
	matchCmd.Flags().StringP("output", "o", "proposals.json", "File to write proposals to")
	matchCmd.Flags().Bool("json", false, "Output the summary as JSON instead of a progress bar")
}

// reviewedAction is a proposal together with the reviewer's decision.
type reviewedAction struct {
	dedup.ProposedAction
	Approved bool `json:"approved"`
}

// proposalsFile is the review file written by match and read by apply.
type proposalsFile struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Threshold   float64          `json:"threshold"`
	Actions     []reviewedAction `json:"actions"`
}

func writeProposals(path string, threshold float64, actions []dedup.ProposedAction) error {
	file := proposalsFile{
		GeneratedAt: time.Now().UTC(),
		Threshold:   threshold,
		Actions:     make([]reviewedAction, 0, len(actions)),
	}
	for _, a := range actions {
		file.Actions = append(file.Actions, reviewedAction{ProposedAction: a})
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding proposals: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating proposals directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing proposals: %w", err)
	}
	return nil
}

func readProposals(path string) (*proposalsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading proposals: %w", err)
	}
	var file proposalsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing proposals %s: %w", path, err)
	}
	return &file, nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	all := mustGetBool(cmd, "all")
	output := mustGetString(cmd, "output")
	jsonOutput := mustGetBool(cmd, "json")

	var namespace string
	if len(args) == 1 {
		namespace = args[0]
	}
	if namespace == "" && !all {
		return errors.New("namespace argument is required unless --all is set")
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, jsonOutput)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	value, err := a.run(ctx, "match", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return a.svc.Categorize(ctx, sorter.CategorizeOptions{
			Namespace:  namespace,
			All:        all,
			OnProgress: sorter.ReportTo(op),
		})
	})
	if err != nil {
		return err
	}
	result := value.(*sorter.CategorizeResult)

	if err := writeProposals(output, a.svc.Threshold(), result.Proposals); err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println("\nMatch complete!")
	fmt.Printf("  Images scanned:    %d\n", result.Scanned)
	fmt.Printf("  With vectors:      %d\n", result.WithVectors)
	fmt.Printf("  Matched:           %d\n", result.Matched)
	fmt.Printf("  Handled automatic: %d\n", result.AutoActions)
	fmt.Printf("  Proposals:         %d (written to %s)\n", len(result.Proposals), output)
	if len(result.Recomputed) > 0 {
		fmt.Printf("  Recomputed:        %d profiles\n", len(result.Recomputed))
	}
	fmt.Printf("  Duration:          %s\n", formatDuration(time.Since(start)))
	return nil
}
