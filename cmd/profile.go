package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/library-sorter/internal/profile"
	"github.com/kozaktomas/library-sorter/internal/sorter"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile management commands",
	Long:  `Commands for creating, rebuilding, inspecting and removing folder profiles.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE:  runProfileList,
}

var profileGenerateCmd = &cobra.Command{
	Use:   "generate <name> <folder>",
	Short: "Build a profile from the images in a folder",
	Long: `Build or replace a profile from every image directly inside a folder.
Images already owned by another profile move to this one.

Examples:
  library-sorter profile generate "Anna - Beach" /library/Anna/Beach`,
	Args: cobra.ExactArgs(2),
	RunE: runProfileGenerate,
}

var profileRebuildCmd = &cobra.Command{
	Use:   "rebuild <name>",
	Short: "Recompute a profile from its current members",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileRebuild,
}

var profileAutoCreateCmd = &cobra.Command{
	Use:   "auto-create",
	Short: "Create profiles from the library folder layout",
	Long: `Walk every namespace folder under LIBRARY_ROOT and create one profile per
folder holding images. Images directly in the namespace folder form
"<namespace> - General", subfolders form "<namespace> - <sub> - <sub>".
Source folders (e.g. "Mix") are skipped.`,
	Args: cobra.NoArgs,
	RunE: runProfileAutoCreate,
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a profile (files are untouched)",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileRemove,
}

var profileRemoveNamespaceCmd = &cobra.Command{
	Use:   "remove-namespace <namespace>",
	Short: "Remove every profile of a namespace (files are untouched)",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileRemoveNamespace,
}

var profileSplitCandidatesCmd = &cobra.Command{
	Use:   "split-candidates <namespace>",
	Short: "List large profiles that could be split",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSplitCandidates,
}

var profileSplitCmd = &cobra.Command{
	Use:   "split <name>",
	Short: "Split a profile into two halves",
	Long: `Move the images of a profile into two new folders, "<label> - Part 1" and
"<label> - Part 2", build a profile for each and remove the original.
Files whose destination already exists stay where they are.

Examples:
  library-sorter profile split "Anna - Beach"`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileSplit,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd, profileGenerateCmd, profileRebuildCmd, profileAutoCreateCmd,
		profileRemoveCmd, profileRemoveNamespaceCmd, profileSplitCandidatesCmd, profileSplitCmd)

	profileListCmd.Flags().String("namespace", "", "Only list profiles of this namespace")
	for _, c := range []*cobra.Command{profileListCmd, profileGenerateCmd, profileRebuildCmd, profileAutoCreateCmd, profileSplitCandidatesCmd, profileSplitCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
	}
}

type profileRow struct {
	Name         string `json:"name"`
	Members      int    `json:"members"`
	HasCentroid  bool   `json:"has_centroid"`
	LastComputed string `json:"last_computed,omitempty"`
}

func toRow(p *profile.Profile) profileRow {
	row := profileRow{Name: p.Name, Members: len(p.Members), HasCentroid: p.HasCentroid()}
	if !p.LastComputed.IsZero() {
		row.LastComputed = p.LastComputed.Format("2006-01-02 15:04")
	}
	return row
}

func printProfile(p *profile.Profile, jsonOutput bool) error {
	if jsonOutput {
		return outputJSON(toRow(p))
	}
	fmt.Printf("\nProfile %q: %d members", p.Name, len(p.Members))
	if !p.HasCentroid() {
		fmt.Print(" (no centroid)")
	}
	fmt.Println()
	return nil
}

func runProfileList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var profiles []*profile.Profile
	if ns := mustGetString(cmd, "namespace"); ns != "" {
		profiles = a.svc.Store().Namespace(ns)
	} else {
		profiles = a.svc.Store().All()
	}

	rows := make([]profileRow, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, toRow(p))
	}
	if jsonOutput {
		return outputJSON(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No profiles")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMEMBERS\tCENTROID\tCOMPUTED")
	for _, r := range rows {
		centroid := "yes"
		if !r.HasCentroid {
			centroid = "no"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Name, r.Members, centroid, r.LastComputed)
	}
	return w.Flush()
}

func runProfileGenerate(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, jsonOutput)
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := a.run(ctx, "generate", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return a.svc.GenerateProfile(ctx, args[0], args[1], sorter.ReportTo(op))
	})
	if err != nil {
		return err
	}
	return printProfile(value.(*profile.Profile), jsonOutput)
}

func runProfileRebuild(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, jsonOutput)
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := a.run(ctx, "rebuild", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		op.ReportIndeterminate("rebuilding " + args[0])
		return a.svc.RebuildProfile(ctx, args[0])
	})
	if err != nil {
		return err
	}
	return printProfile(value.(*profile.Profile), jsonOutput)
}

func runProfileAutoCreate(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, jsonOutput)
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := a.run(ctx, "auto-create", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return a.svc.AutoCreateProfiles(ctx, sorter.ReportTo(op))
	})
	if err != nil {
		return err
	}
	result := value.(*sorter.AutoCreateResult)

	if jsonOutput {
		return outputJSON(result)
	}
	fmt.Println("\nAuto-create complete!")
	fmt.Printf("  Namespaces: %d\n", result.Namespaces)
	fmt.Printf("  Profiles:   %d\n", len(result.Profiles))
	for _, name := range result.Profiles {
		fmt.Printf("    - %s\n", name)
	}
	if len(result.Cleared) > 0 {
		fmt.Printf("  Cleared:    %d profiles whose folders have no images\n", len(result.Cleared))
	}
	return nil
}

func runProfileRemove(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.run(ctx, "remove", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return nil, a.svc.RemoveProfile(ctx, args[0])
	}); err != nil {
		return err
	}
	fmt.Printf("Removed profile %q\n", args[0])
	return nil
}

func runProfileRemoveNamespace(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := a.run(ctx, "remove-namespace", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return a.svc.RemoveNamespace(ctx, args[0])
	})
	if err != nil {
		return err
	}
	removed := value.([]string)
	fmt.Printf("Removed %d profiles of namespace %q\n", len(removed), args[0])
	for _, name := range removed {
		fmt.Printf("  - %s\n", name)
	}
	return nil
}

func runProfileSplitCandidates(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	candidates := a.svc.SplitCandidates(args[0])
	if jsonOutput {
		return outputJSON(candidates)
	}
	if len(candidates) == 0 {
		fmt.Printf("No profiles in %q are large enough to consider\n", args[0])
		return nil
	}
	for _, c := range candidates {
		marker := " "
		if c.Suggest {
			marker = "*"
		}
		fmt.Printf("%s %-40s %d members\n", marker, c.Profile, c.Members)
	}
	fmt.Println("\n* suggested for splitting")
	return nil
}

func runProfileSplit(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, jsonOutput)
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := a.run(ctx, "split", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return a.svc.SplitProfile(ctx, args[0], sorter.ReportTo(op))
	})
	if err != nil {
		return err
	}
	result := value.(*sorter.SplitResult)

	if jsonOutput {
		return outputJSON(result)
	}
	fmt.Printf("\nSplit %q into:\n", result.Original)
	for _, part := range result.Parts {
		fmt.Printf("  - %s\n", part)
	}
	fmt.Printf("  Moved:    %d files\n", result.Moved)
	if result.Unmoved > 0 {
		fmt.Printf("  In place: %d files (destination already existed)\n", result.Unmoved)
	}
	return nil
}
