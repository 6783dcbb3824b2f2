package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/library-sorter/internal/config"
	"github.com/kozaktomas/library-sorter/internal/embedding"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the embedding server",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx, stop := signalContext()
	defer stop()

	client := embedding.NewClient(cfg.Embedding.URL, 1, cfg.Embedding.Timeout)
	client.SetRetryPolicy(0, 0)

	status, err := client.Health(ctx)
	if err != nil {
		if errors.Is(err, embedding.ErrProviderUnavailable) {
			return fmt.Errorf("embedding server at %s is unavailable: %w", cfg.Embedding.URL, err)
		}
		return fmt.Errorf("checking embedding server: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(status)
	}
	fmt.Printf("Embedding server: %s\n", cfg.Embedding.URL)
	fmt.Printf("  Status:  %s\n", status.Status)
	fmt.Printf("  Ready:   %v\n", status.EmbedderReady)
	if status.EffectiveDevice != "" {
		fmt.Printf("  Device:  %s\n", status.EffectiveDevice)
	}
	if status.Details != "" {
		fmt.Printf("  Details: %s\n", status.Details)
	}
	return nil
}
