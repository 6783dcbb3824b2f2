package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Feature cache commands",
	Long:  `Commands for inspecting and clearing the embedding feature cache (CACHE_BACKEND).`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached vectors",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached vector",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)

	cacheStatsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.svc.CacheStats(ctx)
	if err != nil {
		return fmt.Errorf("reading cache: %w", err)
	}
	if jsonOutput {
		return outputJSON(map[string]any{"backend": a.cfg.Cache.Backend, "entries": n})
	}
	fmt.Printf("Cache backend: %s\n", a.cfg.Cache.Backend)
	fmt.Printf("Cached vectors: %d\n", n)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.run(ctx, "cache-clear", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return nil, a.svc.ClearCache(ctx)
	}); err != nil {
		return err
	}
	fmt.Println("Cache cleared")
	return nil
}
