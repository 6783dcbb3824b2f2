package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/library-sorter/internal/config"
	"github.com/kozaktomas/library-sorter/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the Library Sorter HTTP API.

Long-running operations (match, apply, generate, auto-create, dedup) are
started with POST /api/v1/operations/<name>; progress is streamed via SSE
from /api/v1/operations/{id}/events. Starting an operation cancels the one
currently running.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort applies explicitly set flags on top of the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.WebConfig) {
	if cmd.Flags().Changed("port") {
		cfg.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = mustGetString(cmd, "host")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Library.Root == "" {
		fmt.Println("Warning: LIBRARY_ROOT is not set; only profile and cache endpoints will work")
	}
	fmt.Printf("Loaded %d profiles\n", a.svc.Store().Len())

	webCfg := a.cfg.Web
	resolveServeHostPort(cmd, &webCfg)
	server := web.NewServer(webCfg, a.svc, a.sup)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Library Sorter API on http://%s:%d/api/v1\n", webCfg.Host, webCfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-shutdownDone
	return nil
}
