// Package cmd defines the CLI commands for the photoingest executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nemo-app/photoingest/internal/app"
	"github.com/nemo-app/photoingest/internal/config"
)

var cfgFile string

// newRootCmd creates the root command. Subcommands build the application
// themselves so that flag parsing never dials cloud clients.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photoingest",
		Short: "Resolves photobooth QR payloads into stored photo assets",
		Long: `photoingest walks the short-URL and vendor-page chains behind
photobooth QR codes, downloads the final media, transcodes it, and stores
it in the configured object store.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

// buildApp loads configuration and assembles the pipeline for a
// subcommand.
func buildApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize application services: %w", err)
	}
	return a, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
