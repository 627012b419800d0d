package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nemo-app/photoingest/internal/ingest"
)

// newResolveCmd creates the 'resolve' subcommand, which ingests one QR
// payload from the command line and prints the stored keys.
func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <payload>",
		Short: "Resolves one QR payload to a stored asset",
		Long: `Walks the redirect and vendor-page chain behind a single QR
payload, stores the resulting media, and prints the asset keys.`,
		Args: cobra.ExactArgs(1),
		RunE: runResolveCommand,
	}
	return cmd
}

func runResolveCommand(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	asset, err := a.Ingest.Ingest(cmd.Context(), ingest.IngestRequest{Payload: args[0]})
	if err != nil {
		a.Logger.Error("resolve failed", zap.String("payload", args[0]), zap.Error(err))
		return fmt.Errorf("resolve payload: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "image:     %s\n", asset.ImageKey)
	fmt.Fprintf(cmd.OutOrStdout(), "thumbnail: %s\n", asset.ThumbnailKey)
	fmt.Fprintf(cmd.OutOrStdout(), "url:       %s\n", a.Store.PublicURL(asset.ImageKey))
	if asset.Brand != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "brand:     %s\n", asset.Brand)
	}
	return nil
}
