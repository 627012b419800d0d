package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDeleteCmd creates the 'delete' subcommand, which removes a stored
// asset by key or public URL.
func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key-or-url>",
		Short: "Deletes a stored asset",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteCommand,
	}
	return cmd
}

func runDeleteCommand(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	key := args[0]
	if fromURL, ok := a.Store.KeyFromPublicURL(key); ok {
		key = fromURL
	}

	if err := a.Store.Delete(cmd.Context(), key); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted: %s\n", key)
	return nil
}
