package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// clear <peer>: drop the local decrypted cache for a conversation. The
// server copy is untouched; open re-fetches the ciphertexts.
func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <peer>",
		Short: "Clear the locally cached history for a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Chat.ClearHistory(args[0]); err != nil {
				return err
			}
			fmt.Printf("local history with %s cleared\n", args[0])
			return nil
		},
	}
}
