package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// send <peer> <message>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer, text := args[0], args[1]
			return withEngine(cmd.Context(), func(ctx context.Context) error {
				msg, err := appCtx.Chat.Send(ctx, peer, text)
				if err != nil {
					return err
				}
				fmt.Printf("sent to %s (%s)\n", peer, msg.CorrelationID)
				return nil
			})
		},
	}
}
