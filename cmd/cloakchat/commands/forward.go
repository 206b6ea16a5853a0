package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// forward <peer> <message-id> <to>: re-send a decrypted message to another
// peer, encrypted under that peer's session key.
func forwardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forward <peer> <message-id> <to>",
		Short: "Forward a message from one conversation to another peer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, messageID, to := args[0], args[1], args[2]
			return withEngine(cmd.Context(), func(ctx context.Context) error {
				msg, err := appCtx.Chat.Forward(ctx, from, messageID, to)
				if err != nil {
					return err
				}
				fmt.Printf("forwarded to %s (%s)\n", to, msg.CorrelationID)
				return nil
			})
		},
	}
}
