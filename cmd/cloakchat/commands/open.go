package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cloakchat/internal/domain"
)

// open <peer>: print the reconciled conversation and clear its unread count.
func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <peer>",
		Short: "Open a conversation: fetch, decrypt and print its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context) error {
				timeline, err := appCtx.Chat.Open(ctx, peer)
				if err != nil {
					return err
				}
				if len(timeline) == 0 {
					fmt.Println("no messages yet")
					return nil
				}
				for _, m := range timeline {
					printMessage(m)
				}
				return nil
			})
		},
	}
}

func printMessage(m domain.Message) {
	when := m.Timestamp.Local().Format("2006-01-02 15:04")
	switch {
	case m.Kind == domain.KindMedia && m.Media != nil:
		fmt.Printf("[%s] %s: shared %s %s\n", when, m.SenderID, m.Media.MediaType, m.Media.URL)
	default:
		fmt.Printf("[%s] %s: %s\n", when, m.SenderID, m.Text)
	}
}
