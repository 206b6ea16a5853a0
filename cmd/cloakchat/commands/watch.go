package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cloakchat/internal/domain"
)

// watch: stay connected and print conversations live until interrupted.
func watchCmd() *cobra.Command {
	var open string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay online and print incoming messages as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			appCtx.Chat.SetNotify(func(peerID string, msg domain.Message) {
				printMessage(msg)
			})
			if open != "" {
				timeline, err := appCtx.Chat.Open(ctx, open)
				if err != nil {
					return err
				}
				for _, m := range timeline {
					printMessage(m)
				}
			}

			fmt.Println("watching; ctrl-c to stop")
			err := appCtx.Chat.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&open, "open", "", "open this conversation first (marks it read)")
	return cmd
}
