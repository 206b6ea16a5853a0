package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// provenance <media-id>: print a media item's distribution chain.
func provenanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provenance <media-id>",
		Short: "Show who shared a media item with whom, in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context) error {
				p, err := appCtx.Chat.Provenance(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("media %s (%s), created by %s\n", p.MediaID, p.MediaType, p.CreatorID)
				if len(p.Hops) == 0 {
					fmt.Println("never shared")
					return nil
				}
				for i, hop := range p.Hops {
					fmt.Printf("%d. %s -> %s at %s\n", i+1, hop.FromUserID, hop.RecipientID,
						hop.SharedAt.Local().Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
}
