package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// share <peer>: register a media reference and distribute it. With
// --media-id an already-registered item is re-shared instead, which
// extends its provenance chain.
func shareCmd() *cobra.Command {
	var mediaType, masterURL, mediaID string

	cmd := &cobra.Command{
		Use:   "share <peer>",
		Short: "Share media with a peer, recording the provenance hop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context) error {
				id := mediaID
				if id == "" {
					var err error
					id, err = appCtx.Chat.RegisterMedia(ctx, mediaType, masterURL)
					if err != nil {
						return err
					}
				}
				if _, err := appCtx.Chat.ShareMedia(ctx, peer, id); err != nil {
					return err
				}
				fmt.Printf("shared media %s with %s\n", id, peer)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mediaType, "media-type", "image", "media type to register")
	cmd.Flags().StringVar(&masterURL, "master-url", "", "URL of the uploaded master rendition")
	cmd.Flags().StringVar(&mediaID, "media-id", "", "re-share an already registered media id")
	return cmd
}
