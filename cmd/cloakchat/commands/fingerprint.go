package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cloakchat/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print your identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Fingerprint: %s\n", crypto.Fingerprint(appCtx.Identity.XPub.Slice()))
			return nil
		},
	}
}
