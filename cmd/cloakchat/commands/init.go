package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cloakchat/internal/crypto"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create (or load) your identity and print its fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if appCtx.Regenerated {
				fmt.Println("WARNING: previous identity was unreadable; a new key pair was generated.")
				fmt.Println("Messages encrypted for the old keys cannot be decrypted anymore.")
			}
			fmt.Printf("Identity ready for %s.\nFingerprint: %s\n",
				appCtx.Identity.UserID, crypto.Fingerprint(appCtx.Identity.XPub.Slice()))
			return nil
		},
	}
}
