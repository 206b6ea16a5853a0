package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// peers: list every peer with a cached key, for out-of-band verification.
func peersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List known peers and their key fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			peers := appCtx.Chat.Peers()
			if len(peers) == 0 {
				fmt.Println("no peers known yet")
				return nil
			}
			ids := make([]string, 0, len(peers))
			for id := range peers {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Printf("%s\t%s\n", id, peers[id])
			}
			return nil
		},
	}
}
