package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func unreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Show unread message counts per conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts := appCtx.Chat.Unread()
			if len(counts) == 0 {
				fmt.Println("all caught up")
				return nil
			}
			ids := make([]string, 0, len(counts))
			for id := range counts {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Printf("%s\t%d\n", id, counts[id])
			}
			return nil
		},
	}
}
