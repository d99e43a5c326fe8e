package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"chartedroots/internal/store"
)

func queryDanglingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dangling",
		Short: "List index edges whose endpoint is not in the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, db store.Store) error {
				edges, err := db.ListDanglingEdges(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(edges) == 0 {
					fmt.Fprintln(out, "No dangling edges.")
					return nil
				}
				for _, e := range edges {
					fmt.Fprintf(out, "%s -%s-> %s\n", e.From, e.Type, e.To)
				}
				return nil
			})
		},
	}
}
