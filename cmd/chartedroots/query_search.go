package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chartedroots/internal/store"
)

func querySearchCmd() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Full text search over names, places and occupations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuerySearch(cmd, strings.Join(args, " "), collection)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Collection to filter")
	return cmd
}

func runQuerySearch(cmd *cobra.Command, query, collection string) error {
	return withDB(func(ctx context.Context, db store.Store) error {
		results, err := db.Search(ctx, query, collection)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No matches found.")
			return nil
		}

		for _, result := range results {
			fmt.Fprintf(out, "%s  %s score=%.2f\n", result.ID, result.Name, result.Score)
			if result.Snippet != "" {
				fmt.Fprintf(out, "    %s\n", result.Snippet)
			}
		}
		return nil
	})
}
