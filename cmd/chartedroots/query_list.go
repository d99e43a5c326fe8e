package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"chartedroots/internal/store"
)

func queryListCmd() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List people in the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryList(cmd, collection)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Collection to filter")
	return cmd
}

func runQueryList(cmd *cobra.Command, collection string) error {
	return withDB(func(ctx context.Context, db store.Store) error {
		people, err := db.ListPeople(ctx, collection)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(people) == 0 {
			fmt.Fprintln(out, "No people found.")
			return nil
		}

		for _, p := range people {
			fmt.Fprintf(out, "%s  %s", p.ID, p.Name)
			if p.BirthDate != "" || p.DeathDate != "" {
				fmt.Fprintf(out, " (%s - %s)", p.BirthDate, p.DeathDate)
			}
			if p.Collection != "" {
				fmt.Fprintf(out, " [%s]", p.Collection)
			}
			fmt.Fprintln(out)
		}
		return nil
	})
}
