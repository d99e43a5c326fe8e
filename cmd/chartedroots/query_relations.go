package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"chartedroots/internal/store"
)

func queryRelationsCmd() *cobra.Command {
	var relType string
	var direction string
	var depth int
	cmd := &cobra.Command{
		Use:   "relations <id>",
		Short: "Display parent and spouse relationships for a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryRelations(cmd, args[0], relType, direction, depth)
		},
	}
	cmd.Flags().StringVar(&relType, "type", "", "Relationship type: FATHER_OF, MOTHER_OF or SPOUSE_OF")
	cmd.Flags().StringVar(&direction, "direction", "both", "Direction: outgoing, incoming, or both")
	cmd.Flags().IntVar(&depth, "depth", 1, "Traversal depth (1-5)")
	return cmd
}

func runQueryRelations(cmd *cobra.Command, id, relType, direction string, depth int) error {
	return withDB(func(ctx context.Context, db store.Store) error {
		rels, err := db.GetRelationships(ctx, id, relType, direction, depth)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(rels) == 0 {
			fmt.Fprintf(out, "No relationships found for %q.\n", id)
			return nil
		}

		for _, rel := range rels {
			fmt.Fprintf(out, "[%d] %s (%s) -%s-> %s (%s) [%s]\n",
				rel.Depth,
				rel.From.Name,
				rel.From.ID,
				rel.Type,
				rel.To.Name,
				rel.To.ID,
				rel.Direction,
			)
		}
		return nil
	})
}
