package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"chartedroots/internal/store"
)

func queryPersonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "person <id>",
		Short: "Display one person from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryPerson(cmd, args[0])
		},
	}
}

func runQueryPerson(cmd *cobra.Command, id string) error {
	return withDB(func(ctx context.Context, db store.Store) error {
		out := cmd.OutOrStdout()
		p, err := db.GetPerson(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(out, "No person found for %q.\n", id)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "ID: %s\n", p.ID)
		fmt.Fprintf(out, "Name: %s\n", p.Name)
		for _, field := range []struct{ label, value string }{
			{"Sex", p.Sex},
			{"Born", p.BirthDate},
			{"Birth place", p.BirthPlace},
			{"Died", p.DeathDate},
			{"Death place", p.DeathPlace},
			{"Occupation", p.Occupation},
			{"Collection", p.Collection},
			{"Source", p.SourceFile},
		} {
			if field.value != "" {
				fmt.Fprintf(out, "%s: %s\n", field.label, field.value)
			}
		}
		return nil
	})
}
