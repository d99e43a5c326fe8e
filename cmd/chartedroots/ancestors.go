package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"chartedroots/internal/ahnentafel"
)

func ancestorsCmd() *cobra.Command {
	var generations int
	var partial bool
	cmd := &cobra.Command{
		Use:   "ancestors <id>",
		Short: "Print an Ahnentafel numbered ancestor list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAncestors(cmd, args[0], generations, partial)
		},
	}
	cmd.Flags().IntVar(&generations, "generations", 0, "Generations including the root person (default from config)")
	cmd.Flags().BoolVar(&partial, "partial", false, "Follow a known parent even when the other parent is missing")
	return cmd
}

func runAncestors(cmd *cobra.Command, id string, generations int, partial bool) error {
	ctx := context.Background()

	a, err := loadApp()
	if err != nil {
		return err
	}
	snap, err := a.graph.Snapshot(ctx)
	if err != nil {
		return err
	}
	if generations == 0 {
		generations = a.cfg.Ancestors.MaxGenerations
	}
	var opts []ahnentafel.Option
	if partial {
		opts = append(opts, ahnentafel.WithPartialParents())
	}

	result, err := ahnentafel.Generate(snap, id, generations, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, n := range result.Numbers() {
		rec := result.Ancestors[n]
		fmt.Fprintf(out, "%4d  %-32s %s", n, rec.Name, ahnentafel.Label(n))
		if rec.BirthDate != "" || rec.DeathDate != "" {
			fmt.Fprintf(out, " (%s - %s)", rec.BirthDate, rec.DeathDate)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out)
	for _, g := range result.Generations {
		fmt.Fprintf(out, "Generation %2d: %d/%d (%.0f%%)\n", g.Generation, g.Found, g.Possible, g.Completeness*100)
	}
	if len(result.Collapsed) > 0 {
		fmt.Fprintf(out, "Pedigree collapse: %d people appear on more than one line\n", len(result.Collapsed))
	}
	return nil
}
