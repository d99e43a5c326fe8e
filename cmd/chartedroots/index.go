package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"chartedroots/internal/ingest"
)

func indexCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Synchronise the index database with the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, full)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Rewrite every person (ignore stored hashes)")
	return cmd
}

func runIndex(cmd *cobra.Command, full bool) error {
	ctx := context.Background()

	a, err := loadApp()
	if err != nil {
		return err
	}
	db, err := openDB(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	snap, err := a.graph.Snapshot(ctx)
	if err != nil {
		return err
	}

	result, err := ingest.Sync(ctx, snap, db, a.log, ingest.SyncOptions{Full: full})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Index sync complete.")
	fmt.Fprintf(out, "  People upserted: %d\n", result.PeopleUpserted)
	fmt.Fprintf(out, "  Edges written:   %d\n", result.EdgesUpserted)
	fmt.Fprintf(out, "  People removed:  %d\n", result.PeopleRemoved)
	fmt.Fprintf(out, "  People skipped:  %d\n", result.PeopleSkipped)

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nErrors (%d):\n", len(result.Errors))
		for _, item := range result.Errors {
			fmt.Fprintf(out, "  - %v\n", item)
		}
		return fmt.Errorf("index sync completed with errors")
	}
	return nil
}
