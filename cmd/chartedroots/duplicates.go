package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chartedroots/internal/dupes"
)

func duplicatesCmd() *cobra.Command {
	var minConfidence float64
	var sameCollection bool
	var limit int
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "List people who are probably recorded twice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDuplicates(cmd, minConfidence, sameCollection, limit)
		},
	}
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Minimum confidence 0-100 (default from config)")
	cmd.Flags().BoolVar(&sameCollection, "same-collection", false, "Only compare people in the same collection")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of candidates to print (0 for all)")
	return cmd
}

func runDuplicates(cmd *cobra.Command, minConfidence float64, sameCollection bool, limit int) error {
	ctx := context.Background()

	a, err := loadApp()
	if err != nil {
		return err
	}
	people, err := a.graph.GetAll(ctx)
	if err != nil {
		return err
	}

	opts := a.duplicateOptions()
	if minConfidence > 0 {
		opts.MinConfidence = minConfidence
	}
	if sameCollection {
		opts.SameCollectionOnly = true
	}

	candidates, err := dupes.FindDuplicates(ctx, people, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(candidates) == 0 {
		fmt.Fprintln(out, "No likely duplicates found.")
		return nil
	}
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	for _, c := range candidates {
		fmt.Fprintf(out, "%5.1f%%  %s [%s]  <->  %s [%s]\n", c.Confidence, c.A.Name, c.A.ID, c.B.Name, c.B.ID)
		fmt.Fprintf(out, "        %s\n", strings.Join(c.Reasons, "; "))
	}
	return nil
}
