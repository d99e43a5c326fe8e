package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"chartedroots/internal/validate"
)

func validateCmd() *cobra.Command {
	var withIndex bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the vault for one-sided, dangling and stale relationships",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, withIndex)
		},
	}
	cmd.Flags().BoolVar(&withIndex, "index", false, "Also check the index database for dangling edges")
	return cmd
}

func runValidate(cmd *cobra.Command, withIndex bool) error {
	ctx := context.Background()

	a, err := loadApp()
	if err != nil {
		return err
	}
	snap, err := a.graph.Snapshot(ctx)
	if err != nil {
		return err
	}

	var index validate.IndexChecker
	if withIndex {
		db, err := openDB(ctx, a.cfg)
		if err != nil {
			return err
		}
		defer db.Close(ctx)
		index = db
	}

	report, err := validate.Run(ctx, snap, index)
	if err != nil {
		return err
	}

	var errorIssues []validate.Issue
	var warnIssues []validate.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case validate.SeverityError:
			errorIssues = append(errorIssues, issue)
		case validate.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	out := cmd.OutOrStdout()
	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintf(out, "No issues found in %d people.\n", snap.Len())
		return nil
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(out, "Errors (%d):\n", len(errorIssues))
		printIssues(out, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(out, "")
		}
		fmt.Fprintf(out, "Warnings (%d):\n", len(warnIssues))
		printIssues(out, warnIssues)
	}

	if len(errorIssues) > 0 {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printIssues(out io.Writer, issues []validate.Issue) {
	for _, issue := range issues {
		location := issue.Entity
		if issue.FilePath != "" {
			if location == "" {
				location = issue.FilePath
			} else {
				location = fmt.Sprintf("%s (%s)", location, issue.FilePath)
			}
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Code)
	}
}
