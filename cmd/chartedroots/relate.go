package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"chartedroots/internal/relate"
)

func relateCmd() *cobra.Command {
	var retries int
	cmd := &cobra.Command{
		Use:   "relate",
		Short: "Add or remove relationships, keeping both notes in sync",
	}
	cmd.PersistentFlags().IntVar(&retries, "retries", 0, "Retry failed writes this many times")

	mutate := func(fn func(ctx context.Context, m *relate.Mutator, args []string) (*relate.Result, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return runRelate(cmd, retries, func(ctx context.Context, m *relate.Mutator) (*relate.Result, error) {
				return fn(ctx, m, args)
			})
		}
	}

	var role string
	parent := &cobra.Command{
		Use:   "parent <child> <parent>",
		Short: "Set a child's father or mother",
		Args:  cobra.ExactArgs(2),
		RunE: mutate(func(ctx context.Context, m *relate.Mutator, args []string) (*relate.Result, error) {
			r, err := relate.ParseRole(role)
			if err != nil {
				return nil, err
			}
			return m.AddParent(ctx, args[0], args[1], r)
		}),
	}
	parent.Flags().StringVar(&role, "role", "father", "father or mother")

	child := &cobra.Command{
		Use:   "child <parent> <child>",
		Short: "Add a child; the role follows the parent's recorded sex",
		Args:  cobra.ExactArgs(2),
		RunE: mutate(func(ctx context.Context, m *relate.Mutator, args []string) (*relate.Result, error) {
			return m.AddChild(ctx, args[0], args[1])
		}),
	}

	spouse := &cobra.Command{
		Use:   "spouse <a> <b>",
		Short: "Link two people as spouses",
		Args:  cobra.ExactArgs(2),
		RunE: mutate(func(ctx context.Context, m *relate.Mutator, args []string) (*relate.Result, error) {
			return m.AddSpouse(ctx, args[0], args[1])
		}),
	}

	var unparentRole string
	unparent := &cobra.Command{
		Use:   "unparent <child>",
		Short: "Remove a child's father or mother",
		Args:  cobra.ExactArgs(1),
		RunE: mutate(func(ctx context.Context, m *relate.Mutator, args []string) (*relate.Result, error) {
			r, err := relate.ParseRole(unparentRole)
			if err != nil {
				return nil, err
			}
			return m.RemoveParent(ctx, args[0], r)
		}),
	}
	unparent.Flags().StringVar(&unparentRole, "role", "father", "father or mother")

	unspouse := &cobra.Command{
		Use:   "unspouse <a> <b>",
		Short: "Unlink two spouses",
		Args:  cobra.ExactArgs(2),
		RunE: mutate(func(ctx context.Context, m *relate.Mutator, args []string) (*relate.Result, error) {
			return m.RemoveSpouse(ctx, args[0], args[1])
		}),
	}

	cmd.AddCommand(parent, child, spouse, unparent, unspouse)
	return cmd
}

func runRelate(cmd *cobra.Command, retries int, fn func(ctx context.Context, m *relate.Mutator) (*relate.Result, error)) error {
	ctx := context.Background()

	a, err := loadApp()
	if err != nil {
		return err
	}
	m := a.mutator()

	result, err := fn(ctx, m)
	if result == nil {
		return err
	}
	for attempt := 0; attempt < retries && !result.OK(); attempt++ {
		a.log.WithField("attempt", attempt+1).Info("retrying failed writes")
		retried, retryErr := m.Retry(ctx, result)
		retried.Warnings = result.Warnings
		retried.Written = append(result.Written, retried.Written...)
		result, err = retried, retryErr
	}

	printResult(cmd.OutOrStdout(), result)
	return err
}

func printResult(out io.Writer, result *relate.Result) {
	if len(result.Written) == 0 && len(result.Failed) == 0 {
		fmt.Fprintln(out, "Nothing to change.")
	}
	for _, path := range result.Written {
		fmt.Fprintf(out, "Updated %s\n", path)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "Warning: %s (%s)\n", w.Message, w.Code)
	}
	for _, step := range result.Failed {
		fmt.Fprintf(out, "Failed: %s\n", step.Path)
	}
}
