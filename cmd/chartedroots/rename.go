package main

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"chartedroots/internal/person"
)

func renameCmd() *cobra.Command {
	var keepName bool
	cmd := &cobra.Command{
		Use:   "rename <note> <new-name>",
		Short: "Rename a person note and update every link pointing at it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRename(cmd, args[0], args[1], keepName)
		},
	}
	cmd.Flags().BoolVar(&keepName, "keep-name", false, "Leave the name field unchanged")
	return cmd
}

func runRename(cmd *cobra.Command, handle, newName string, keepName bool) error {
	ctx := context.Background()

	newName = strings.TrimSpace(newName)
	if newName == "" || strings.ContainsAny(newName, "/\\") {
		return fmt.Errorf("invalid name %q", newName)
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	fm := a.vault.FieldMap()

	from, err := a.vault.ResolvePath(ctx, handle)
	if err != nil {
		return err
	}
	fields, err := a.vault.ReadFields(ctx, from)
	if err != nil {
		return err
	}
	id := fm.String(fields, person.KeyID)
	if id == "" {
		return fmt.Errorf("%s has no %s", from, fm.Key(person.KeyID))
	}
	oldName, err := a.vault.ResolveDisplayName(ctx, from)
	if err != nil {
		return err
	}

	dir := path.Dir(from)
	to := newName + ".md"
	if dir != "." {
		to = dir + "/" + to
	}
	moved, err := a.vault.Move(ctx, from, to)
	if err != nil {
		return err
	}

	if !keepName {
		err := a.vault.WriteFields(ctx, moved, func(fields map[string]any) error {
			if current := fm.String(fields, person.KeyName); current == "" || current == oldName {
				fm.Set(fields, person.KeyName, newName)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	result, err := a.mutator().PropagateRename(ctx, id, oldName, newName, moved)
	if result != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", from, moved)
		printResult(cmd.OutOrStdout(), result)
	}
	return err
}
