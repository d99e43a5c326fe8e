package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"chartedroots/internal/gedcom"
	"chartedroots/internal/ingest"
	"chartedroots/internal/person"
)

func gedcomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gedcom",
		Short: "Check, import and export GEDCOM files",
	}
	cmd.AddCommand(gedcomCheckCmd())
	cmd.AddCommand(gedcomImportCmd())
	cmd.AddCommand(gedcomExportCmd())
	return cmd
}

func gedcomCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a GEDCOM file without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result := gedcom.Validate(f)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source:      %s\n", result.Source)
			fmt.Fprintf(out, "Version:     %s\n", result.Version)
			fmt.Fprintf(out, "Individuals: %d\n", result.Individuals)
			fmt.Fprintf(out, "Families:    %d\n", result.Families)
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "Warning: %s\n", w)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(out, "Error: %s\n", e)
			}
			if !result.Valid {
				return fmt.Errorf("%s is not a valid GEDCOM file", args[0])
			}
			return nil
		},
	}
}

func gedcomImportCmd() *cobra.Command {
	var folder string
	var collection string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create person notes from a GEDCOM file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGedcomImport(cmd, args[0], folder, collection, dryRun)
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Vault folder for new notes (default vault.people_folder)")
	cmd.Flags().StringVar(&collection, "collection", "", "Collection to assign to imported people")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be created without writing")
	return cmd
}

func runGedcomImport(cmd *cobra.Command, file, folder, collection string, dryRun bool) error {
	ctx := context.Background()

	a, err := loadApp()
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	check := gedcom.Validate(f)
	if !check.Valid {
		for _, e := range check.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", e)
		}
		return fmt.Errorf("%s is not a valid GEDCOM file", file)
	}
	for _, w := range check.Warnings {
		a.log.WithField("file", file).Warn(w)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	doc, err := gedcom.Parse(f)
	if err != nil {
		return err
	}

	if folder == "" {
		folder = a.cfg.Vault.PeopleFolder
	}
	result, err := ingest.ImportGEDCOM(ctx, doc, a.vault, a.log, ingest.ImportOptions{
		Folder:     folder,
		Collection: collection,
		DryRun:     dryRun,
		PersonType: a.cfg.Vault.PersonType,
		Aliases:    a.cfg.Aliases,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun {
		for _, p := range result.Paths {
			fmt.Fprintf(out, "Would create %s\n", p)
		}
	}
	fmt.Fprintf(out, "Import %s complete.\n", result.BatchID)
	fmt.Fprintf(out, "  People created:       %d\n", result.PeopleCreated)
	fmt.Fprintf(out, "  Relationships linked: %d\n", result.RelationshipsLinked)
	fmt.Fprintf(out, "  Skipped:              %d\n", result.Skipped)
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nErrors (%d):\n", len(result.Errors))
		for _, item := range result.Errors {
			fmt.Fprintf(out, "  - %v\n", item)
		}
		return fmt.Errorf("import completed with errors")
	}
	return nil
}

func gedcomExportCmd() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the vault's people to a GEDCOM 5.5.1 file (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGedcomExport(cmd, args[0], collection)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Only export people in this collection")
	return cmd
}

func runGedcomExport(cmd *cobra.Command, file, collection string) error {
	ctx := context.Background()

	a, err := loadApp()
	if err != nil {
		return err
	}
	people, err := a.graph.GetAll(ctx)
	if err != nil {
		return err
	}
	if collection != "" {
		filtered := make([]*person.Record, 0, len(people))
		for _, p := range people {
			if p.Collection == collection {
				filtered = append(filtered, p)
			}
		}
		people = filtered
	}

	doc := gedcom.FromRecords(people)
	if file == "-" {
		return gedcom.Write(cmd.OutOrStdout(), doc)
	}

	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := gedcom.Write(f, doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d people and %d families to %s.\n", len(doc.Individuals), len(doc.Families), file)
	return nil
}
