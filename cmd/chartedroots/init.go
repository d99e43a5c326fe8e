package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chartedroots/internal/config"
)

func initCmd() *cobra.Command {
	var projectName string
	var dsn string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a chartedroots project in the current vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(cmd, projectName, dsn)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Index database DSN (default sqlite://.chartedroots/index.db)")
	return cmd
}

func runInit(cmd *cobra.Command, projectName, dsn string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	cfg := config.Default(projectName)
	if dsn != "" {
		if _, err := config.Backend(dsn); err != nil {
			return err
		}
		cfg.Database.DSN = dsn
	}
	contents, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(configPath, contents, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}

	people := filepath.Join(filepath.Dir(configPath), cfg.Vault.PeopleFolder)
	if err := os.MkdirAll(people, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", people, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", configPath)
	return nil
}
