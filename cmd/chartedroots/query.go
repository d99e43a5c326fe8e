package main

import (
	"context"

	"github.com/spf13/cobra"

	"chartedroots/internal/config"
	"chartedroots/internal/store"
)

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the index database from the CLI",
	}
	cmd.AddCommand(queryPersonCmd())
	cmd.AddCommand(queryRelationsCmd())
	cmd.AddCommand(queryListCmd())
	cmd.AddCommand(querySearchCmd())
	cmd.AddCommand(querySQLCmd())
	cmd.AddCommand(queryDanglingCmd())
	return cmd
}

// withDB opens the index named in the config for the duration of fn.
func withDB(fn func(ctx context.Context, db store.Store) error) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	return fn(ctx, db)
}
