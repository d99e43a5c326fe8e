package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chartedroots/internal/ingest"
	"chartedroots/internal/store"
	"chartedroots/internal/vault"
)

func watchCmd() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-index the vault whenever person notes change",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", vault.DefaultDebounce, "Wait this long after the last change before syncing")
	return cmd
}

func runWatch(cmd *cobra.Command, debounce time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	db, err := openDB(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	resync := func(ctx context.Context, db store.Store) {
		snap, err := a.graph.Snapshot(ctx)
		if err != nil {
			a.log.WithError(err).Error("loading graph")
			return
		}
		result, err := ingest.Sync(ctx, snap, db, a.log, ingest.SyncOptions{})
		if err != nil {
			a.log.WithError(err).Error("index sync failed")
			return
		}
		for _, item := range result.Errors {
			a.log.WithError(item).Warn("index sync error")
		}
	}

	resync(ctx, db)
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, press Ctrl+C to stop.\n", a.vault.Root())

	return a.vault.Watch(ctx, debounce, func(handles []string) {
		a.graph.OnVaultChange(handles)
		resync(ctx, db)
	})
}
