package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chartedroots/internal/mcp"
	"chartedroots/internal/vault"
)

func serveCmd() *cobra.Command {
	var metricsAddr string
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, metricsAddr, noWatch)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the vault for changes")
	return cmd
}

func runServe(cmd *cobra.Command, metricsAddr string, noWatch bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}

	var index mcp.Index
	if a.cfg.Database.DSN != "" {
		db, err := openDB(ctx, a.cfg)
		if err != nil {
			a.log.WithError(err).Warn("index unavailable, search tools disabled")
		} else {
			defer db.Close(context.Background())
			index = db
		}
	}

	server := mcp.NewServer(a.graph, index, mcp.Options{
		Version:        version,
		Duplicates:     a.duplicateOptions(),
		MaxGenerations: a.cfg.Ancestors.MaxGenerations,
		Logger:         a.log,
	})

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer stop()
		return server.Run(ectx, &sdk.StdioTransport{})
	})
	if !noWatch {
		eg.Go(func() error {
			return a.vault.Watch(ectx, vault.DefaultDebounce, a.graph.OnVaultChange)
		})
	}
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metricsHandler(), ReadHeaderTimeout: 5 * time.Second}
		eg.Go(func() error {
			a.log.WithField("addr", metricsAddr).Info("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ectx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return eg.Wait()
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
