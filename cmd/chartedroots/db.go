package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"chartedroots/internal/config"
	"chartedroots/internal/dupes"
	"chartedroots/internal/graph"
	"chartedroots/internal/logging"
	"chartedroots/internal/relate"
	"chartedroots/internal/store"
	"chartedroots/internal/store/postgres"
	"chartedroots/internal/store/sqlite"
	"chartedroots/internal/vault"
)

// app bundles what most commands need: config, logger, the vault and the
// cached graph over it.
type app struct {
	cfg   *config.ProjectConfig
	log   *logrus.Logger
	vault *vault.Vault
	graph *graph.Graph
}

func loadApp() (*app, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	v, err := vault.NewOS(cfg.VaultRoot(), vault.Options{
		Folders:    cfg.Vault.Folders,
		Exclude:    cfg.Vault.Exclude,
		PersonType: cfg.Vault.PersonType,
		Aliases:    cfg.Aliases,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	g := graph.New(v, graph.Options{
		PersonType: cfg.Vault.PersonType,
		Aliases:    cfg.Aliases,
		Logger:     log,
	})
	return &app{cfg: cfg, log: log, vault: v, graph: g}, nil
}

func (a *app) mutator() *relate.Mutator {
	notify := relate.NotifierFunc(func(ctx context.Context, change relate.Change) {
		a.graph.Invalidate()
		a.log.WithFields(logrus.Fields{
			"change_id": change.ID.String(),
			"op":        change.Op,
			"paths":     change.Paths,
		}).Debug("relationship change")
	})
	return relate.New(a.vault, a.cfg.Aliases, a.log,
		relate.WithPersonType(a.cfg.Vault.PersonType),
		relate.WithNotifier(notify),
	)
}

func (a *app) duplicateOptions() dupes.Options {
	d := a.cfg.Duplicates
	return dupes.Options{
		MinNameSimilarity:  d.MinNameSimilarity,
		MinConfidence:      d.MinConfidence,
		MaxYearDifference:  d.MaxYearDifference,
		SameCollectionOnly: d.SameCollectionOnly,
		Workers:            d.Workers,
	}
}

// openDB opens the index store the DSN selects.
func openDB(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	dsn := strings.TrimSpace(cfg.Database.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("database.dsn is not configured")
	}
	backend, err := config.Backend(dsn)
	if err != nil {
		return nil, err
	}

	switch backend {
	case "postgres":
		client, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		dsn, err = sqliteDSN(cfg, dsn)
		if err != nil {
			return nil, err
		}
		client, err := sqlite.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// sqliteDSN resolves a relative sqlite:// path against the config directory
// and creates the folder holding the database file.
func sqliteDSN(cfg *config.ProjectConfig, dsn string) (string, error) {
	rest, ok := strings.CutPrefix(dsn, "sqlite://")
	if !ok || rest == ":memory:" {
		return dsn, nil
	}
	p, query, hasQuery := strings.Cut(rest, "?")
	p = cfg.ResolvePath(p)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("creating index folder: %w", err)
	}
	dsn = "sqlite://" + filepath.ToSlash(p)
	if hasQuery {
		dsn += "?" + query
	}
	return dsn, nil
}
