// Package graph keeps the in-memory person graph built from the record store.
// The graph is an id-indexed arena: relationships are resolved by id lookup,
// and unresolved ids read as absent.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"chartedroots/internal/metrics"
	"chartedroots/internal/person"
)

var ErrNotFound = errors.New("person not found")

// Store is the read side of the record store adapter.
type Store interface {
	ListRecords(ctx context.Context, kind string) ([]string, error)
	ReadFields(ctx context.Context, handle string) (map[string]any, error)
	ResolveDisplayName(ctx context.Context, handle string) (string, error)
}

type Options struct {
	PersonType string
	Aliases    map[string]string
	Workers    int
	Logger     *logrus.Logger
}

// Graph caches one Snapshot until Invalidate is called. It never updates a
// snapshot in place; a rebuild replaces it.
type Graph struct {
	store      Store
	fields     person.FieldMap
	personType string
	workers    int
	log        *logrus.Logger

	mu         sync.RWMutex
	snap       *Snapshot
	generation uint64

	buildMu sync.Mutex
}

func New(store Store, opts Options) *Graph {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 8
	}
	personType := opts.PersonType
	if personType == "" {
		personType = person.DefaultType
	}
	return &Graph{
		store:      store,
		fields:     person.NewFieldMap(opts.Aliases),
		personType: personType,
		workers:    workers,
		log:        log,
	}
}

// Snapshot returns the cached snapshot, building it on first use. Concurrent
// callers share one build.
func (g *Graph) Snapshot(ctx context.Context) (*Snapshot, error) {
	g.mu.RLock()
	snap := g.snap
	g.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	g.buildMu.Lock()
	defer g.buildMu.Unlock()

	g.mu.RLock()
	snap, generation := g.snap, g.generation
	g.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	snap, err := g.build(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.generation == generation {
		g.snap = snap
	}
	g.mu.Unlock()
	return snap, nil
}

// Load returns every person keyed by id.
func (g *Graph) Load(ctx context.Context) (map[string]*person.Record, error) {
	snap, err := g.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*person.Record, len(snap.people))
	for id, rec := range snap.people {
		out[id] = rec
	}
	return out, nil
}

func (g *Graph) GetByID(ctx context.Context, id string) (*person.Record, error) {
	snap, err := g.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := snap.Person(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// GetAll returns every person ordered by name, then id.
func (g *Graph) GetAll(ctx context.Context) ([]*person.Record, error) {
	snap, err := g.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.People(), nil
}

// Invalidate drops the cache; the next access rebuilds it.
func (g *Graph) Invalidate() {
	g.mu.Lock()
	g.snap = nil
	g.generation++
	g.mu.Unlock()
	metrics.GraphInvalidations.Inc()
}

// OnVaultChange invalidates the cache for a batch of changed notes. It has
// the signature vault.Watch expects.
func (g *Graph) OnVaultChange(handles []string) {
	g.log.WithField("changed", len(handles)).Debug("vault changed, invalidating graph")
	g.Invalidate()
}

func (g *Graph) build(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	handles, err := g.store.ListRecords(ctx, g.personType)
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}

	records := make([]*person.Record, len(handles))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, h := range handles {
		eg.Go(func() error {
			rec, err := g.read(ectx, h)
			if err != nil {
				if ctxErr := ectx.Err(); ctxErr != nil {
					return ctxErr
				}
				g.log.WithError(err).WithField("path", h).Warn("skipping unreadable person")
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("loading people: %w", err)
	}

	snap := NewSnapshot(records)
	for _, h := range snap.missingID {
		g.log.WithField("path", h).Debug("skipping person without id")
	}
	for _, dup := range snap.duplicates {
		g.log.WithFields(logrus.Fields{
			"id":    dup.ID,
			"kept":  dup.Kept,
			"other": dup.Ignored,
		}).Warn("duplicate person id")
	}

	metrics.GraphLoadDuration.Observe(time.Since(start).Seconds())
	metrics.GraphPeople.Set(float64(len(snap.people)))
	g.log.WithFields(logrus.Fields{
		"people":   len(snap.people),
		"duration": time.Since(start).String(),
	}).Debug("graph loaded")
	return snap, nil
}

func (g *Graph) read(ctx context.Context, h string) (*person.Record, error) {
	fields, err := g.store.ReadFields(ctx, h)
	if err != nil {
		return nil, err
	}
	fallback, err := g.store.ResolveDisplayName(ctx, h)
	if err != nil {
		return nil, err
	}
	return g.fields.Record(fields, h, fallback), nil
}
