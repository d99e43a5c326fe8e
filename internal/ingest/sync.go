package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"chartedroots/internal/graph"
	"chartedroots/internal/metrics"
	"chartedroots/internal/person"
	"chartedroots/internal/store"
)

// Sync brings the index in line with a graph snapshot. People whose hash is
// unchanged are skipped unless opts.Full is set; people no longer in the
// snapshot are removed. Per-person failures are collected in Result.Errors.
func Sync(ctx context.Context, snap *graph.Snapshot, db Store, log *logrus.Logger, opts SyncOptions) (*Result, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	var existing map[string]string
	if !opts.Full {
		var err error
		existing, err = db.GetPersonHashes(ctx)
		if err != nil {
			return nil, fmt.Errorf("get person hashes: %w", err)
		}
	}

	result := &Result{}
	people := snap.People()
	current := make([]string, 0, len(people))

	for _, rec := range people {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current = append(current, rec.ID)

		hash, err := recordHash(rec)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("hashing %s: %w", rec.ID, err))
			continue
		}
		if !opts.Full {
			if prev, ok := existing[rec.ID]; ok && prev == hash {
				result.PeopleSkipped++
				continue
			}
		}

		if err := db.UpsertPerson(ctx, personInput(rec, hash)); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("upserting %s: %w", rec.ID, err))
			continue
		}
		result.PeopleUpserted++

		edges := ownedEdges(rec)
		if err := db.ReplaceRelationships(ctx, rec.ID, edges); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("replacing relationships for %s: %w", rec.ID, err))
			continue
		}
		result.EdgesUpserted += len(edges)
	}

	removed, err := db.RemoveStalePeople(ctx, current)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("removing stale people: %w", err))
	}
	result.PeopleRemoved = int(removed)

	metrics.IndexSyncTotal.WithLabelValues("upserted").Add(float64(result.PeopleUpserted))
	metrics.IndexSyncTotal.WithLabelValues("skipped").Add(float64(result.PeopleSkipped))
	metrics.IndexSyncTotal.WithLabelValues("removed").Add(float64(result.PeopleRemoved))
	metrics.IndexSyncTotal.WithLabelValues("error").Add(float64(len(result.Errors)))

	log.WithFields(logrus.Fields{
		"upserted": result.PeopleUpserted,
		"edges":    result.EdgesUpserted,
		"removed":  result.PeopleRemoved,
		"skipped":  result.PeopleSkipped,
		"errors":   len(result.Errors),
	}).Info("index sync complete")

	return result, nil
}

func personInput(rec *person.Record, hash string) store.PersonInput {
	return store.PersonInput{
		ID:         rec.ID,
		Name:       rec.Name,
		Sex:        string(rec.Sex),
		BirthDate:  rec.BirthDate,
		DeathDate:  rec.DeathDate,
		BirthPlace: rec.BirthPlace,
		DeathPlace: rec.DeathPlace,
		Occupation: rec.Occupation,
		Collection: rec.Collection,
		SourceFile: rec.Source,
		SourceHash: hash,
	}
}

// ownedEdges are the edges a record declares: its parent edges and its own
// side of each marriage. Children lists are not indexed; the child's parent
// fields are authoritative.
func ownedEdges(rec *person.Record) []store.Edge {
	var edges []store.Edge
	if rec.FatherID != "" && rec.FatherID != rec.ID {
		edges = append(edges, store.Edge{From: rec.FatherID, To: rec.ID, Type: store.EdgeFatherOf})
	}
	if rec.MotherID != "" && rec.MotherID != rec.ID {
		edges = append(edges, store.Edge{From: rec.MotherID, To: rec.ID, Type: store.EdgeMotherOf})
	}
	seen := make(map[string]struct{}, len(rec.SpouseIDs))
	for _, id := range rec.SpouseIDs {
		if id == "" || id == rec.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		edges = append(edges, store.Edge{From: rec.ID, To: id, Type: store.EdgeSpouseOf})
	}
	return edges
}

type hashedRecord struct {
	Name       string   `json:"name"`
	Sex        string   `json:"sex"`
	Born       string   `json:"born"`
	Died       string   `json:"died"`
	BirthPlace string   `json:"birth_place"`
	DeathPlace string   `json:"death_place"`
	Occupation string   `json:"occupation"`
	Collection string   `json:"collection"`
	Source     string   `json:"source"`
	FatherID   string   `json:"father_id"`
	MotherID   string   `json:"mother_id"`
	SpouseIDs  []string `json:"spouse_id"`
}

// recordHash covers every field the index stores, so an unchanged hash
// means nothing needs to be written.
func recordHash(rec *person.Record) (string, error) {
	payload, err := json.Marshal(hashedRecord{
		Name:       rec.Name,
		Sex:        string(rec.Sex),
		Born:       rec.BirthDate,
		Died:       rec.DeathDate,
		BirthPlace: rec.BirthPlace,
		DeathPlace: rec.DeathPlace,
		Occupation: rec.Occupation,
		Collection: rec.Collection,
		Source:     rec.Source,
		FatherID:   rec.FatherID,
		MotherID:   rec.MotherID,
		SpouseIDs:  rec.SpouseIDs,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
