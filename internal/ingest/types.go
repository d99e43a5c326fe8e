package ingest

import (
	"context"

	"github.com/google/uuid"

	"chartedroots/internal/store"
)

// Store is the write side of the index store used by Sync.
type Store interface {
	EnsureSchema(ctx context.Context) error
	UpsertPerson(ctx context.Context, p store.PersonInput) error
	ReplaceRelationships(ctx context.Context, ownerID string, edges []store.Edge) error
	RemoveStalePeople(ctx context.Context, currentIDs []string) (int64, error)
	GetPersonHashes(ctx context.Context) (map[string]string, error)
}

// Creator writes new notes. vault.Vault satisfies it.
type Creator interface {
	CreateRecord(ctx context.Context, h string, fields map[string]any, body string) error
	Exists(ctx context.Context, h string) (bool, error)
}

type Result struct {
	PeopleUpserted int
	EdgesUpserted  int
	PeopleRemoved  int
	PeopleSkipped  int
	Errors         []error
}

type SyncOptions struct {
	Full bool
}

type ImportOptions struct {
	// Folder is the vault-relative folder new notes are created in.
	Folder     string
	Collection string
	DryRun     bool

	PersonType string
	Aliases    map[string]string
}

type ImportResult struct {
	BatchID             uuid.UUID
	PeopleCreated       int
	RelationshipsLinked int
	Skipped             int
	// Paths lists the notes created, or that would be created on a dry run,
	// in GEDCOM order.
	Paths  []string
	Errors []error
}
