package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("person not found in index")

// Store is the queryable index of the vault. It is rebuilt from the notes by
// ingest.Sync and never written to by the relationship mutator.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	UpsertPerson(ctx context.Context, p PersonInput) error
	ReplaceRelationships(ctx context.Context, ownerID string, edges []Edge) error
	RemoveStalePeople(ctx context.Context, currentIDs []string) (int64, error)
	GetPersonHashes(ctx context.Context) (map[string]string, error)

	GetPerson(ctx context.Context, id string) (*Person, error)
	ListPeople(ctx context.Context, collection string) ([]PersonSummary, error)
	Search(ctx context.Context, query, collection string) ([]SearchResult, error)
	GetRelationships(ctx context.Context, id, relType, direction string, depth int) ([]Relationship, error)
	ListDanglingEdges(ctx context.Context) ([]Edge, error)

	RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}
