package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"chartedroots/internal/dupes"
	"chartedroots/internal/graph"
	"chartedroots/internal/person"
	"chartedroots/internal/store"
)

type mockGraph struct {
	snap *graph.Snapshot
	err  error
}

func (m *mockGraph) Snapshot(ctx context.Context) (*graph.Snapshot, error) {
	return m.snap, m.err
}

type mockIndex struct {
	searchResult        []store.SearchResult
	relationshipsResult []store.Relationship
	dangling            []store.Edge

	lastSearchQuery        string
	lastSearchCollection   string
	lastRelationshipsID    string
	lastRelationshipsType  string
	lastRelationshipsDir   string
	lastRelationshipsDepth int
}

func (m *mockIndex) Search(ctx context.Context, query, collection string) ([]store.SearchResult, error) {
	m.lastSearchQuery = query
	m.lastSearchCollection = collection
	return m.searchResult, nil
}

func (m *mockIndex) GetRelationships(ctx context.Context, id, relType, direction string, depth int) ([]store.Relationship, error) {
	m.lastRelationshipsID = id
	m.lastRelationshipsType = relType
	m.lastRelationshipsDir = direction
	m.lastRelationshipsDepth = depth
	return m.relationshipsResult, nil
}

func (m *mockIndex) ListDanglingEdges(ctx context.Context) ([]store.Edge, error) {
	return m.dangling, nil
}

func testSnapshot() *graph.Snapshot {
	return graph.NewSnapshot([]*person.Record{
		{ID: "joh-001-smi-001", Name: "John Smith", Sex: person.SexMale, BirthDate: "1850", Collection: "Smith",
			FatherID: "wil-002-smi-002", MotherID: "mar-003-bro-003", Father: "[[William Smith]]", Mother: "[[Mary Brown]]",
			Source: "People/John Smith.md"},
		{ID: "jon-004-smi-004", Name: "Jon Smith", Sex: person.SexMale, BirthDate: "1851", Collection: "Smith",
			Source: "People/Jon Smith.md"},
		{ID: "wil-002-smi-002", Name: "William Smith", Sex: person.SexMale, Collection: "Smith",
			SpouseIDs: []string{"mar-003-bro-003"}, Spouses: []string{"[[Mary Brown]]"},
			ChildrenIDs: []string{"joh-001-smi-001"}, Children: []string{"[[John Smith]]"},
			Source: "People/William Smith.md"},
		{ID: "mar-003-bro-003", Name: "Mary Brown", Sex: person.SexFemale, Collection: "Brown",
			SpouseIDs: []string{"wil-002-smi-002"}, Spouses: []string{"[[William Smith]]"},
			ChildrenIDs: []string{"joh-001-smi-001"}, Children: []string{"[[John Smith]]"},
			Source: "People/Mary Brown.md"},
	})
}

func newTestServer(index Index) *Server {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewServer(&mockGraph{snap: testSnapshot()}, index, Options{
		Version:        "test",
		Duplicates:     dupes.DefaultOptions(),
		MaxGenerations: 4,
		Logger:         log,
	})
}

func TestGetPerson(t *testing.T) {
	server := newTestServer(nil)

	_, output, err := server.handleGetPerson(context.Background(), nil, GetPersonInput{ID: "joh-001-smi-001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Name != "John Smith" || output.Sex != "male" {
		t.Fatalf("unexpected person: %+v", output)
	}
	if output.Father == nil || output.Father.Name != "William Smith" {
		t.Fatalf("unexpected father: %+v", output.Father)
	}
	if output.Mother == nil || output.Mother.ID != "mar-003-bro-003" {
		t.Fatalf("unexpected mother: %+v", output.Mother)
	}
}

func TestGetPerson_NotFound(t *testing.T) {
	server := newTestServer(nil)

	_, _, err := server.handleGetPerson(context.Background(), nil, GetPersonInput{ID: "zzz-999-zzz-999"})
	if !errors.Is(err, graph.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := server.handleGetPerson(context.Background(), nil, GetPersonInput{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestGetPerson_GraphError(t *testing.T) {
	server := NewServer(&mockGraph{err: errors.New("vault unreadable")}, nil, Options{})
	if _, _, err := server.handleGetPerson(context.Background(), nil, GetPersonInput{ID: "joh-001-smi-001"}); err == nil {
		t.Fatal("expected graph error")
	}
}

func TestListPeople(t *testing.T) {
	server := newTestServer(nil)

	_, output, err := server.handleListPeople(context.Background(), nil, ListPeopleInput{Collection: "Smith", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Total != 3 || len(output.People) != 2 {
		t.Fatalf("unexpected list output: %+v", output)
	}
	if output.People[0].Name != "John Smith" || output.People[1].Name != "Jon Smith" {
		t.Fatalf("unexpected order: %+v", output.People)
	}
}

func TestFindDuplicates(t *testing.T) {
	server := newTestServer(nil)

	_, output, err := server.handleFindDuplicates(context.Background(), nil, FindDuplicatesInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Candidates) == 0 {
		t.Fatal("expected a candidate")
	}
	top := output.Candidates[0]
	ids := map[string]bool{top.A.ID: true, top.B.ID: true}
	if !ids["joh-001-smi-001"] || !ids["jon-004-smi-004"] {
		t.Fatalf("unexpected top candidate: %+v", top)
	}

	_, output, err = server.handleFindDuplicates(context.Background(), nil, FindDuplicatesInput{MinConfidence: 99.9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Candidates) != 0 {
		t.Fatalf("expected no candidates at 99.9, got %+v", output.Candidates)
	}
}

func TestGetAncestors(t *testing.T) {
	server := newTestServer(nil)

	_, output, err := server.handleGetAncestors(context.Background(), nil, GetAncestorsInput{ID: "joh-001-smi-001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Ancestors) != 3 {
		t.Fatalf("expected root and two parents, got %+v", output.Ancestors)
	}
	if output.Ancestors[1].Number != 2 || output.Ancestors[1].Label != "father" || output.Ancestors[1].Name != "William Smith" {
		t.Fatalf("unexpected father entry: %+v", output.Ancestors[1])
	}
	if output.GenerationsFound != 2 {
		t.Fatalf("expected 2 generations, got %d", output.GenerationsFound)
	}

	if _, _, err := server.handleGetAncestors(context.Background(), nil, GetAncestorsInput{ID: "joh-001-smi-001", Generations: 99}); err == nil {
		t.Fatal("expected error for too many generations")
	}
}

func TestValidateGraph(t *testing.T) {
	index := &mockIndex{dangling: []store.Edge{{From: "a", To: "b", Type: store.EdgeSpouseOf}}}
	server := newTestServer(index)

	_, output, err := server.handleValidateGraph(context.Background(), nil, ValidateGraphInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Errors != 0 || output.Warnings != 1 {
		t.Fatalf("expected only the index warning, got %+v", output.Issues)
	}
}

func TestSearchPeople(t *testing.T) {
	index := &mockIndex{
		searchResult: []store.SearchResult{{ID: "joh-001-smi-001", Name: "John Smith", Collection: "Smith", Score: 2.5}},
	}
	server := newTestServer(index)

	_, output, err := server.handleSearchPeople(context.Background(), nil, SearchPeopleInput{Query: "smith", Collection: "Smith"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Results) != 1 || output.Results[0].Name != "John Smith" {
		t.Fatalf("unexpected search output: %+v", output)
	}
	if index.lastSearchQuery != "smith" || index.lastSearchCollection != "Smith" {
		t.Fatalf("unexpected search params")
	}
}

func TestSearchPeople_NoIndex(t *testing.T) {
	server := newTestServer(nil)
	_, _, err := server.handleSearchPeople(context.Background(), nil, SearchPeopleInput{Query: "smith"})
	if !errors.Is(err, errNoIndex) {
		t.Fatalf("expected errNoIndex, got %v", err)
	}
}

func TestGetRelationships(t *testing.T) {
	index := &mockIndex{
		relationshipsResult: []store.Relationship{{
			From:      store.PersonRef{ID: "wil-002-smi-002", Name: "William Smith"},
			To:        store.PersonRef{ID: "joh-001-smi-001", Name: "John Smith"},
			Type:      store.EdgeFatherOf,
			Direction: "outgoing",
			Depth:     1,
		}},
	}
	server := newTestServer(index)

	_, output, err := server.handleGetRelationships(context.Background(), nil, GetRelationshipsInput{ID: "wil-002-smi-002"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Relationships) != 1 || output.Relationships[0].To.Name != "John Smith" {
		t.Fatalf("unexpected relationships output: %+v", output)
	}
	if index.lastRelationshipsID != "wil-002-smi-002" || index.lastRelationshipsDepth != 1 {
		t.Fatalf("unexpected relationships params")
	}
}
