package mcp

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"chartedroots/internal/ahnentafel"
	"chartedroots/internal/dupes"
	"chartedroots/internal/graph"
	"chartedroots/internal/person"
	"chartedroots/internal/store"
	"chartedroots/internal/validate"
)

var errNoIndex = errors.New("no index configured, set database.dsn and run index")

const defaultListLimit = 200

type GetPersonInput struct {
	ID string `json:"id" jsonschema:"person id (cr_id)"`
}

type ListPeopleInput struct {
	Collection string `json:"collection,omitempty" jsonschema:"restrict to a collection"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of people to return"`
}

type FindDuplicatesInput struct {
	MinConfidence      float64 `json:"min_confidence,omitempty" jsonschema:"minimum confidence from 0 to 100"`
	SameCollectionOnly bool    `json:"same_collection_only,omitempty" jsonschema:"only compare people in the same collection"`
	Limit              int     `json:"limit,omitempty" jsonschema:"maximum number of candidates to return"`
}

type GetAncestorsInput struct {
	ID          string `json:"id" jsonschema:"root person id"`
	Generations int    `json:"generations,omitempty" jsonschema:"number of generations including the root"`
	Partial     bool   `json:"partial,omitempty" jsonschema:"follow a known parent even when the other is missing"`
}

type ValidateGraphInput struct{}

type SearchPeopleInput struct {
	Query      string `json:"query" jsonschema:"search terms"`
	Collection string `json:"collection,omitempty" jsonschema:"restrict to a collection"`
}

type GetRelationshipsInput struct {
	ID        string `json:"id" jsonschema:"starting person id"`
	Type      string `json:"type,omitempty" jsonschema:"FATHER_OF, MOTHER_OF or SPOUSE_OF"`
	Depth     int    `json:"depth,omitempty" jsonschema:"maximum traversal depth"`
	Direction string `json:"direction,omitempty" jsonschema:"outgoing, incoming, or both"`
}

type PersonRefOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PersonOutput struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Sex        string            `json:"sex"`
	BirthDate  string            `json:"birth_date,omitempty"`
	BirthPlace string            `json:"birth_place,omitempty"`
	DeathDate  string            `json:"death_date,omitempty"`
	DeathPlace string            `json:"death_place,omitempty"`
	Occupation string            `json:"occupation,omitempty"`
	Collection string            `json:"collection,omitempty"`
	SourceFile string            `json:"source_file"`
	Father     *PersonRefOutput  `json:"father,omitempty"`
	Mother     *PersonRefOutput  `json:"mother,omitempty"`
	Spouses    []PersonRefOutput `json:"spouses"`
	Children   []PersonRefOutput `json:"children"`
}

type PersonSummaryOutput struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Sex        string `json:"sex"`
	BirthDate  string `json:"birth_date,omitempty"`
	DeathDate  string `json:"death_date,omitempty"`
	Collection string `json:"collection,omitempty"`
}

type ListPeopleOutput struct {
	People []PersonSummaryOutput `json:"people"`
	Total  int                   `json:"total"`
}

type CandidateOutput struct {
	A               PersonRefOutput `json:"a"`
	B               PersonRefOutput `json:"b"`
	Confidence      float64         `json:"confidence"`
	NameSimilarity  float64         `json:"name_similarity"`
	DateProximity   float64         `json:"date_proximity"`
	SharedRelations int             `json:"shared_relations"`
	Reasons         []string        `json:"reasons"`
}

type FindDuplicatesOutput struct {
	Candidates []CandidateOutput `json:"candidates"`
}

type AncestorOutput struct {
	Number     int    `json:"number"`
	Generation int    `json:"generation"`
	Label      string `json:"label"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	BirthDate  string `json:"birth_date,omitempty"`
	DeathDate  string `json:"death_date,omitempty"`
}

type GenerationOutput struct {
	Generation   int     `json:"generation"`
	Found        int     `json:"found"`
	Possible     int     `json:"possible"`
	Completeness float64 `json:"completeness"`
}

type GetAncestorsOutput struct {
	Root             PersonRefOutput    `json:"root"`
	Ancestors        []AncestorOutput   `json:"ancestors"`
	GenerationsFound int                `json:"generations_found"`
	Generations      []GenerationOutput `json:"generations"`
	Collapsed        []string           `json:"collapsed,omitempty"`
}

type ValidateGraphOutput struct {
	Issues   []validate.Issue `json:"issues"`
	Errors   int              `json:"errors"`
	Warnings int              `json:"warnings"`
}

type SearchResultOutput struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Collection string  `json:"collection,omitempty"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet,omitempty"`
}

type SearchPeopleOutput struct {
	Results []SearchResultOutput `json:"results"`
}

type RelationshipOutput struct {
	From      PersonRefOutput `json:"from"`
	To        PersonRefOutput `json:"to"`
	Type      string          `json:"type"`
	Direction string          `json:"direction"`
	Depth     int             `json:"depth"`
}

type GetRelationshipsOutput struct {
	Relationships []RelationshipOutput `json:"relationships"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_person",
		Description: "Retrieve a person with their parents, spouses and children",
	}, s.handleGetPerson)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_people",
		Description: "List people ordered by name, optionally within a collection",
	}, s.handleListPeople)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "find_duplicates",
		Description: "Find pairs of people that are probably the same individual",
	}, s.handleFindDuplicates)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_ancestors",
		Description: "Number a person's ancestors with the Ahnentafel system",
	}, s.handleGetAncestors)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "validate_graph",
		Description: "Report one-sided, dangling and stale relationships",
	}, s.handleValidateGraph)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_people",
		Description: "Full text search over names, places and occupations in the index",
	}, s.handleSearchPeople)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_relationships",
		Description: "Traverse parent and spouse relationships in the index",
	}, s.handleGetRelationships)
}

func (s *Server) snapshot(ctx context.Context) (*graph.Snapshot, error) {
	snap, err := s.people.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}
	return snap, nil
}

func (s *Server) handleGetPerson(ctx context.Context, req *sdk.CallToolRequest, input GetPersonInput) (*sdk.CallToolResult, PersonOutput, error) {
	if input.ID == "" {
		return nil, PersonOutput{}, fmt.Errorf("id is required")
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, PersonOutput{}, err
	}
	rec, ok := snap.Person(input.ID)
	if !ok {
		return nil, PersonOutput{}, fmt.Errorf("%w: %s", graph.ErrNotFound, input.ID)
	}
	return nil, personOutput(snap, rec), nil
}

func (s *Server) handleListPeople(ctx context.Context, req *sdk.CallToolRequest, input ListPeopleInput) (*sdk.CallToolResult, ListPeopleOutput, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, ListPeopleOutput{}, err
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	output := ListPeopleOutput{People: make([]PersonSummaryOutput, 0)}
	for _, rec := range snap.People() {
		if input.Collection != "" && rec.Collection != input.Collection {
			continue
		}
		output.Total++
		if len(output.People) < limit {
			output.People = append(output.People, summaryOutput(rec))
		}
	}
	return nil, output, nil
}

func (s *Server) handleFindDuplicates(ctx context.Context, req *sdk.CallToolRequest, input FindDuplicatesInput) (*sdk.CallToolResult, FindDuplicatesOutput, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, FindDuplicatesOutput{}, err
	}
	opts := s.opts.Duplicates
	if input.MinConfidence > 0 {
		opts.MinConfidence = input.MinConfidence
	}
	if input.SameCollectionOnly {
		opts.SameCollectionOnly = true
	}

	candidates, err := dupes.FindDuplicates(ctx, snap.People(), opts)
	if err != nil {
		return nil, FindDuplicatesOutput{}, err
	}
	if input.Limit > 0 && len(candidates) > input.Limit {
		candidates = candidates[:input.Limit]
	}

	output := make([]CandidateOutput, 0, len(candidates))
	for _, c := range candidates {
		output = append(output, CandidateOutput{
			A:               refOutput(c.A),
			B:               refOutput(c.B),
			Confidence:      c.Confidence,
			NameSimilarity:  c.NameSimilarity,
			DateProximity:   c.DateProximity,
			SharedRelations: c.SharedRelations,
			Reasons:         append([]string{}, c.Reasons...),
		})
	}
	return nil, FindDuplicatesOutput{Candidates: output}, nil
}

func (s *Server) handleGetAncestors(ctx context.Context, req *sdk.CallToolRequest, input GetAncestorsInput) (*sdk.CallToolResult, GetAncestorsOutput, error) {
	if input.ID == "" {
		return nil, GetAncestorsOutput{}, fmt.Errorf("id is required")
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, GetAncestorsOutput{}, err
	}
	generations := input.Generations
	if generations == 0 {
		generations = s.opts.MaxGenerations
	}
	var opts []ahnentafel.Option
	if input.Partial {
		opts = append(opts, ahnentafel.WithPartialParents())
	}

	result, err := ahnentafel.Generate(snap, input.ID, generations, opts...)
	if err != nil {
		return nil, GetAncestorsOutput{}, err
	}
	return nil, ancestorsOutput(result), nil
}

func (s *Server) handleValidateGraph(ctx context.Context, req *sdk.CallToolRequest, input ValidateGraphInput) (*sdk.CallToolResult, ValidateGraphOutput, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, ValidateGraphOutput{}, err
	}
	report, err := validate.Run(ctx, snap, s.index)
	if err != nil {
		return nil, ValidateGraphOutput{}, err
	}
	return nil, ValidateGraphOutput{
		Issues:   report.Issues,
		Errors:   report.Errors(),
		Warnings: report.Warnings(),
	}, nil
}

func (s *Server) handleSearchPeople(ctx context.Context, req *sdk.CallToolRequest, input SearchPeopleInput) (*sdk.CallToolResult, SearchPeopleOutput, error) {
	if input.Query == "" {
		return nil, SearchPeopleOutput{}, fmt.Errorf("query is required")
	}
	if s.index == nil {
		return nil, SearchPeopleOutput{}, errNoIndex
	}
	results, err := s.index.Search(ctx, input.Query, input.Collection)
	if err != nil {
		return nil, SearchPeopleOutput{}, err
	}

	output := make([]SearchResultOutput, 0, len(results))
	for _, r := range results {
		output = append(output, SearchResultOutput{
			ID:         r.ID,
			Name:       r.Name,
			Collection: r.Collection,
			Score:      r.Score,
			Snippet:    r.Snippet,
		})
	}
	return nil, SearchPeopleOutput{Results: output}, nil
}

func (s *Server) handleGetRelationships(ctx context.Context, req *sdk.CallToolRequest, input GetRelationshipsInput) (*sdk.CallToolResult, GetRelationshipsOutput, error) {
	if input.ID == "" {
		return nil, GetRelationshipsOutput{}, fmt.Errorf("id is required")
	}
	if s.index == nil {
		return nil, GetRelationshipsOutput{}, errNoIndex
	}
	depth := input.Depth
	if depth == 0 {
		depth = 1
	}
	rels, err := s.index.GetRelationships(ctx, input.ID, input.Type, input.Direction, depth)
	if err != nil {
		return nil, GetRelationshipsOutput{}, err
	}

	output := make([]RelationshipOutput, 0, len(rels))
	for _, rel := range rels {
		output = append(output, relationshipOutput(rel))
	}
	return nil, GetRelationshipsOutput{Relationships: output}, nil
}

func refOutput(rec *person.Record) PersonRefOutput {
	if rec == nil {
		return PersonRefOutput{}
	}
	return PersonRefOutput{ID: rec.ID, Name: rec.Name}
}

func refsOutput(records []*person.Record) []PersonRefOutput {
	out := make([]PersonRefOutput, 0, len(records))
	for _, rec := range records {
		out = append(out, refOutput(rec))
	}
	return out
}

func personOutput(snap *graph.Snapshot, rec *person.Record) PersonOutput {
	out := PersonOutput{
		ID:         rec.ID,
		Name:       rec.Name,
		Sex:        string(rec.Sex),
		BirthDate:  rec.BirthDate,
		BirthPlace: rec.BirthPlace,
		DeathDate:  rec.DeathDate,
		DeathPlace: rec.DeathPlace,
		Occupation: rec.Occupation,
		Collection: rec.Collection,
		SourceFile: rec.Source,
		Spouses:    refsOutput(snap.Spouses(rec)),
		Children:   refsOutput(snap.Children(rec)),
	}
	if father, ok := snap.Father(rec); ok {
		ref := refOutput(father)
		out.Father = &ref
	}
	if mother, ok := snap.Mother(rec); ok {
		ref := refOutput(mother)
		out.Mother = &ref
	}
	return out
}

func summaryOutput(rec *person.Record) PersonSummaryOutput {
	return PersonSummaryOutput{
		ID:         rec.ID,
		Name:       rec.Name,
		Sex:        string(rec.Sex),
		BirthDate:  rec.BirthDate,
		DeathDate:  rec.DeathDate,
		Collection: rec.Collection,
	}
}

func ancestorsOutput(result *ahnentafel.Result) GetAncestorsOutput {
	out := GetAncestorsOutput{
		Root:             refOutput(result.Root),
		Ancestors:        make([]AncestorOutput, 0, len(result.Ancestors)),
		GenerationsFound: result.GenerationsFound,
		Generations:      make([]GenerationOutput, 0, len(result.Generations)),
		Collapsed:        result.Collapsed,
	}
	for _, n := range result.Numbers() {
		rec := result.Ancestors[n]
		out.Ancestors = append(out.Ancestors, AncestorOutput{
			Number:     n,
			Generation: ahnentafel.Generation(n),
			Label:      ahnentafel.Label(n),
			ID:         rec.ID,
			Name:       rec.Name,
			BirthDate:  rec.BirthDate,
			DeathDate:  rec.DeathDate,
		})
	}
	for _, g := range result.Generations {
		out.Generations = append(out.Generations, GenerationOutput{
			Generation:   g.Generation,
			Found:        g.Found,
			Possible:     g.Possible,
			Completeness: g.Completeness,
		})
	}
	return out
}

func relationshipOutput(rel store.Relationship) RelationshipOutput {
	return RelationshipOutput{
		From:      PersonRefOutput{ID: rel.From.ID, Name: rel.From.Name},
		To:        PersonRefOutput{ID: rel.To.ID, Name: rel.To.Name},
		Type:      rel.Type,
		Direction: rel.Direction,
		Depth:     rel.Depth,
	}
}
