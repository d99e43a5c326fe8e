package store

const (
	EdgeFatherOf = "FATHER_OF"
	EdgeMotherOf = "MOTHER_OF"
	EdgeSpouseOf = "SPOUSE_OF"
)

type PersonInput struct {
	ID         string
	Name       string
	Sex        string
	BirthDate  string
	DeathDate  string
	BirthPlace string
	DeathPlace string
	Occupation string
	Collection string
	SourceFile string
	SourceHash string
}

type Person struct {
	ID         string
	Name       string
	Sex        string
	BirthDate  string
	DeathDate  string
	BirthPlace string
	DeathPlace string
	Occupation string
	Collection string
	SourceFile string
	SourceHash string
}

type PersonSummary struct {
	ID         string
	Name       string
	Sex        string
	BirthDate  string
	DeathDate  string
	Collection string
}

// Edge is a directed relationship. Parent edges point from parent to child;
// spouse edges are stored once per side.
type Edge struct {
	From string
	To   string
	Type string
}

type PersonRef struct {
	ID   string
	Name string
}

type Relationship struct {
	From      PersonRef
	To        PersonRef
	Type      string
	Direction string
	Depth     int
}

type SearchResult struct {
	ID         string
	Name       string
	Collection string
	Score      float64
	Snippet    string
}
