// Package person holds the typed person record and the mapping between it and
// the loosely typed frontmatter of a vault note.
package person

import "strings"

type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexOther   Sex = "other"
	SexUnknown Sex = "unknown"
)

// ParseSex accepts the long forms and the GEDCOM letters M, F, O and U.
func ParseSex(value string) Sex {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "m", "male", "man":
		return SexMale
	case "f", "female", "woman":
		return SexFemale
	case "o", "other", "x", "nonbinary", "non-binary":
		return SexOther
	default:
		return SexUnknown
	}
}

func (s Sex) Known() bool {
	return s == SexMale || s == SexFemale || s == SexOther
}

// Record is one genealogical individual materialised from one note.
type Record struct {
	ID         string
	Name       string
	Sex        Sex
	Pronouns   string
	Occupation string
	BirthDate  string
	DeathDate  string
	BirthPlace string
	DeathPlace string
	Collection string

	FatherID    string
	MotherID    string
	SpouseIDs   []string
	ChildrenIDs []string

	// Display links as stored in the note. The ids above are authoritative.
	Father   string
	Mother   string
	Spouses  []string
	Children []string

	// Source is the vault-relative path of the owning note.
	Source string
}

func (r *Record) BirthYear() (int, bool) {
	return Year(r.BirthDate)
}

func (r *Record) DeathYear() (int, bool) {
	return Year(r.DeathDate)
}

// Parents returns the non-empty parent ids, father first.
func (r *Record) Parents() []string {
	var ids []string
	if r.FatherID != "" {
		ids = append(ids, r.FatherID)
	}
	if r.MotherID != "" {
		ids = append(ids, r.MotherID)
	}
	return ids
}

func (r *Record) HasSpouse(id string) bool {
	return contains(r.SpouseIDs, id)
}

func (r *Record) HasChild(id string) bool {
	return contains(r.ChildrenIDs, id)
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
