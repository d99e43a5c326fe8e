package person

import (
	"fmt"
	"strconv"
	"strings"

	"chartedroots/internal/parser"
)

// Canonical frontmatter keys. A vault may rename any of them through
// property aliases.
const (
	KeyID         = "cr_id"
	KeyType       = "cr_type"
	KeyName       = "name"
	KeySex        = "sex"
	KeyGender     = "gender"
	KeyPronouns   = "pronouns"
	KeyOccupation = "occupation"
	KeyBorn       = "born"
	KeyDied       = "died"
	KeyBirthPlace = "birth_place"
	KeyDeathPlace = "death_place"
	KeyCollection = "collection"
	KeyFather     = "father"
	KeyFatherID   = "father_id"
	KeyMother     = "mother"
	KeyMotherID   = "mother_id"
	KeySpouse     = "spouse"
	KeySpouseID   = "spouse_id"
	KeyChildren   = "children"
	KeyChildrenID = "children_id"
	KeyGedcomXref = "gedcom_xref"

	DefaultType = "person"
)

// KeyOrder is the order new person notes are written in.
var KeyOrder = []string{
	KeyID, KeyType, KeyName, KeySex, KeyPronouns, KeyOccupation,
	KeyBorn, KeyBirthPlace, KeyDied, KeyDeathPlace,
	KeyFather, KeyFatherID, KeyMother, KeyMotherID,
	KeySpouse, KeySpouseID, KeyChildren, KeyChildrenID,
	KeyCollection, KeyGedcomXref,
}

// FieldMap translates canonical keys to the keys a vault actually uses.
type FieldMap struct {
	aliases map[string]string
}

func NewFieldMap(aliases map[string]string) FieldMap {
	copied := make(map[string]string, len(aliases))
	for canonical, key := range aliases {
		if strings.TrimSpace(key) == "" {
			continue
		}
		copied[canonical] = key
	}
	return FieldMap{aliases: copied}
}

func (m FieldMap) Key(canonical string) string {
	if key, ok := m.aliases[canonical]; ok {
		return key
	}
	return canonical
}

func (m FieldMap) String(fields map[string]any, canonical string) string {
	return scalar(fields[m.Key(canonical)])
}

// List reads a list field. A malformed value reads as empty.
func (m FieldMap) List(fields map[string]any, canonical string) []string {
	values, err := parser.StringList(fields[m.Key(canonical)])
	if err != nil || len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func (m FieldMap) Set(fields map[string]any, canonical string, value any) {
	key := m.Key(canonical)
	switch v := value.(type) {
	case string:
		if v == "" {
			delete(fields, key)
			return
		}
	case []string:
		if len(v) == 0 {
			delete(fields, key)
			return
		}
	case nil:
		delete(fields, key)
		return
	}
	fields[key] = value
}

func (m FieldMap) Delete(fields map[string]any, canonical string) {
	delete(fields, m.Key(canonical))
}

// IsPerson reports whether a note's frontmatter describes a person. Notes
// without a type but with an id are treated as people.
func (m FieldMap) IsPerson(fields map[string]any, personType string) bool {
	if personType == "" {
		personType = DefaultType
	}
	kind := m.String(fields, KeyType)
	if kind == "" {
		return m.String(fields, KeyID) != ""
	}
	return strings.EqualFold(kind, personType)
}

// Record maps frontmatter to a Record. fallbackName is used when the note
// has no name field, normally the note's basename.
func (m FieldMap) Record(fields map[string]any, source, fallbackName string) *Record {
	rec := &Record{
		ID:          m.String(fields, KeyID),
		Name:        m.String(fields, KeyName),
		Pronouns:    m.String(fields, KeyPronouns),
		Occupation:  m.String(fields, KeyOccupation),
		BirthDate:   m.String(fields, KeyBorn),
		DeathDate:   m.String(fields, KeyDied),
		BirthPlace:  m.String(fields, KeyBirthPlace),
		DeathPlace:  m.String(fields, KeyDeathPlace),
		Collection:  m.String(fields, KeyCollection),
		FatherID:    m.String(fields, KeyFatherID),
		MotherID:    m.String(fields, KeyMotherID),
		SpouseIDs:   m.List(fields, KeySpouseID),
		ChildrenIDs: m.List(fields, KeyChildrenID),
		Father:      m.String(fields, KeyFather),
		Mother:      m.String(fields, KeyMother),
		Spouses:     m.List(fields, KeySpouse),
		Children:    m.List(fields, KeyChildren),
		Source:      source,
	}
	if rec.Name == "" {
		rec.Name = fallbackName
	}
	sex := m.String(fields, KeySex)
	if sex == "" {
		sex = m.String(fields, KeyGender)
	}
	rec.Sex = ParseSex(sex)
	return rec
}

// Fields is the inverse of Record for a new note. Empty values are omitted.
func (m FieldMap) Fields(rec *Record, personType string) map[string]any {
	if personType == "" {
		personType = DefaultType
	}
	fields := map[string]any{}
	m.Set(fields, KeyID, rec.ID)
	m.Set(fields, KeyType, personType)
	m.Set(fields, KeyName, rec.Name)
	if rec.Sex.Known() {
		m.Set(fields, KeySex, string(rec.Sex))
	}
	m.Set(fields, KeyPronouns, rec.Pronouns)
	m.Set(fields, KeyOccupation, rec.Occupation)
	m.Set(fields, KeyBorn, rec.BirthDate)
	m.Set(fields, KeyDied, rec.DeathDate)
	m.Set(fields, KeyBirthPlace, rec.BirthPlace)
	m.Set(fields, KeyDeathPlace, rec.DeathPlace)
	m.Set(fields, KeyCollection, rec.Collection)
	m.Set(fields, KeyFather, rec.Father)
	m.Set(fields, KeyFatherID, rec.FatherID)
	m.Set(fields, KeyMother, rec.Mother)
	m.Set(fields, KeyMotherID, rec.MotherID)
	m.Set(fields, KeySpouse, rec.Spouses)
	m.Set(fields, KeySpouseID, rec.SpouseIDs)
	m.Set(fields, KeyChildren, rec.Children)
	m.Set(fields, KeyChildrenID, rec.ChildrenIDs)
	return fields
}

// Order returns KeyOrder translated through the aliases.
func (m FieldMap) Order() []string {
	order := make([]string, len(KeyOrder))
	for i, key := range KeyOrder {
		order[i] = m.Key(key)
	}
	return order
}

func scalar(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		if len(v) == 1 {
			return scalar(v[0])
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
