package person

import (
	"reflect"
	"testing"
)

func TestNewID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ValidID(id) {
			t.Fatalf("generated invalid id %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 45 {
		t.Fatalf("expected mostly unique ids, got %d distinct", len(seen))
	}
}

func TestValidID(t *testing.T) {
	tests := map[string]bool{
		"abc-123-def-456":  true,
		"ABC-123-def-456":  false,
		"abc-12-def-456":   false,
		"abc-123-def-4567": false,
		"":                 false,
	}
	for id, want := range tests {
		if got := ValidID(id); got != want {
			t.Fatalf("ValidID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestParseSex(t *testing.T) {
	tests := map[string]Sex{
		"M":       SexMale,
		"female":  SexFemale,
		" F ":     SexFemale,
		"o":       SexOther,
		"U":       SexUnknown,
		"":        SexUnknown,
		"unknown": SexUnknown,
	}
	for in, want := range tests {
		if got := ParseSex(in); got != want {
			t.Fatalf("ParseSex(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLinks(t *testing.T) {
	t.Run("format", func(t *testing.T) {
		tests := []struct {
			location, name, want string
		}{
			{"People/John Smith.md", "John Smith", "[[John Smith]]"},
			{"People/john-smith.md", "John Smith", "[[People/john-smith|John Smith]]"},
			{"", "John Smith", "[[John Smith]]"},
			{"Mary.md", "", "[[Mary]]"},
		}
		for _, tt := range tests {
			if got := FormatLink(tt.location, tt.name); got != tt.want {
				t.Fatalf("FormatLink(%q, %q) = %q, want %q", tt.location, tt.name, got, tt.want)
			}
		}
	})

	t.Run("parse", func(t *testing.T) {
		target, alias, ok := ParseLink("[[People/a|Ann]]")
		if !ok || target != "People/a" || alias != "Ann" {
			t.Fatalf("unexpected parse: %q %q %v", target, alias, ok)
		}
		if _, _, ok := ParseLink("Ann"); ok {
			t.Fatalf("expected plain text not to parse")
		}
	})

	t.Run("name", func(t *testing.T) {
		tests := map[string]string{
			"[[People/a|Ann]]":   "Ann",
			"[[People/Ann Lee]]": "Ann Lee",
			"[[Ann Lee.md]]":     "Ann Lee",
			" plain text ":       "plain text",
		}
		for in, want := range tests {
			if got := LinkName(in); got != want {
				t.Fatalf("LinkName(%q) = %q, want %q", in, got, want)
			}
		}
	})
}

func TestYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1950-03-15", 1950, true},
		{"1950", 1950, true},
		{"ABT 1842", 1842, true},
		{"BET 1882 AND 1885", 1882, true},
		{"12345", 0, false},
		{"", 0, false},
		{"spring", 0, false},
	}
	for _, tt := range tests {
		got, ok := Year(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("Year(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFieldMapRecord(t *testing.T) {
	m := NewFieldMap(map[string]string{KeyBorn: "birth_date"})
	fields := map[string]any{
		"cr_id":       "aaa-111-bbb-222",
		"cr_type":     "person",
		"gender":      "F",
		"birth_date":  "1901",
		"born":        "ignored",
		"father_id":   "ccc-333-ddd-444",
		"father":      "[[Tom]]",
		"spouse_id":   []any{"eee-555-fff-666"},
		"spouse":      "[[Bob]]",
		"children_id": []any{},
		"occupation":  1,
	}
	rec := m.Record(fields, "People/Ann.md", "Ann")
	if rec.Name != "Ann" {
		t.Fatalf("expected fallback name, got %q", rec.Name)
	}
	if rec.Sex != SexFemale {
		t.Fatalf("expected gender alias to map to sex, got %q", rec.Sex)
	}
	if rec.BirthDate != "1901" {
		t.Fatalf("expected aliased birth date, got %q", rec.BirthDate)
	}
	if rec.FatherID != "ccc-333-ddd-444" || rec.Father != "[[Tom]]" {
		t.Fatalf("unexpected father: %q %q", rec.FatherID, rec.Father)
	}
	if !reflect.DeepEqual(rec.SpouseIDs, []string{"eee-555-fff-666"}) {
		t.Fatalf("unexpected spouse ids: %#v", rec.SpouseIDs)
	}
	if !reflect.DeepEqual(rec.Spouses, []string{"[[Bob]]"}) {
		t.Fatalf("expected scalar spouse to read as list, got %#v", rec.Spouses)
	}
	if rec.ChildrenIDs != nil {
		t.Fatalf("expected no children, got %#v", rec.ChildrenIDs)
	}
	if rec.Occupation != "1" {
		t.Fatalf("expected numeric occupation to stringify, got %q", rec.Occupation)
	}
	if rec.Source != "People/Ann.md" {
		t.Fatalf("unexpected source %q", rec.Source)
	}
}

func TestFieldMapIsPerson(t *testing.T) {
	m := NewFieldMap(nil)
	tests := []struct {
		name   string
		fields map[string]any
		want   bool
	}{
		{"typed", map[string]any{"cr_type": "person"}, true},
		{"other type", map[string]any{"cr_type": "place", "cr_id": "aaa-111-bbb-222"}, false},
		{"legacy id only", map[string]any{"cr_id": "aaa-111-bbb-222"}, true},
		{"plain note", map[string]any{"title": "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.IsPerson(tt.fields, ""); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFieldMapFields(t *testing.T) {
	m := NewFieldMap(map[string]string{KeyDied: "death_date"})
	rec := &Record{
		ID:        "aaa-111-bbb-222",
		Name:      "Ann",
		Sex:       SexUnknown,
		DeathDate: "1970",
		SpouseIDs: []string{"ccc-333-ddd-444"},
		Spouses:   []string{"[[Bob]]"},
	}
	fields := m.Fields(rec, "")
	if fields["cr_type"] != "person" {
		t.Fatalf("expected default type, got %#v", fields["cr_type"])
	}
	if _, ok := fields["sex"]; ok {
		t.Fatalf("expected unknown sex to be omitted")
	}
	if fields["death_date"] != "1970" {
		t.Fatalf("expected aliased key, got %#v", fields)
	}
	if _, ok := fields["father_id"]; ok {
		t.Fatalf("expected empty father to be omitted")
	}
	back := m.Record(fields, "", "")
	if back.ID != rec.ID || back.DeathDate != "1970" || !reflect.DeepEqual(back.SpouseIDs, rec.SpouseIDs) {
		t.Fatalf("unexpected round trip: %#v", back)
	}
}
