package ingest

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"chartedroots/internal/gedcom"
	"chartedroots/internal/person"
)

type mockCreator struct {
	notes    map[string]map[string]any
	bodies   map[string]string
	existing map[string]bool
	fail     map[string]bool
}

func newMockCreator() *mockCreator {
	return &mockCreator{
		notes:    map[string]map[string]any{},
		bodies:   map[string]string{},
		existing: map[string]bool{},
		fail:     map[string]bool{},
	}
}

func (m *mockCreator) CreateRecord(ctx context.Context, h string, fields map[string]any, body string) error {
	if m.fail[h] {
		return errors.New("disk full")
	}
	m.notes[h] = fields
	m.bodies[h] = body
	return nil
}

func (m *mockCreator) Exists(ctx context.Context, h string) (bool, error) {
	return m.existing[h], nil
}

func loadFixture(t *testing.T) *gedcom.Document {
	t.Helper()
	f, err := os.Open("testdata/import.ged")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	doc, err := gedcom.Parse(f)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestImportGEDCOM(t *testing.T) {
	creator := newMockCreator()
	result, err := ImportGEDCOM(context.Background(), loadFixture(t), creator, quietLogger(), ImportOptions{Folder: "People", Collection: "Hart family"})
	if err != nil {
		t.Fatalf("ImportGEDCOM: %v", err)
	}
	if result.PeopleCreated != 3 {
		t.Fatalf("expected 3 people, got %d", result.PeopleCreated)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected the unnamed individual to be skipped, got %d", result.Skipped)
	}
	if result.RelationshipsLinked != 3 {
		t.Fatalf("expected 3 relationships, got %d", result.RelationshipsLinked)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	wantPaths := []string{"People/Thomas Hart.md", "People/Ann Lee.md", "People/Eliza Hart.md"}
	if !reflect.DeepEqual(result.Paths, wantPaths) {
		t.Fatalf("paths = %v, want %v", result.Paths, wantPaths)
	}

	thomas := creator.notes["People/Thomas Hart.md"]
	ann := creator.notes["People/Ann Lee.md"]
	eliza := creator.notes["People/Eliza Hart.md"]

	t.Run("fields", func(t *testing.T) {
		if !person.ValidID(thomas[person.KeyID].(string)) {
			t.Fatalf("invalid id %v", thomas[person.KeyID])
		}
		checks := map[string]any{
			person.KeyType:       "person",
			person.KeyName:       "Thomas Hart",
			person.KeySex:        "male",
			person.KeyBorn:       "1820-02-03",
			person.KeyBirthPlace: "Bristol, England",
			person.KeyOccupation: "Cooper",
			person.KeyCollection: "Hart family",
			person.KeyGedcomXref: "@I1@",
		}
		for key, want := range checks {
			if got := thomas[key]; got != want {
				t.Errorf("%s = %v, want %v", key, got, want)
			}
		}
		if body := creator.bodies["People/Thomas Hart.md"]; !strings.Contains(body, "# Thomas Hart") {
			t.Errorf("unexpected body %q", body)
		}
	})

	t.Run("dual storage", func(t *testing.T) {
		if eliza[person.KeyFatherID] != thomas[person.KeyID] {
			t.Fatalf("father_id = %v, want %v", eliza[person.KeyFatherID], thomas[person.KeyID])
		}
		if eliza[person.KeyFather] != "[[Thomas Hart]]" {
			t.Fatalf("father = %v", eliza[person.KeyFather])
		}
		if eliza[person.KeyMotherID] != ann[person.KeyID] {
			t.Fatalf("mother_id = %v, want %v", eliza[person.KeyMotherID], ann[person.KeyID])
		}
		spouses := thomas[person.KeySpouseID].([]string)
		if !reflect.DeepEqual(spouses, []string{ann[person.KeyID].(string)}) {
			t.Fatalf("spouse_id = %v", spouses)
		}
		if links := thomas[person.KeySpouse].([]string); !reflect.DeepEqual(links, []string{"[[Ann Lee]]"}) {
			t.Fatalf("spouse = %v", links)
		}
		children := ann[person.KeyChildrenID].([]string)
		if !reflect.DeepEqual(children, []string{eliza[person.KeyID].(string)}) {
			t.Fatalf("children_id = %v", children)
		}
	})
}

func TestImportGEDCOM_PathCollision(t *testing.T) {
	creator := newMockCreator()
	creator.existing["People/Thomas Hart.md"] = true

	result, err := ImportGEDCOM(context.Background(), loadFixture(t), creator, quietLogger(), ImportOptions{Folder: "People/"})
	if err != nil {
		t.Fatalf("ImportGEDCOM: %v", err)
	}
	if result.Paths[0] != "People/Thomas Hart (2).md" {
		t.Fatalf("expected collision suffix, got %s", result.Paths[0])
	}
	eliza := creator.notes["People/Eliza Hart.md"]
	if eliza[person.KeyFather] != "[[People/Thomas Hart (2)|Thomas Hart]]" {
		t.Fatalf("father link = %v", eliza[person.KeyFather])
	}
}

func TestImportGEDCOM_DryRun(t *testing.T) {
	creator := newMockCreator()
	result, err := ImportGEDCOM(context.Background(), loadFixture(t), creator, quietLogger(), ImportOptions{DryRun: true})
	if err != nil {
		t.Fatalf("ImportGEDCOM: %v", err)
	}
	if len(creator.notes) != 0 {
		t.Fatalf("dry run wrote %d notes", len(creator.notes))
	}
	if result.PeopleCreated != 3 || result.Paths[0] != "Thomas Hart.md" {
		t.Fatalf("unexpected dry run result: %+v", result)
	}
}

func TestImportGEDCOM_ContinuesOnError(t *testing.T) {
	creator := newMockCreator()
	creator.fail["Ann Lee.md"] = true

	result, err := ImportGEDCOM(context.Background(), loadFixture(t), creator, quietLogger(), ImportOptions{})
	if err != nil {
		t.Fatalf("ImportGEDCOM: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	if result.PeopleCreated != 2 {
		t.Fatalf("expected 2 created, got %d", result.PeopleCreated)
	}
}

func TestImportGEDCOM_NilDocument(t *testing.T) {
	if _, err := ImportGEDCOM(context.Background(), nil, newMockCreator(), quietLogger(), ImportOptions{}); err == nil {
		t.Fatal("expected error for nil document")
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Thomas Hart", "Thomas Hart"},
		{"Mary  O'Brien", "Mary O'Brien"},
		{"John/Jack Smith", "John-Jack Smith"},
		{"Who? [unknown]", "Who (unknown)"},
		{"...", "Unnamed"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := fileName(tt.in); got != tt.want {
				t.Fatalf("fileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
