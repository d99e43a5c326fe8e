package gedcom

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"chartedroots/internal/person"
)

const sample = "0 HEAD\n1 SOUR Test\n0 @I1@ INDI\n1 NAME John /Doe/\n1 SEX M\n1 BIRT\n2 DATE 15 MAR 1950\n0 TRLR"

func TestParseSample(t *testing.T) {
	doc, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Individuals) != 1 {
		t.Fatalf("expected one individual, got %d", len(doc.Individuals))
	}
	ind := doc.Individuals[0]
	if ind.Name != "John Doe" || ind.GivenName != "John" || ind.Surname != "Doe" {
		t.Fatalf("unexpected name: %+v", ind)
	}
	if ind.Sex != "M" {
		t.Fatalf("expected sex M, got %q", ind.Sex)
	}
	if ind.BirthDate != "1950-03-15" {
		t.Fatalf("expected normalized birth date, got %q", ind.BirthDate)
	}
	if doc.Header.Source != "Test" {
		t.Fatalf("expected header source Test, got %q", doc.Header.Source)
	}
}

func TestParseLineEndings(t *testing.T) {
	input := "\ufeff0 HEAD\r\n\r\n1 SOUR Test\r\n0 @I1@ INDI\r\n1 NAME Jane /Roe/\r\n   \r\n0 TRLR\r\n"
	doc, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Individuals) != 1 || doc.Individuals[0].Name != "Jane Roe" {
		t.Fatalf("unexpected individuals: %+v", doc.Individuals)
	}
}

func TestParseError(t *testing.T) {
	input := "0 HEAD\n1 SOUR Test\nnot a gedcom line\n0 TRLR\n"
	_, err := Parse(strings.NewReader(input))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Line != 3 || perr.Text != "not a gedcom line" {
		t.Fatalf("unexpected parse error: %+v", perr)
	}
}

func TestParseFamilies(t *testing.T) {
	f, err := os.Open("testdata/family.ged")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Header.Version != "5.5.1" {
		t.Fatalf("expected GEDC version, not the source version, got %q", doc.Header.Version)
	}
	if len(doc.Individuals) != 4 || len(doc.Families) != 2 {
		t.Fatalf("expected 4 individuals and 2 families, got %d and %d", len(doc.Individuals), len(doc.Families))
	}

	thomas, _ := doc.Individual("@I1@")
	if thomas.BirthDate != "1820-02-03" || thomas.BirthPlace != "Bristol, England" {
		t.Fatalf("unexpected birth: %q %q", thomas.BirthDate, thomas.BirthPlace)
	}
	if thomas.DeathDate != "ABT 1890" || thomas.DeathPlace != "Boston, Massachusetts" {
		t.Fatalf("unexpected death: %q %q", thomas.DeathDate, thomas.DeathPlace)
	}
	if thomas.Occupation != "Cooper" {
		t.Fatalf("unexpected occupation %q", thomas.Occupation)
	}
	if len(thomas.SpouseXrefs) != 1 || thomas.SpouseXrefs[0] != "@I2@" {
		t.Fatalf("expected a single deduplicated spouse, got %v", thomas.SpouseXrefs)
	}

	ann, _ := doc.Individual("@I2@")
	if ann.BirthDate != "1824-03" {
		t.Fatalf("expected month precision, got %q", ann.BirthDate)
	}
	if len(ann.SpouseXrefs) != 1 || ann.SpouseXrefs[0] != "@I1@" {
		t.Fatalf("expected symmetric spouse, got %v", ann.SpouseXrefs)
	}

	eliza, _ := doc.Individual("@I3@")
	if eliza.FatherXref != "@I1@" || eliza.MotherXref != "@I2@" {
		t.Fatalf("unexpected parents: %q %q", eliza.FatherXref, eliza.MotherXref)
	}

	// Samuel only names the family through FAMC.
	samuel, _ := doc.Individual("@I4@")
	if samuel.FatherXref != "@I1@" || samuel.MotherXref != "@I2@" {
		t.Fatalf("expected parents from FAMC, got %q %q", samuel.FatherXref, samuel.MotherXref)
	}
	if samuel.BirthDate != "BET 1852 AND 1853" {
		t.Fatalf("expected range passed through, got %q", samuel.BirthDate)
	}

	fam, _ := doc.Family("@F1@")
	if len(fam.Children) != 1 {
		t.Fatalf("expected deduplicated children, got %v", fam.Children)
	}
	if fam.MarriageDate != "1846-06-12" || fam.MarriagePlace != "Bristol, England" {
		t.Fatalf("unexpected marriage: %q %q", fam.MarriageDate, fam.MarriagePlace)
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		in                      string
		given, surname, display string
	}{
		{"John /Doe/", "John", "Doe", "John Doe"},
		{"John Paul /Doe/ Jr.", "John Paul", "Doe", "John Paul Doe Jr."},
		{"/Doe/", "", "Doe", "Doe"},
		{"Plato", "Plato", "", "Plato"},
		{"Mary /Smith", "Mary", "Smith", "Mary Smith"},
	}
	for _, tt := range tests {
		given, surname, display := ParseName(tt.in)
		if given != tt.given || surname != tt.surname || display != tt.display {
			t.Fatalf("ParseName(%q) = %q, %q, %q", tt.in, given, surname, display)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"15 MAR 1950", "1950-03-15", true},
		{"5 jan 1801", "1801-01-05", true},
		{"MAR 1950", "1950-03", true},
		{"1950", "1950", true},
		{"ABT 1950", "ABT 1950", true},
		{"bef 12 dec 1900", "BEF 1900-12-12", true},
		{"EST MAR 1950", "EST 1950-03", true},
		{"BET 1882 AND 1885", "BET 1882 AND 1885", true},
		{"bet jan 1882 and 1885", "BET JAN 1882 AND 1885", true},
		{"FROM 1900 TO 1910", "FROM 1900 TO 1910", true},
		{"1950-03-15", "1950-03-15", true},
		{"", "", false},
		{"sometime in spring", "", false},
		{"32 MAR 1950", "", false},
		{"31 FEB 1950", "", false},
		{"29 FEB 1900", "", false},
		{"29 FEB 1904", "1904-02-29", true},
		{"31 APR 1950", "", false},
		{"1950-02-30", "", false},
		{"1950-13", "", false},
		{"MARCH 1950", "", false},
		{"ABT", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDate(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("NormalizeDate(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatDate(t *testing.T) {
	tests := map[string]string{
		"1950-03-15":        "15 MAR 1950",
		"1801-01-05":        "5 JAN 1801",
		"1950-03":           "MAR 1950",
		"1950":              "1950",
		"ABT 1950-03":       "ABT MAR 1950",
		"BET 1882 AND 1885": "BET 1882 AND 1885",
		"3 feb 1820":        "3 FEB 1820",
		"1950-13":           "",
		"1950-02-31":        "",
		"spring":            "",
		"":                  "",
	}
	for in, want := range tests {
		if got := FormatDate(in); got != want {
			t.Fatalf("FormatDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		data, err := os.ReadFile("testdata/family.ged")
		if err != nil {
			t.Fatalf("read fixture: %v", err)
		}
		res := Validate(bytes.NewReader(data))
		if !res.Valid || len(res.Warnings) != 0 {
			t.Fatalf("expected clean result, got %+v", res)
		}
		if res.Individuals != 4 || res.Families != 2 || res.Version != "5.5.1" || res.Source != "Ancestry" {
			t.Fatalf("unexpected summary: %+v", res)
		}
	})

	t.Run("missing head", func(t *testing.T) {
		res := Validate(strings.NewReader("0 @I1@ INDI\n1 NAME A /B/\n0 TRLR\n"))
		if res.Valid {
			t.Fatalf("expected invalid result")
		}
	})

	t.Run("warnings only", func(t *testing.T) {
		res := Validate(strings.NewReader("0 HEAD\n1 GEDC\n2 VERS 7.0\n"))
		if !res.Valid {
			t.Fatalf("expected warnings not to block, got %v", res.Errors)
		}
		want := []string{"missing TRLR", "7.0", "no individuals"}
		if len(res.Warnings) != len(want) {
			t.Fatalf("expected %d warnings, got %v", len(want), res.Warnings)
		}
		for i, w := range want {
			if !strings.Contains(res.Warnings[i], w) {
				t.Fatalf("expected warning %d to mention %q, got %q", i, w, res.Warnings[i])
			}
		}
	})

	t.Run("malformed line", func(t *testing.T) {
		res := Validate(strings.NewReader("0 HEAD\n1 GEDC\n2 VERS 5.5\nbroken\n0 @I1@ INDI\n0 TRLR\n"))
		if res.Valid || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "line 4") {
			t.Fatalf("expected one error on line 4, got %v", res.Errors)
		}
		if res.Individuals != 1 {
			t.Fatalf("expected scan to continue past the bad line")
		}
	})
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, &Document{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "0 HEAD\n1 SOUR chartedroots\n1 GEDC\n2 VERS 5.5.1\n2 FORM LINEAGE-LINKED\n1 CHAR UTF-8\n0 TRLR\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestRoundTrip(t *testing.T) {
	people := []*person.Record{
		{ID: "tho-001-har-001", Name: "Thomas Hart", Sex: person.SexMale, BirthDate: "1820-02-03", BirthPlace: "Bristol", DeathDate: "ABT 1890", Occupation: "Cooper", SpouseIDs: []string{"ann-002-lee-002"}, ChildrenIDs: []string{"eli-003-har-003", "sam-004-har-004"}},
		{ID: "ann-002-lee-002", Name: "Ann Lee", Sex: person.SexFemale, BirthDate: "1824-03", SpouseIDs: []string{"tho-001-har-001"}},
		{ID: "sam-004-har-004", Name: "Samuel Hart", Sex: person.SexMale, BirthDate: "1855", FatherID: "tho-001-har-001", MotherID: "ann-002-lee-002"},
		{ID: "eli-003-har-003", Name: "Eliza Hart", Sex: person.SexFemale, BirthDate: "1850", DeathPlace: "Leeds", FatherID: "tho-001-har-001", MotherID: "ann-002-lee-002"},
		{ID: "pla-005-pla-005", Name: "Plato", Sex: person.SexUnknown, FatherID: "zzz-999-zzz-999"},
	}

	doc := FromRecords(people)
	if len(doc.Families) != 1 {
		t.Fatalf("expected parents and spouses to share one family, got %d", len(doc.Families))
	}
	fam := doc.Families[0]
	if fam.Husband != "@I1@" || fam.Wife != "@I2@" {
		t.Fatalf("unexpected couple: %q %q", fam.Husband, fam.Wife)
	}
	if len(fam.Children) != 2 || fam.Children[0] != "@I4@" || fam.Children[1] != "@I3@" {
		t.Fatalf("expected children ordered by birth, got %v", fam.Children)
	}

	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	parsed, err := Parse(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed.Individuals) != len(people) {
		t.Fatalf("expected %d individuals, got %d", len(people), len(parsed.Individuals))
	}

	for i, p := range people {
		got := parsed.Individuals[i]
		if got.Name != p.Name {
			t.Fatalf("expected name %q, got %q", p.Name, got.Name)
		}
		if person.ParseSex(got.Sex) != p.Sex {
			t.Fatalf("expected sex %q for %s, got %q", p.Sex, p.Name, got.Sex)
		}
		if got.BirthDate != p.BirthDate || got.DeathDate != p.DeathDate {
			t.Fatalf("expected dates %q/%q for %s, got %q/%q", p.BirthDate, p.DeathDate, p.Name, got.BirthDate, got.DeathDate)
		}
		if got.BirthPlace != p.BirthPlace || got.DeathPlace != p.DeathPlace || got.Occupation != p.Occupation {
			t.Fatalf("unexpected places or occupation for %s: %+v", p.Name, got)
		}
	}

	eliza := parsed.Individuals[3]
	if eliza.FatherXref != "@I1@" || eliza.MotherXref != "@I2@" {
		t.Fatalf("expected parents to survive, got %q %q", eliza.FatherXref, eliza.MotherXref)
	}
	thomas := parsed.Individuals[0]
	if len(thomas.SpouseXrefs) != 1 || thomas.SpouseXrefs[0] != "@I2@" {
		t.Fatalf("expected spouse to survive, got %v", thomas.SpouseXrefs)
	}
	if plato := parsed.Individuals[4]; plato.FatherXref != "" || len(plato.FamilyChild) != 0 {
		t.Fatalf("expected reference outside the export to be dropped, got %+v", plato)
	}
}

func TestRoundTripMultiLineValues(t *testing.T) {
	people := []*person.Record{
		{ID: "ann-002-lee-002", Name: "Ann Lee", Sex: person.SexFemale, BirthPlace: "Leeds\nYorkshire", Occupation: "Weaver\n\nMill hand"},
	}
	var buf bytes.Buffer
	if err := Write(&buf, FromRecords(people)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "2 PLAC Leeds\n3 CONT Yorkshire\n") {
		t.Fatalf("expected the place to continue on a CONT line:\n%s", buf.String())
	}

	parsed, err := Parse(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := parsed.Individuals[0]
	if got.BirthPlace != "Leeds\nYorkshire" {
		t.Fatalf("expected two-line place, got %q", got.BirthPlace)
	}
	if got.Occupation != "Weaver\n\nMill hand" {
		t.Fatalf("expected occupation with blank line, got %q", got.Occupation)
	}
}

func TestParseContinuationLines(t *testing.T) {
	input := "0 HEAD\n0 @I1@ INDI\n1 NAME Ann /Lee/\n1 OCCU Weaver and\n2 CONC  spinner\n1 BIRT\n2 PLAC Leeds\n3 CONT Yorkshire\n2 DATE 1820\n3 CONT ignored\n0 TRLR\n"
	doc, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ind := doc.Individuals[0]
	if ind.Occupation != "Weaver andspinner" {
		t.Fatalf("expected CONC to join without separator, got %q", ind.Occupation)
	}
	if ind.BirthPlace != "Leeds\nYorkshire" {
		t.Fatalf("expected CONT to add a line, got %q", ind.BirthPlace)
	}
	if ind.BirthDate != "1820" {
		t.Fatalf("expected continuation of a date to be ignored, got %q", ind.BirthDate)
	}
}
