package gedcom

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"chartedroots/internal/person"
)

const (
	ExportSource  = "chartedroots"
	ExportVersion = "5.5.1"
)

type writer struct {
	w   *bufio.Writer
	err error
}

// line writes one tag. Values spanning several lines continue on CONT
// lines one level down.
func (w *writer) line(level int, tag, value string) {
	parts := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	w.single(level, tag, parts[0])
	for _, part := range parts[1:] {
		w.single(level+1, "CONT", part)
	}
}

func (w *writer) single(level int, tag, value string) {
	if w.err != nil {
		return
	}
	if value == "" {
		_, w.err = fmt.Fprintf(w.w, "%d %s\n", level, tag)
		return
	}
	_, w.err = fmt.Fprintf(w.w, "%d %s %s\n", level, tag, value)
}

func (w *writer) record(xref, tag string) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, "0 %s %s\n", xref, tag)
}

func (w *writer) event(tag, date, place string) {
	date = FormatDate(date)
	if date == "" && place == "" {
		return
	}
	w.line(1, tag, "")
	if date != "" {
		w.line(2, "DATE", date)
	}
	if place != "" {
		w.line(2, "PLAC", place)
	}
}

// Write serialises doc as GEDCOM 5.5.1 in UTF-8.
func Write(out io.Writer, doc *Document) error {
	w := &writer{w: bufio.NewWriter(out)}
	w.line(0, "HEAD", "")
	w.line(1, "SOUR", ExportSource)
	w.line(1, "GEDC", "")
	w.line(2, "VERS", ExportVersion)
	w.line(2, "FORM", "LINEAGE-LINKED")
	w.line(1, "CHAR", "UTF-8")

	for _, ind := range doc.Individuals {
		w.record(ind.Xref, "INDI")
		if name := formatName(ind); name != "" {
			w.line(1, "NAME", name)
		}
		if ind.Sex != "" {
			w.line(1, "SEX", ind.Sex)
		}
		w.event("BIRT", ind.BirthDate, ind.BirthPlace)
		w.event("DEAT", ind.DeathDate, ind.DeathPlace)
		if ind.Occupation != "" {
			w.line(1, "OCCU", ind.Occupation)
		}
		for _, xref := range ind.FamilyChild {
			w.line(1, "FAMC", xref)
		}
		for _, xref := range ind.FamilySpouse {
			w.line(1, "FAMS", xref)
		}
	}

	for _, fam := range doc.Families {
		w.record(fam.Xref, "FAM")
		if fam.Husband != "" {
			w.line(1, "HUSB", fam.Husband)
		}
		if fam.Wife != "" {
			w.line(1, "WIFE", fam.Wife)
		}
		for _, xref := range fam.Children {
			w.line(1, "CHIL", xref)
		}
		w.event("MARR", fam.MarriageDate, fam.MarriagePlace)
	}

	w.line(0, "TRLR", "")
	if w.err != nil {
		return fmt.Errorf("writing gedcom: %w", w.err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("writing gedcom: %w", err)
	}
	return nil
}

func formatName(ind *Individual) string {
	if ind.Surname == "" {
		if ind.GivenName != "" {
			return ind.GivenName
		}
		return ind.Name
	}
	if ind.GivenName == "" {
		return "/" + ind.Surname + "/"
	}
	return ind.GivenName + " /" + ind.Surname + "/"
}

// SplitName treats the last word of a display name as the surname.
func SplitName(name string) (given, surname string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

func sexLetter(s person.Sex) string {
	switch s {
	case person.SexMale:
		return "M"
	case person.SexFemale:
		return "F"
	default:
		return "U"
	}
}

// FromRecords builds an export document. Individuals get xrefs @I1@, @I2@...
// in input order. Families are derived from each person's parents and from
// spouse pairs; references to people outside the input are dropped.
func FromRecords(people []*person.Record) *Document {
	doc := &Document{Header: Header{Source: ExportSource, Version: ExportVersion, Charset: "UTF-8"}}
	xrefs := make(map[string]string, len(people))
	records := make(map[string]*person.Record, len(people))
	for i, p := range people {
		if p == nil || p.ID == "" {
			continue
		}
		if _, dup := xrefs[p.ID]; dup {
			continue
		}
		xref := fmt.Sprintf("@I%d@", i+1)
		xrefs[p.ID] = xref
		records[xref] = p
		given, surname := SplitName(p.Name)
		doc.Individuals = append(doc.Individuals, &Individual{
			Xref:       xref,
			GivenName:  given,
			Surname:    surname,
			Name:       strings.Join(strings.Fields(p.Name), " "),
			Sex:        sexLetter(p.Sex),
			BirthDate:  p.BirthDate,
			BirthPlace: p.BirthPlace,
			DeathDate:  p.DeathDate,
			DeathPlace: p.DeathPlace,
			Occupation: p.Occupation,
		})
	}
	doc.index()

	families := map[string]*Family{}
	family := func(husband, wife string) *Family {
		key := husband + "|" + wife
		if fam, ok := families[key]; ok {
			return fam
		}
		fam := &Family{Xref: fmt.Sprintf("@F%d@", len(doc.Families)+1), Husband: husband, Wife: wife}
		families[key] = fam
		doc.Families = append(doc.Families, fam)
		return fam
	}

	for _, ind := range doc.Individuals {
		p := records[ind.Xref]
		father, mother := xrefs[p.FatherID], xrefs[p.MotherID]
		if father != "" || mother != "" {
			fam := family(father, mother)
			fam.Children = appendUnique(fam.Children, ind.Xref)
		}
		for _, spouseID := range p.SpouseIDs {
			spouse, ok := xrefs[spouseID]
			if !ok || spouse == ind.Xref {
				continue
			}
			husband, wife := ind.Xref, spouse
			if p.Sex == person.SexFemale || records[spouse].Sex == person.SexMale {
				husband, wife = spouse, ind.Xref
			}
			if _, ok := families[wife+"|"+husband]; ok {
				continue
			}
			family(husband, wife)
		}
	}

	for _, fam := range doc.Families {
		sort.SliceStable(fam.Children, func(i, j int) bool {
			return birthLess(records[fam.Children[i]], records[fam.Children[j]])
		})
	}
	doc.index()
	doc.link()
	return doc
}

func birthLess(a, b *person.Record) bool {
	ya, okA := a.BirthYear()
	yb, okB := b.BirthYear()
	if okA != okB {
		return okA
	}
	if okA && ya != yb {
		return ya < yb
	}
	if a.BirthDate != b.BirthDate {
		return a.BirthDate < b.BirthDate
	}
	return a.Name < b.Name
}
