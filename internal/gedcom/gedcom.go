// Package gedcom reads and writes the GEDCOM 5.5 interchange format.
package gedcom

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"chartedroots/internal/metrics"
)

type Header struct {
	Source  string
	Version string
	Charset string
}

type Individual struct {
	Xref       string
	GivenName  string
	Surname    string
	Name       string
	Sex        string
	BirthDate  string
	BirthPlace string
	DeathDate  string
	DeathPlace string
	Occupation string

	FatherXref  string
	MotherXref  string
	SpouseXrefs []string

	FamilyChild  []string
	FamilySpouse []string
}

type Family struct {
	Xref          string
	Husband       string
	Wife          string
	Children      []string
	MarriageDate  string
	MarriagePlace string
}

type Document struct {
	Header      Header
	Individuals []*Individual
	Families    []*Family

	individuals map[string]*Individual
	families    map[string]*Family
}

func (d *Document) Individual(xref string) (*Individual, bool) {
	if d.individuals == nil {
		d.index()
	}
	ind, ok := d.individuals[xref]
	return ind, ok
}

func (d *Document) Family(xref string) (*Family, bool) {
	if d.families == nil {
		d.index()
	}
	fam, ok := d.families[xref]
	return fam, ok
}

func (d *Document) index() {
	d.individuals = make(map[string]*Individual, len(d.Individuals))
	for _, ind := range d.Individuals {
		d.individuals[ind.Xref] = ind
	}
	d.families = make(map[string]*Family, len(d.Families))
	for _, fam := range d.Families {
		d.families[fam.Xref] = fam
	}
}

// ParseError reports a line that does not follow the GEDCOM line grammar.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gedcom line %d: malformed line %q", e.Line, e.Text)
}

var linePattern = regexp.MustCompile(`^(\d+)\s+(@[^@]+@\s+)?(\S+)(\s+(.*))?$`)

type line struct {
	level int
	xref  string
	tag   string
	value string
}

func parseLine(text string) (line, bool) {
	m := linePattern.FindStringSubmatch(text)
	if m == nil {
		return line{}, false
	}
	level, err := strconv.Atoi(m[1])
	if err != nil {
		return line{}, false
	}
	return line{
		level: level,
		xref:  strings.TrimSpace(m[2]),
		tag:   strings.ToUpper(m[3]),
		value: strings.TrimSpace(m[5]),
	}, true
}

// scan feeds every non-blank line to fn with its 1-based line number.
func scan(r io.Reader, fn func(n int, text string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimRight(sc.Text(), "\r")
		if n == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := fn(n, text); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading gedcom: %w", err)
	}
	return nil
}

type recordKind int

const (
	kindNone recordKind = iota
	kindHeader
	kindIndividual
	kindFamily
)

type parseState struct {
	doc  *Document
	kind recordKind
	ind  *Individual
	fam  *Family
	// context holds the level-1 and level-2 tags of the current record.
	context [2]string

	// text is the value the next CONT or CONC line extends.
	text      *string
	textLevel int
}

func (st *parseState) extend(field *string, level int) {
	st.text, st.textLevel = field, level
}

// continueText applies a CONT (new line) or CONC (joined) line to the value
// of the line above it.
func (st *parseState) continueText(l line) {
	if st.text == nil || l.level != st.textLevel+1 {
		return
	}
	if l.tag == "CONT" {
		*st.text += "\n" + l.value
		return
	}
	*st.text += l.value
}

// Parse reads a whole GEDCOM stream in one pass, then links families into
// the individuals' parent and spouse references.
func Parse(r io.Reader) (*Document, error) {
	st := &parseState{doc: &Document{}}
	lines := 0
	err := scan(r, func(n int, text string) error {
		lines++
		l, ok := parseLine(text)
		if !ok {
			return &ParseError{Line: n, Text: text}
		}
		st.handle(l)
		return nil
	})
	metrics.GedcomLinesParsed.Add(float64(lines))
	if err != nil {
		return nil, err
	}
	st.doc.index()
	st.doc.link()
	return st.doc, nil
}

func (st *parseState) handle(l line) {
	if l.tag == "CONT" || l.tag == "CONC" {
		st.continueText(l)
		return
	}
	st.text = nil

	switch l.level {
	case 0:
		st.context = [2]string{}
		st.ind, st.fam = nil, nil
		switch {
		case l.tag == "HEAD":
			st.kind = kindHeader
		case l.tag == "INDI" && l.xref != "":
			st.kind = kindIndividual
			st.ind = &Individual{Xref: l.xref}
			st.doc.Individuals = append(st.doc.Individuals, st.ind)
		case l.tag == "FAM" && l.xref != "":
			st.kind = kindFamily
			st.fam = &Family{Xref: l.xref}
			st.doc.Families = append(st.doc.Families, st.fam)
		default:
			st.kind = kindNone
		}
		return
	case 1:
		st.context = [2]string{l.tag, ""}
	case 2:
		st.context[1] = l.tag
	}

	switch st.kind {
	case kindHeader:
		st.header(l)
	case kindIndividual:
		st.individual(l)
	case kindFamily:
		st.family(l)
	}
}

func (st *parseState) header(l line) {
	h := &st.doc.Header
	switch {
	case l.level == 1 && l.tag == "SOUR":
		h.Source = l.value
	case l.level == 1 && l.tag == "CHAR":
		h.Charset = l.value
	case l.level == 2 && l.tag == "VERS" && st.context[0] == "GEDC":
		h.Version = l.value
	}
}

func (st *parseState) individual(l line) {
	ind := st.ind
	if l.level == 1 {
		switch l.tag {
		case "NAME":
			if ind.Name == "" {
				ind.GivenName, ind.Surname, ind.Name = ParseName(l.value)
				st.extend(&ind.Name, l.level)
			}
		case "SEX":
			if l.value != "" {
				ind.Sex = strings.ToUpper(l.value[:1])
			}
		case "OCCU":
			if ind.Occupation == "" {
				ind.Occupation = l.value
				st.extend(&ind.Occupation, l.level)
			}
		case "FAMC":
			ind.FamilyChild = appendUnique(ind.FamilyChild, l.value)
		case "FAMS":
			ind.FamilySpouse = appendUnique(ind.FamilySpouse, l.value)
		}
		return
	}
	if l.level != 2 {
		return
	}

	switch parent := st.context[0]; {
	case parent == "NAME" && l.tag == "GIVN" && ind.GivenName == "":
		ind.GivenName = l.value
	case parent == "NAME" && l.tag == "SURN" && ind.Surname == "":
		ind.Surname = l.value
	case parent == "BIRT" && l.tag == "DATE":
		ind.BirthDate, _ = NormalizeDate(l.value)
	case parent == "BIRT" && l.tag == "PLAC":
		ind.BirthPlace = l.value
		st.extend(&ind.BirthPlace, l.level)
	case parent == "DEAT" && l.tag == "DATE":
		ind.DeathDate, _ = NormalizeDate(l.value)
	case parent == "DEAT" && l.tag == "PLAC":
		ind.DeathPlace = l.value
		st.extend(&ind.DeathPlace, l.level)
	}
}

func (st *parseState) family(l line) {
	fam := st.fam
	if l.level == 1 {
		switch l.tag {
		case "HUSB":
			fam.Husband = l.value
		case "WIFE":
			fam.Wife = l.value
		case "CHIL":
			fam.Children = appendUnique(fam.Children, l.value)
		}
		return
	}
	if l.level == 2 && st.context[0] == "MARR" {
		switch l.tag {
		case "DATE":
			fam.MarriageDate, _ = NormalizeDate(l.value)
		case "PLAC":
			fam.MarriagePlace = l.value
			st.extend(&fam.MarriagePlace, l.level)
		}
	}
}

// link resolves family membership into father, mother and spouse xrefs.
// References to individuals that are not in the document are dropped.
func (d *Document) link() {
	for _, fam := range d.Families {
		husband, hasHusband := d.individuals[fam.Husband]
		wife, hasWife := d.individuals[fam.Wife]
		if hasHusband {
			husband.FamilySpouse = appendUnique(husband.FamilySpouse, fam.Xref)
		}
		if hasWife {
			wife.FamilySpouse = appendUnique(wife.FamilySpouse, fam.Xref)
		}
		if hasHusband && hasWife && husband != wife {
			husband.SpouseXrefs = appendUnique(husband.SpouseXrefs, wife.Xref)
			wife.SpouseXrefs = appendUnique(wife.SpouseXrefs, husband.Xref)
		}
		for _, xref := range fam.Children {
			child, ok := d.individuals[xref]
			if !ok {
				continue
			}
			child.FamilyChild = appendUnique(child.FamilyChild, fam.Xref)
			d.linkChild(child, fam)
		}
	}

	// Children that name a family without being listed in it.
	for _, ind := range d.Individuals {
		for _, xref := range ind.FamilyChild {
			if fam, ok := d.families[xref]; ok {
				d.linkChild(ind, fam)
			}
		}
	}
}

func (d *Document) linkChild(child *Individual, fam *Family) {
	if _, ok := d.individuals[fam.Husband]; ok && child.FatherXref == "" && fam.Husband != child.Xref {
		child.FatherXref = fam.Husband
	}
	if _, ok := d.individuals[fam.Wife]; ok && child.MotherXref == "" && fam.Wife != child.Xref {
		child.MotherXref = fam.Wife
	}
}

// ParseName splits a GEDCOM personal name such as "John /Doe/ Jr." into the
// given name, the surname and a display name.
func ParseName(value string) (given, surname, display string) {
	value = strings.TrimSpace(value)
	start := strings.Index(value, "/")
	if start == -1 {
		given = strings.Join(strings.Fields(value), " ")
		return given, "", given
	}
	given = strings.TrimSpace(value[:start])
	rest := value[start+1:]
	suffix := ""
	if end := strings.Index(rest, "/"); end != -1 {
		surname = strings.TrimSpace(rest[:end])
		suffix = strings.TrimSpace(rest[end+1:])
	} else {
		surname = strings.TrimSpace(rest)
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{given, surname, suffix} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return given, surname, strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func appendUnique(values []string, value string) []string {
	if value == "" {
		return values
	}
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
