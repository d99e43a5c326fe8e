package ingest

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chartedroots/internal/gedcom"
	"chartedroots/internal/person"
)

const maxPathAttempts = 1000

type planned struct {
	ind  *gedcom.Individual
	id   string
	path string
	name string
}

// ImportGEDCOM creates one note per named individual in doc. Every
// relationship is written in both the id field and the display link field.
// A failed note is recorded in ImportResult.Errors and the import continues.
func ImportGEDCOM(ctx context.Context, doc *gedcom.Document, creator Creator, log *logrus.Logger, opts ImportOptions) (*ImportResult, error) {
	if doc == nil {
		return nil, fmt.Errorf("import: nil document")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	folder := strings.Trim(path.Clean("/"+strings.TrimSpace(opts.Folder)), "/")

	result := &ImportResult{BatchID: uuid.New()}
	entry := log.WithField("batch_id", result.BatchID.String())

	plan := make(map[string]*planned, len(doc.Individuals))
	order := make([]*planned, 0, len(doc.Individuals))
	taken := make(map[string]struct{}, len(doc.Individuals))

	for _, ind := range doc.Individuals {
		name := displayName(ind)
		if name == "" {
			result.Skipped++
			entry.WithField("xref", ind.Xref).Debug("skipping individual without a name")
			continue
		}
		id, err := person.NewID()
		if err != nil {
			return nil, fmt.Errorf("generating id: %w", err)
		}
		h, err := notePath(ctx, creator, folder, name, taken)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("placing %s: %w", ind.Xref, err))
			continue
		}
		p := &planned{ind: ind, id: id, path: h, name: name}
		plan[ind.Xref] = p
		order = append(order, p)
	}

	children := make(map[string][]*planned)
	for _, p := range order {
		for _, parent := range []string{p.ind.FatherXref, p.ind.MotherXref} {
			if parent == "" {
				continue
			}
			children[parent] = append(children[parent], p)
		}
	}

	fm := person.NewFieldMap(opts.Aliases)
	linked := make(map[string]struct{})

	for _, p := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &person.Record{
			ID:         p.id,
			Name:       p.name,
			Sex:        person.ParseSex(p.ind.Sex),
			Occupation: p.ind.Occupation,
			BirthDate:  p.ind.BirthDate,
			DeathDate:  p.ind.DeathDate,
			BirthPlace: p.ind.BirthPlace,
			DeathPlace: p.ind.DeathPlace,
			Collection: opts.Collection,
		}
		if father, ok := plan[p.ind.FatherXref]; ok {
			rec.FatherID, rec.Father = father.id, person.FormatLink(father.path, father.name)
			linked[father.id+">"+p.id] = struct{}{}
		}
		if mother, ok := plan[p.ind.MotherXref]; ok {
			rec.MotherID, rec.Mother = mother.id, person.FormatLink(mother.path, mother.name)
			linked[mother.id+">"+p.id] = struct{}{}
		}
		for _, xref := range p.ind.SpouseXrefs {
			spouse, ok := plan[xref]
			if !ok || spouse == p {
				continue
			}
			rec.SpouseIDs = append(rec.SpouseIDs, spouse.id)
			rec.Spouses = append(rec.Spouses, person.FormatLink(spouse.path, spouse.name))
			linked[pairKey(p.id, spouse.id)] = struct{}{}
		}
		for _, child := range children[p.ind.Xref] {
			rec.ChildrenIDs = append(rec.ChildrenIDs, child.id)
			rec.Children = append(rec.Children, person.FormatLink(child.path, child.name))
		}

		fields := fm.Fields(rec, opts.PersonType)
		fm.Set(fields, person.KeyGedcomXref, p.ind.Xref)

		if !opts.DryRun {
			if err := creator.CreateRecord(ctx, p.path, fields, noteBody(p.name)); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("creating %s: %w", p.path, err))
				entry.WithError(err).WithField("path", p.path).Warn("note not created")
				continue
			}
		}
		result.PeopleCreated++
		result.Paths = append(result.Paths, p.path)
		entry.WithFields(logrus.Fields{"path": p.path, "xref": p.ind.Xref, "id": p.id}).Debug("person imported")
	}
	result.RelationshipsLinked = len(linked)

	entry.WithFields(logrus.Fields{
		"created":       result.PeopleCreated,
		"relationships": result.RelationshipsLinked,
		"skipped":       result.Skipped,
		"errors":        len(result.Errors),
		"dry_run":       opts.DryRun,
	}).Info("gedcom import complete")
	return result, nil
}

func displayName(ind *gedcom.Individual) string {
	if name := strings.TrimSpace(ind.Name); name != "" {
		return name
	}
	return strings.TrimSpace(strings.Join(strings.Fields(ind.GivenName+" "+ind.Surname), " "))
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "=" + b
}

// notePath picks <folder>/<name>.md, falling back to "<name> (2).md" and so
// on when the path is taken in the vault or earlier in this import.
func notePath(ctx context.Context, creator Creator, folder, name string, taken map[string]struct{}) (string, error) {
	base := fileName(name)
	for n := 1; n <= maxPathAttempts; n++ {
		file := base
		if n > 1 {
			file = fmt.Sprintf("%s (%d)", base, n)
		}
		h := file + ".md"
		if folder != "" {
			h = folder + "/" + h
		}
		key := strings.ToLower(h)
		if _, ok := taken[key]; ok {
			continue
		}
		exists, err := creator.Exists(ctx, h)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}
		taken[key] = struct{}{}
		return h, nil
	}
	return "", fmt.Errorf("no free note name for %q", name)
}

var fileNameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "", "?", "", "\"", "",
	"<", "", ">", "", "|", "-", "[", "(", "]", ")", "#", "", "^", "",
)

// fileName strips characters that are not allowed in note names or that
// would break a wikilink.
func fileName(name string) string {
	cleaned := strings.Join(strings.Fields(fileNameReplacer.Replace(name)), " ")
	cleaned = strings.Trim(cleaned, ". ")
	if cleaned == "" {
		return "Unnamed"
	}
	return cleaned
}

func noteBody(name string) string {
	return "\n# " + name + "\n"
}
