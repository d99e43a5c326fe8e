// Package validate checks the person graph for broken or one-sided
// relationships.
package validate

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"chartedroots/internal/graph"
	"chartedroots/internal/person"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeInvalidID         = "invalid_id"
	codeMissingID         = "missing_id"
	codeDuplicateID       = "duplicate_id"
	codeSelfReference     = "self_reference"
	codeDanglingReference = "dangling_reference"
	codeAsymmetricSpouse  = "asymmetric_spouse"
	codeMissingChildBack  = "missing_child_backlink"
	codeMissingParentLink = "missing_parent_link"
	codeStaleDisplayLink  = "stale_display_link"
	codeParentSexMismatch = "parent_sex_mismatch"
	codeIndexDanglingEdge = "index_dangling_edge"
)

type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Entity   string   `json:"entity,omitempty"`
	FilePath string   `json:"file_path,omitempty"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

func (r *Report) Errors() int {
	return r.count(SeverityError)
}

func (r *Report) Warnings() int {
	return r.count(SeverityWarn)
}

func (r *Report) count(severity Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// Run checks every person in the snapshot. index may be nil; when set, edges
// in the index that point at people missing from it are reported too.
func Run(ctx context.Context, snap *graph.Snapshot, index IndexChecker) (*Report, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}

	issues := make([]Issue, 0)

	for _, h := range snap.MissingID() {
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     codeMissingID,
			Message:  "person note has no id",
			FilePath: h,
		})
	}
	for _, dup := range snap.Duplicates() {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeDuplicateID,
			Message:  fmt.Sprintf("id %s is also used by %s", dup.ID, dup.Kept),
			Entity:   dup.ID,
			FilePath: dup.Ignored,
		})
	}

	for _, p := range snap.People() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := checker{snap: snap, p: p}
		c.identity()
		c.parents()
		c.spouses()
		c.children()
		issues = append(issues, c.issues...)
	}

	if index != nil {
		edges, err := index.ListDanglingEdges(ctx)
		if err != nil {
			return nil, fmt.Errorf("list dangling edges: %w", err)
		}
		for _, e := range edges {
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeIndexDanglingEdge,
				Message:  fmt.Sprintf("index edge %s -[%s]-> %s has a missing endpoint, re-run index", e.From, e.Type, e.To),
				Entity:   e.From,
			})
		}
	}

	return &Report{Issues: issues}, nil
}

type checker struct {
	snap   *graph.Snapshot
	p      *person.Record
	issues []Issue
}

func (c *checker) add(severity Severity, code, format string, args ...any) {
	c.issues = append(c.issues, Issue{
		Severity: severity,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Entity:   c.p.ID,
		FilePath: c.p.Source,
	})
}

func (c *checker) identity() {
	if !person.ValidID(c.p.ID) {
		c.add(SeverityError, codeInvalidID, "id %q does not match the xxx-000-xxx-000 format", c.p.ID)
	}
}

// resolve reports a self reference or dangling id and returns the target
// when it exists.
func (c *checker) resolve(field, id string) (*person.Record, bool) {
	if id == c.p.ID {
		c.add(SeverityError, codeSelfReference, "%s refers to the person itself", field)
		return nil, false
	}
	target, ok := c.snap.Person(id)
	if !ok {
		c.add(SeverityWarn, codeDanglingReference, "%s %s does not resolve to a person", field, id)
		return nil, false
	}
	return target, true
}

func (c *checker) parents() {
	for _, parent := range []struct {
		field string
		id    string
		link  string
		wrong person.Sex
	}{
		{person.KeyFather, c.p.FatherID, c.p.Father, person.SexFemale},
		{person.KeyMother, c.p.MotherID, c.p.Mother, person.SexMale},
	} {
		if parent.id == "" {
			continue
		}
		target, ok := c.resolve(parent.field+"_id", parent.id)
		if !ok {
			continue
		}
		if !target.HasChild(c.p.ID) {
			c.add(SeverityError, codeMissingChildBack, "%s %s does not list this person as a child", parent.field, target.ID)
		}
		if target.Sex == parent.wrong {
			c.add(SeverityWarn, codeParentSexMismatch, "%s %s is recorded as %s", parent.field, target.ID, target.Sex)
		}
		c.displayLink(parent.field, target, linkList(parent.link))
	}
}

func (c *checker) spouses() {
	for _, id := range unique(c.p.SpouseIDs) {
		target, ok := c.resolve("spouse_id", id)
		if !ok {
			continue
		}
		if !target.HasSpouse(c.p.ID) {
			c.add(SeverityError, codeAsymmetricSpouse, "spouse %s does not list this person as a spouse", target.ID)
		}
		c.displayLink(person.KeySpouse, target, c.p.Spouses)
	}
}

func (c *checker) children() {
	for _, id := range unique(c.p.ChildrenIDs) {
		target, ok := c.resolve("children_id", id)
		if !ok {
			continue
		}
		if target.FatherID != c.p.ID && target.MotherID != c.p.ID {
			c.add(SeverityWarn, codeMissingParentLink, "child %s does not name this person as father or mother", target.ID)
		}
		c.displayLink(person.KeyChildren, target, c.p.Children)
	}
}

// displayLink checks that some link in the field names the target by its
// current note name or its name field.
func (c *checker) displayLink(field string, target *person.Record, links []string) {
	if len(links) == 0 {
		c.add(SeverityWarn, codeStaleDisplayLink, "%s has an id for %s but no display link", field, target.ID)
		return
	}
	names := []string{strings.TrimSpace(target.Name)}
	if target.Source != "" {
		base := path.Base(target.Source)
		names = append(names, strings.TrimSuffix(base, path.Ext(base)))
	}
	for _, link := range links {
		shown := person.LinkName(link)
		for _, name := range names {
			if name != "" && shown == name {
				return
			}
		}
	}
	c.add(SeverityWarn, codeStaleDisplayLink, "%s link does not name %s (%s)", field, target.ID, target.Name)
}

func linkList(link string) []string {
	if strings.TrimSpace(link) == "" {
		return nil
	}
	return []string{link}
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
