package graph

import (
	"sort"
	"time"

	"chartedroots/internal/person"
)

// Duplicate records a second note carrying an id already in the graph.
type Duplicate struct {
	ID      string
	Kept    string
	Ignored string
}

// Snapshot is an immutable view of the graph. Records returned from it are
// shared and must not be modified.
type Snapshot struct {
	people     map[string]*person.Record
	bySource   map[string]*person.Record
	ordered    []*person.Record
	duplicates []Duplicate
	missingID  []string

	LoadedAt time.Time
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		people:   make(map[string]*person.Record),
		bySource: make(map[string]*person.Record),
	}
}

// NewSnapshot builds a snapshot from records directly. Records without an id
// are ignored and the first record wins on duplicate ids.
func NewSnapshot(records []*person.Record) *Snapshot {
	snap := newSnapshot()
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if rec.ID == "" {
			snap.missingID = append(snap.missingID, rec.Source)
			continue
		}
		if existing, ok := snap.people[rec.ID]; ok {
			snap.duplicates = append(snap.duplicates, Duplicate{ID: rec.ID, Kept: existing.Source, Ignored: rec.Source})
			continue
		}
		snap.add(rec)
	}
	snap.finish()
	return snap
}

func (s *Snapshot) add(rec *person.Record) {
	s.people[rec.ID] = rec
	if rec.Source != "" {
		s.bySource[rec.Source] = rec
	}
	s.ordered = append(s.ordered, rec)
}

func (s *Snapshot) finish() {
	sort.SliceStable(s.ordered, func(i, j int) bool {
		a, b := s.ordered[i], s.ordered[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	s.LoadedAt = time.Now()
}

func (s *Snapshot) Person(id string) (*person.Record, bool) {
	if id == "" {
		return nil, false
	}
	rec, ok := s.people[id]
	return rec, ok
}

// BySource finds the person owning a note.
func (s *Snapshot) BySource(handle string) (*person.Record, bool) {
	rec, ok := s.bySource[handle]
	return rec, ok
}

// People returns every person ordered by name, then id.
func (s *Snapshot) People() []*person.Record {
	out := make([]*person.Record, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func (s *Snapshot) Len() int {
	return len(s.people)
}

func (s *Snapshot) Duplicates() []Duplicate {
	return s.duplicates
}

// MissingID lists notes typed as people that carry no id.
func (s *Snapshot) MissingID() []string {
	return s.missingID
}

func (s *Snapshot) Father(p *person.Record) (*person.Record, bool) {
	return s.Person(p.FatherID)
}

func (s *Snapshot) Mother(p *person.Record) (*person.Record, bool) {
	return s.Person(p.MotherID)
}

func (s *Snapshot) Spouses(p *person.Record) []*person.Record {
	return s.resolve(p.SpouseIDs)
}

func (s *Snapshot) Children(p *person.Record) []*person.Record {
	return s.resolve(p.ChildrenIDs)
}

func (s *Snapshot) resolve(ids []string) []*person.Record {
	var out []*person.Record
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := s.Person(id); ok {
			out = append(out, rec)
		}
	}
	return out
}
