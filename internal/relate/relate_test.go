package relate

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"path"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"chartedroots/internal/person"
)

type memStore struct {
	mu       sync.Mutex
	notes    map[string]map[string]any
	writes   int
	failures map[string]error
}

func newMemStore(notes map[string]map[string]any) *memStore {
	return &memStore{notes: notes, failures: map[string]error{}}
}

func (s *memStore) ListRecords(ctx context.Context, kind string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.notes))
	for h := range s.notes {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memStore) ReadFields(ctx context.Context, h string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.notes[h]
	if !ok {
		return nil, errors.New("not found")
	}
	return copyFields(fields), nil
}

func (s *memStore) WriteFields(ctx context.Context, h string, fn func(map[string]any) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[h]; err != nil {
		return err
	}
	fields, ok := s.notes[h]
	if !ok {
		return errors.New("not found")
	}
	fields = copyFields(fields)
	if err := fn(fields); err != nil {
		return err
	}
	s.notes[h] = fields
	s.writes++
	return nil
}

func (s *memStore) ResolveDisplayName(ctx context.Context, h string) (string, error) {
	return strings.TrimSuffix(path.Base(h), ".md"), nil
}

func (s *memStore) ResolvePath(ctx context.Context, h string) (string, error) {
	return h, nil
}

func (s *memStore) get(h string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyFields(s.notes[h])
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func family() *memStore {
	return newMemStore(map[string]map[string]any{
		"People/Tom.md":  {"cr_id": "tom-100-aaa-001", "sex": "male"},
		"People/Ann.md":  {"cr_id": "ann-100-aaa-002", "sex": "female"},
		"People/Kid.md":  {"cr_id": "kid-100-aaa-003"},
		"People/Bea.md":  {"cr_id": "bea-100-aaa-004", "sex": "F"},
		"People/NoID.md": {"name": "Nobody"},
	})
}

var list = person.NewFieldMap(nil).List

func TestAddParent(t *testing.T) {
	store := family()
	m := New(store, nil, quietLogger())
	ctx := context.Background()

	result, err := m.AddParent(ctx, "People/Kid.md", "People/Tom.md", RoleFather)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Written) != 2 || len(result.Warnings) != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}

	kid := store.get("People/Kid.md")
	if kid["father_id"] != "tom-100-aaa-001" || kid["father"] != "[[Tom]]" {
		t.Fatalf("unexpected child fields: %#v", kid)
	}
	tom := store.get("People/Tom.md")
	if !reflect.DeepEqual(list(tom, "children_id"), []string{"kid-100-aaa-003"}) {
		t.Fatalf("unexpected children ids: %#v", tom)
	}
	if !reflect.DeepEqual(list(tom, "children"), []string{"[[Kid]]"}) {
		t.Fatalf("unexpected children links: %#v", tom)
	}

	t.Run("repeat is deduplicated", func(t *testing.T) {
		if _, err := m.AddParent(ctx, "People/Kid.md", "People/Tom.md", RoleFather); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tom := store.get("People/Tom.md")
		if len(list(tom, "children_id")) != 1 || len(list(tom, "children")) != 1 {
			t.Fatalf("expected one child, got %#v", tom)
		}
	})

	t.Run("sex mismatch warns but proceeds", func(t *testing.T) {
		result, err := m.AddParent(ctx, "People/Kid.md", "People/Ann.md", RoleFather)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		codes := map[WarningCode]bool{}
		for _, w := range result.Warnings {
			codes[w.Code] = true
		}
		if !codes[RoleSexMismatch] || !codes[ParentReplaced] {
			t.Fatalf("expected mismatch and replaced warnings, got %#v", result.Warnings)
		}
		if store.get("People/Kid.md")["father_id"] != "ann-100-aaa-002" {
			t.Fatalf("expected write to proceed")
		}
		tom := store.get("People/Tom.md")
		if len(list(tom, "children_id")) != 0 || len(list(tom, "children")) != 0 {
			t.Fatalf("expected replaced father to lose the child, got %#v", tom)
		}
		if !reflect.DeepEqual(list(store.get("People/Ann.md"), "children_id"), []string{"kid-100-aaa-003"}) {
			t.Fatalf("expected new father to list the child, got %#v", store.get("People/Ann.md"))
		}
	})

	t.Run("invalid role", func(t *testing.T) {
		if _, err := m.AddParent(ctx, "People/Kid.md", "People/Tom.md", Role("uncle")); !errors.Is(err, ErrInvalidRole) {
			t.Fatalf("expected ErrInvalidRole, got %v", err)
		}
	})
}

func TestMissingIdentityWritesNothing(t *testing.T) {
	store := family()
	m := New(store, nil, quietLogger())
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"add parent child", func() error {
			_, err := m.AddParent(ctx, "People/NoID.md", "People/Tom.md", RoleFather)
			return err
		}},
		{"add parent parent", func() error {
			_, err := m.AddParent(ctx, "People/Kid.md", "People/NoID.md", RoleMother)
			return err
		}},
		{"add spouse", func() error {
			_, err := m.AddSpouse(ctx, "People/Tom.md", "People/NoID.md")
			return err
		}},
		{"add child", func() error {
			_, err := m.AddChild(ctx, "People/NoID.md", "People/Kid.md")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, ErrMissingIdentity) {
				t.Fatalf("expected ErrMissingIdentity, got %v", err)
			}
			if !strings.Contains(err.Error(), "People/NoID.md") {
				t.Fatalf("expected path in error, got %v", err)
			}
		})
	}
	if store.writes != 0 {
		t.Fatalf("expected no writes, got %d", store.writes)
	}
}

func TestAddSpouse(t *testing.T) {
	store := family()
	m := New(store, nil, quietLogger())
	ctx := context.Background()

	if _, err := m.AddSpouse(ctx, "People/Tom.md", "People/Ann.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	once := map[string]map[string]any{
		"tom": store.get("People/Tom.md"),
		"ann": store.get("People/Ann.md"),
	}
	if !reflect.DeepEqual(list(once["tom"], "spouse_id"), []string{"ann-100-aaa-002"}) {
		t.Fatalf("unexpected tom: %#v", once["tom"])
	}
	if !reflect.DeepEqual(list(once["ann"], "spouse"), []string{"[[Tom]]"}) {
		t.Fatalf("unexpected ann: %#v", once["ann"])
	}

	if _, err := m.AddSpouse(ctx, "People/Ann.md", "People/Tom.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(store.get("People/Tom.md"), once["tom"]) || !reflect.DeepEqual(store.get("People/Ann.md"), once["ann"]) {
		t.Fatalf("expected repeated add_spouse to be idempotent")
	}

	if _, err := m.AddSpouse(ctx, "People/Tom.md", "People/Tom.md"); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("expected ErrSelfReference, got %v", err)
	}
}

func TestAddChildInfersRole(t *testing.T) {
	store := family()
	m := New(store, nil, quietLogger())
	ctx := context.Background()

	if _, err := m.AddChild(ctx, "People/Bea.md", "People/Kid.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.get("People/Kid.md")["mother_id"] != "bea-100-aaa-004" {
		t.Fatalf("expected female parent to become mother")
	}

	store.notes["People/Pat.md"] = map[string]any{"cr_id": "pat-100-aaa-005"}
	result, err := m.AddChild(ctx, "People/Pat.md", "People/Kid.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Op != OpAddChild {
		t.Fatalf("expected add_child op, got %q", result.Op)
	}
	if store.get("People/Kid.md")["father_id"] != "pat-100-aaa-005" {
		t.Fatalf("expected unknown sex to default to father")
	}
}

func TestSymmetryHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	notes := map[string]map[string]any{}
	var handles []string
	sexes := []string{"male", "female", ""}
	for i := 0; i < 8; i++ {
		id, err := person.NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		h := "People/P" + string(rune('A'+i)) + ".md"
		notes[h] = map[string]any{"cr_id": id, "sex": sexes[i%3]}
		handles = append(handles, h)
	}
	store := newMemStore(notes)
	m := New(store, nil, quietLogger())
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		a, b := handles[rng.Intn(len(handles))], handles[rng.Intn(len(handles))]
		var err error
		switch rng.Intn(3) {
		case 0:
			role := RoleFather
			if rng.Intn(2) == 1 {
				role = RoleMother
			}
			_, err = m.AddParent(ctx, a, b, role)
		case 1:
			_, err = m.AddSpouse(ctx, a, b)
		case 2:
			_, err = m.AddChild(ctx, a, b)
		}
		if err != nil && !errors.Is(err, ErrSelfReference) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	fm := person.NewFieldMap(nil)
	byID := map[string]*person.Record{}
	for _, h := range handles {
		rec := fm.Record(store.get(h), h, "")
		byID[rec.ID] = rec
	}
	for _, rec := range byID {
		for _, spouse := range rec.SpouseIDs {
			if !byID[spouse].HasSpouse(rec.ID) {
				t.Fatalf("%s lists spouse %s without the reverse link", rec.ID, spouse)
			}
		}
		for _, parent := range rec.Parents() {
			if !byID[parent].HasChild(rec.ID) {
				t.Fatalf("%s has parent %s who does not list the child", rec.ID, parent)
			}
		}
		for _, child := range rec.ChildrenIDs {
			if c := byID[child]; c.FatherID != rec.ID && c.MotherID != rec.ID {
				t.Fatalf("%s lists child %s whose parents are %q and %q", rec.ID, child, c.FatherID, c.MotherID)
			}
		}
		if len(rec.SpouseIDs) != len(rec.Spouses) || len(rec.ChildrenIDs) != len(rec.Children) {
			t.Fatalf("%s has unpaired display links: %#v", rec.ID, rec)
		}
	}
}

func TestPropagateRename(t *testing.T) {
	store := newMemStore(map[string]map[string]any{
		"People/John Smith Jr.md": {
			"cr_id":     "jsj-200-bbb-001",
			"father":    "[[John Smith]]",
			"father_id": "jsm-200-bbb-000",
		},
		"People/Mary.md": {
			"cr_id":     "mar-200-bbb-002",
			"spouse":    []any{"[[John Smith]]"},
			"spouse_id": []any{"jsm-200-bbb-000"},
		},
		"People/Other Kid.md": {
			"cr_id":     "otk-200-bbb-003",
			"father":    "[[John Smith]]",
			"father_id": "jsm-999-zzz-999",
		},
		"People/Unaligned.md": {
			"cr_id":       "una-200-bbb-004",
			"children":    []any{"[[Somebody]]", "[[John Smith]]"},
			"children_id": []any{"jsm-200-bbb-000"},
		},
		"People/John Smythe.md": {
			"cr_id": "jsm-200-bbb-000",
		},
	})

	var changes []Change
	m := New(store, nil, quietLogger(), WithNotifier(NotifierFunc(func(ctx context.Context, c Change) {
		changes = append(changes, c)
	})))

	result, err := m.PropagateRename(context.Background(), "jsm-200-bbb-000", "John Smith", "John Smythe", "People/John Smythe.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Written) != 3 {
		t.Fatalf("expected three records rewritten, got %#v", result.Written)
	}

	if got := store.get("People/John Smith Jr.md")["father"]; got != "[[John Smythe]]" {
		t.Fatalf("unexpected father link %#v", got)
	}
	if got := list(store.get("People/Mary.md"), "spouse"); !reflect.DeepEqual(got, []string{"[[John Smythe]]"}) {
		t.Fatalf("unexpected spouse links %#v", got)
	}
	if got := store.get("People/Other Kid.md")["father"]; got != "[[John Smith]]" {
		t.Fatalf("expected lookalike with other id untouched, got %#v", got)
	}
	if got := list(store.get("People/Unaligned.md"), "children"); !reflect.DeepEqual(got, []string{"[[Somebody]]", "[[John Smythe]]"}) {
		t.Fatalf("unexpected unaligned children %#v", got)
	}

	if len(changes) != 1 || changes[0].Op != OpPropagateRename || changes[0].Subject != "jsm-200-bbb-000" {
		t.Fatalf("unexpected change notifications %#v", changes)
	}

	t.Run("second run changes nothing", func(t *testing.T) {
		writes := store.writes
		result, err := m.PropagateRename(context.Background(), "jsm-200-bbb-000", "John Smith", "John Smythe", "People/John Smythe.md")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Written) != 0 || store.writes != writes {
			t.Fatalf("expected no writes, got %#v", result.Written)
		}
	})

	t.Run("empty id", func(t *testing.T) {
		if _, err := m.PropagateRename(context.Background(), "", "a", "b", "b.md"); !errors.Is(err, ErrMissingIdentity) {
			t.Fatalf("expected ErrMissingIdentity, got %v", err)
		}
	})
}

func TestWriteFailureAndRetry(t *testing.T) {
	store := family()
	boom := errors.New("disk full")
	store.failures["People/Ann.md"] = boom

	var notified int
	m := New(store, nil, quietLogger(), WithNotifier(NotifierFunc(func(context.Context, Change) { notified++ })))
	ctx := context.Background()

	result, err := m.AddSpouse(ctx, "People/Tom.md", "People/Ann.md")
	if err == nil {
		t.Fatalf("expected error")
	}
	var failure *WriteFailure
	if !errors.As(err, &failure) || failure.Path != "People/Ann.md" || failure.Op != OpAddSpouse {
		t.Fatalf("expected WriteFailure for Ann, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying error to be wrapped")
	}
	if result.OK() || len(result.Failed) != 1 || len(result.Written) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if list(store.get("People/Tom.md"), "spouse_id") == nil {
		t.Fatalf("expected the other side to be written without rollback")
	}
	if notified != 1 {
		t.Fatalf("expected partial write to notify, got %d", notified)
	}

	delete(store.failures, "People/Ann.md")
	retried, err := m.Retry(ctx, result)
	if err != nil {
		t.Fatalf("unexpected retry error: %v", err)
	}
	if !retried.OK() || len(retried.Written) != 1 {
		t.Fatalf("unexpected retry result: %#v", retried)
	}
	if !reflect.DeepEqual(list(store.get("People/Ann.md"), "spouse_id"), []string{"tom-100-aaa-001"}) {
		t.Fatalf("expected retry to complete the spouse link")
	}
}

func TestRemovals(t *testing.T) {
	store := family()
	m := New(store, nil, quietLogger())
	ctx := context.Background()

	if _, err := m.AddParent(ctx, "People/Kid.md", "People/Ann.md", RoleMother); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.AddSpouse(ctx, "People/Tom.md", "People/Ann.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.RemoveParent(ctx, "People/Kid.md", RoleMother); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kid := store.get("People/Kid.md")
	if _, ok := kid["mother_id"]; ok {
		t.Fatalf("expected mother cleared, got %#v", kid)
	}
	if _, ok := kid["mother"]; ok {
		t.Fatalf("expected mother link cleared, got %#v", kid)
	}
	ann := store.get("People/Ann.md")
	if _, ok := ann["children_id"]; ok {
		t.Fatalf("expected children cleared on parent, got %#v", ann)
	}

	if _, err := m.RemoveSpouse(ctx, "People/Ann.md", "People/Tom.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, h := range []string{"People/Ann.md", "People/Tom.md"} {
		fields := store.get(h)
		if _, ok := fields["spouse_id"]; ok {
			t.Fatalf("expected spouse cleared on %s, got %#v", h, fields)
		}
		if _, ok := fields["spouse"]; ok {
			t.Fatalf("expected spouse link cleared on %s, got %#v", h, fields)
		}
	}

	t.Run("nothing to remove", func(t *testing.T) {
		result, err := m.RemoveParent(ctx, "People/Kid.md", RoleFather)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Written) != 0 {
			t.Fatalf("expected no writes, got %#v", result.Written)
		}
	})
}

func TestReplaceParentKeepsOtherRole(t *testing.T) {
	store := family()
	m := New(store, nil, quietLogger())
	ctx := context.Background()

	for _, role := range []Role{RoleFather, RoleMother} {
		if _, err := m.AddParent(ctx, "People/Kid.md", "People/Bea.md", role); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := m.AddParent(ctx, "People/Kid.md", "People/Tom.md", RoleFather); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(list(store.get("People/Bea.md"), "children_id"), []string{"kid-100-aaa-003"}) {
		t.Fatalf("expected mother to keep the child, got %#v", store.get("People/Bea.md"))
	}

	t.Run("dangling old parent", func(t *testing.T) {
		store.notes["People/Kid.md"]["mother_id"] = "gon-100-aaa-099"
		result, err := m.AddParent(ctx, "People/Kid.md", "People/Ann.md", RoleMother)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Written) != 2 {
			t.Fatalf("expected only child and new mother written, got %#v", result.Written)
		}
	})
}
