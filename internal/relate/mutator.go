// Package relate edits relationships between person notes. Every
// relationship is stored twice on a note, as an id and as a display link,
// and both sides of a relationship are written by the same operation.
package relate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chartedroots/internal/metrics"
	"chartedroots/internal/person"
)

type Mutator struct {
	store      Store
	fields     person.FieldMap
	personType string
	log        *logrus.Logger
	notifier   Notifier
	now        func() time.Time
}

type Option func(*Mutator)

func WithNotifier(n Notifier) Option {
	return func(m *Mutator) { m.notifier = n }
}

func WithPersonType(kind string) Option {
	return func(m *Mutator) {
		if kind != "" {
			m.personType = kind
		}
	}
}

func New(store Store, aliases map[string]string, log *logrus.Logger, opts ...Option) *Mutator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Mutator{
		store:      store,
		fields:     person.NewFieldMap(aliases),
		personType: person.DefaultType,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// endpoint is a resolved operand of a mutation.
type endpoint struct {
	path string
	id   string
	name string
	sex  person.Sex

	fields map[string]any
}

func (e *endpoint) link() string {
	return person.FormatLink(e.path, e.name)
}

func (m *Mutator) resolve(ctx context.Context, handle string) (*endpoint, error) {
	p, err := m.store.ResolvePath(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", handle, err)
	}
	fields, err := m.store.ReadFields(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	id := m.fields.String(fields, person.KeyID)
	if id == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingIdentity, p)
	}
	name, err := m.store.ResolveDisplayName(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("resolving name of %s: %w", p, err)
	}
	sex := m.fields.String(fields, person.KeySex)
	if sex == "" {
		sex = m.fields.String(fields, person.KeyGender)
	}
	return &endpoint{path: p, id: id, name: name, sex: person.ParseSex(sex), fields: fields}, nil
}

// AddParent links child to parent in the given role. Both notes must carry
// an id; otherwise nothing is written.
func (m *Mutator) AddParent(ctx context.Context, child, parent string, role Role) (*Result, error) {
	return m.addParent(ctx, OpAddParent, child, parent, role)
}

// AddChild is AddParent seen from the parent. The role follows the parent's
// recorded sex and defaults to father.
func (m *Mutator) AddChild(ctx context.Context, parent, child string) (*Result, error) {
	p, err := m.resolve(ctx, parent)
	if err != nil {
		m.reject(OpAddChild)
		return nil, err
	}
	role := RoleFather
	if p.sex == person.SexFemale {
		role = RoleMother
	}
	return m.addParent(ctx, OpAddChild, child, parent, role)
}

func (m *Mutator) addParent(ctx context.Context, op Op, child, parent string, role Role) (*Result, error) {
	if _, err := ParseRole(string(role)); err != nil {
		m.reject(op)
		return nil, err
	}
	c, err := m.resolve(ctx, child)
	if err != nil {
		m.reject(op)
		return nil, err
	}
	p, err := m.resolve(ctx, parent)
	if err != nil {
		m.reject(op)
		return nil, err
	}
	if c.id == p.id {
		m.reject(op)
		return nil, fmt.Errorf("%w: %s", ErrSelfReference, c.path)
	}

	result := &Result{Op: op}
	if mismatch(p.sex, role) {
		result.Warnings = append(result.Warnings, Warning{
			Code:    RoleSexMismatch,
			Path:    p.path,
			Message: fmt.Sprintf("%s is recorded as %s but added as %s", p.name, p.sex, role),
		})
	}
	linkKey, idKey := roleKeys(role)
	var previousPath string
	if current := m.fields.String(c.fields, idKey); current != "" && current != p.id {
		result.Warnings = append(result.Warnings, Warning{
			Code:    ParentReplaced,
			Path:    c.path,
			Message: fmt.Sprintf("%s had %s %s, replaced by %s", c.name, role, current, p.id),
		})
		// The old parent keeps the child while it still holds the other role.
		_, otherKey := roleKeys(otherRole(role))
		if m.fields.String(c.fields, otherKey) != current {
			previousPath, err = m.findByID(ctx, current)
			if err != nil {
				m.reject(op)
				return nil, err
			}
		}
	}

	parentLink, childLink := p.link(), c.link()
	steps := []Step{
		{Op: op, Path: c.path, apply: func(fields map[string]any) error {
			m.fields.Set(fields, linkKey, parentLink)
			m.fields.Set(fields, idKey, p.id)
			return nil
		}},
		{Op: op, Path: p.path, apply: func(fields map[string]any) error {
			m.upsert(fields, person.KeyChildrenID, person.KeyChildren, c.id, childLink)
			return nil
		}},
	}
	// A replaced parent whose id no longer resolves has no list to clean.
	if previousPath != "" {
		steps = append(steps, Step{Op: op, Path: previousPath, apply: func(fields map[string]any) error {
			m.remove(fields, person.KeyChildrenID, person.KeyChildren, c.id, c.name)
			return nil
		}})
	}
	return m.run(ctx, result, c.id, p.id, steps)
}

// AddSpouse links a and b to each other. Repeating the call changes nothing.
func (m *Mutator) AddSpouse(ctx context.Context, a, b string) (*Result, error) {
	ea, err := m.resolve(ctx, a)
	if err != nil {
		m.reject(OpAddSpouse)
		return nil, err
	}
	eb, err := m.resolve(ctx, b)
	if err != nil {
		m.reject(OpAddSpouse)
		return nil, err
	}
	if ea.id == eb.id {
		m.reject(OpAddSpouse)
		return nil, fmt.Errorf("%w: %s", ErrSelfReference, ea.path)
	}

	linkA, linkB := ea.link(), eb.link()
	steps := []Step{
		{Op: OpAddSpouse, Path: ea.path, apply: func(fields map[string]any) error {
			m.upsert(fields, person.KeySpouseID, person.KeySpouse, eb.id, linkB)
			return nil
		}},
		{Op: OpAddSpouse, Path: eb.path, apply: func(fields map[string]any) error {
			m.upsert(fields, person.KeySpouseID, person.KeySpouse, ea.id, linkA)
			return nil
		}},
	}
	return m.run(ctx, &Result{Op: OpAddSpouse}, ea.id, eb.id, steps)
}

// RemoveParent clears the child's parent in role and drops the child from
// that parent's children. A parent id that no longer resolves only clears
// the child side.
func (m *Mutator) RemoveParent(ctx context.Context, child string, role Role) (*Result, error) {
	if _, err := ParseRole(string(role)); err != nil {
		m.reject(OpRemoveParent)
		return nil, err
	}
	c, err := m.resolve(ctx, child)
	if err != nil {
		m.reject(OpRemoveParent)
		return nil, err
	}
	linkKey, idKey := roleKeys(role)
	parentID := m.fields.String(c.fields, idKey)
	result := &Result{Op: OpRemoveParent}
	if parentID == "" && m.fields.String(c.fields, linkKey) == "" {
		return result, nil
	}

	steps := []Step{
		{Op: OpRemoveParent, Path: c.path, apply: func(fields map[string]any) error {
			m.fields.Delete(fields, linkKey)
			m.fields.Delete(fields, idKey)
			return nil
		}},
	}
	if parentID != "" {
		parentPath, err := m.findByID(ctx, parentID)
		if err != nil {
			m.reject(OpRemoveParent)
			return nil, err
		}
		if parentPath != "" {
			steps = append(steps, Step{Op: OpRemoveParent, Path: parentPath, apply: func(fields map[string]any) error {
				m.remove(fields, person.KeyChildrenID, person.KeyChildren, c.id, c.name)
				return nil
			}})
		}
	}
	return m.run(ctx, result, c.id, parentID, steps)
}

// RemoveSpouse unlinks a and b on both sides.
func (m *Mutator) RemoveSpouse(ctx context.Context, a, b string) (*Result, error) {
	ea, err := m.resolve(ctx, a)
	if err != nil {
		m.reject(OpRemoveSpouse)
		return nil, err
	}
	eb, err := m.resolve(ctx, b)
	if err != nil {
		m.reject(OpRemoveSpouse)
		return nil, err
	}
	steps := []Step{
		{Op: OpRemoveSpouse, Path: ea.path, apply: func(fields map[string]any) error {
			m.remove(fields, person.KeySpouseID, person.KeySpouse, eb.id, eb.name)
			return nil
		}},
		{Op: OpRemoveSpouse, Path: eb.path, apply: func(fields map[string]any) error {
			m.remove(fields, person.KeySpouseID, person.KeySpouse, ea.id, ea.name)
			return nil
		}},
	}
	return m.run(ctx, &Result{Op: OpRemoveSpouse}, ea.id, eb.id, steps)
}

// Retry re-applies the failed steps of an earlier result. Nothing is retried
// unless a caller asks.
func (m *Mutator) Retry(ctx context.Context, previous *Result) (*Result, error) {
	if previous == nil || len(previous.Failed) == 0 {
		return &Result{}, nil
	}
	result := &Result{Op: previous.Op}
	return m.run(ctx, result, "", "", previous.Failed)
}

func (m *Mutator) run(ctx context.Context, result *Result, subject, target string, steps []Step) (*Result, error) {
	var errs []error
	for _, step := range steps {
		if err := m.store.WriteFields(ctx, step.Path, step.apply); err != nil {
			failure := &WriteFailure{Path: step.Path, Op: step.Op, Err: err}
			m.log.WithError(err).WithFields(logrus.Fields{
				"path": step.Path,
				"op":   string(step.Op),
			}).Error("relationship write failed")
			result.Failed = append(result.Failed, step)
			errs = append(errs, failure)
			continue
		}
		result.Written = append(result.Written, step.Path)
	}

	for _, w := range result.Warnings {
		m.log.WithFields(logrus.Fields{
			"path": w.Path,
			"code": string(w.Code),
		}).Warn(w.Message)
	}

	outcome := "ok"
	switch {
	case len(errs) > 0 && len(result.Written) == 0:
		outcome = "failed"
	case len(errs) > 0:
		outcome = "partial"
	}
	metrics.MutationsTotal.WithLabelValues(string(result.Op), outcome).Inc()

	if len(result.Written) > 0 && m.notifier != nil {
		m.notifier.Notify(ctx, Change{
			ID:      uuid.New(),
			Op:      result.Op,
			Subject: subject,
			Target:  target,
			Paths:   append([]string(nil), result.Written...),
			At:      m.now(),
		})
	}
	return result, errors.Join(errs...)
}

func (m *Mutator) reject(op Op) {
	metrics.MutationsTotal.WithLabelValues(string(op), "rejected").Inc()
}

// findByID returns the path of the person carrying id, or "" when none does.
func (m *Mutator) findByID(ctx context.Context, id string) (string, error) {
	handles, err := m.store.ListRecords(ctx, m.personType)
	if err != nil {
		return "", fmt.Errorf("listing people: %w", err)
	}
	for _, h := range handles {
		fields, err := m.store.ReadFields(ctx, h)
		if err != nil {
			m.log.WithError(err).WithField("path", h).Warn("skipping unreadable person")
			continue
		}
		if m.fields.String(fields, person.KeyID) == id {
			return h, nil
		}
	}
	return "", nil
}

func roleKeys(role Role) (linkKey, idKey string) {
	if role == RoleMother {
		return person.KeyMother, person.KeyMotherID
	}
	return person.KeyFather, person.KeyFatherID
}

func otherRole(role Role) Role {
	if role == RoleMother {
		return RoleFather
	}
	return RoleMother
}

func mismatch(sex person.Sex, role Role) bool {
	return (role == RoleFather && sex == person.SexFemale) || (role == RoleMother && sex == person.SexMale)
}
