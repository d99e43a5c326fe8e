package relate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"chartedroots/internal/person"
)

// PropagateRename rewrites the display links that point at the person with
// the given id after that person's note was renamed or moved. Only entries
// whose paired id equals id are touched; the old name is used to locate a
// link when a display list does not line up with its id list, never as the
// match itself.
func (m *Mutator) PropagateRename(ctx context.Context, id, oldName, newName, newLocation string) (*Result, error) {
	if strings.TrimSpace(id) == "" {
		m.reject(OpPropagateRename)
		return nil, fmt.Errorf("%w: empty id", ErrMissingIdentity)
	}
	newLink := person.FormatLink(newLocation, newName)

	handles, err := m.store.ListRecords(ctx, m.personType)
	if err != nil {
		m.reject(OpPropagateRename)
		return nil, fmt.Errorf("listing people: %w", err)
	}

	result := &Result{Op: OpPropagateRename}
	var steps []Step
	for _, h := range handles {
		fields, err := m.store.ReadFields(ctx, h)
		if err != nil {
			m.log.WithError(err).WithField("path", h).Warn("skipping unreadable person")
			continue
		}
		probe := cloneFields(fields)
		changed, unaligned := m.rewrite(probe, id, oldName, newLink)
		if !changed {
			continue
		}
		if unaligned {
			result.Warnings = append(result.Warnings, Warning{
				Code:    RenameUnaligned,
				Path:    h,
				Message: fmt.Sprintf("could not locate the link to %s by name; appended %s", oldName, newLink),
			})
		}
		steps = append(steps, Step{Op: OpPropagateRename, Path: h, apply: func(fields map[string]any) error {
			m.rewrite(fields, id, oldName, newLink)
			return nil
		}})
	}

	m.log.WithFields(logrus.Fields{
		"id":       id,
		"new_name": newName,
		"records":  len(steps),
	}).Debug("propagating rename")
	return m.run(ctx, result, id, "", steps)
}

// rewrite updates every display link paired with id. It reports whether
// anything changed and whether a link had to be appended because it could
// not be located.
func (m *Mutator) rewrite(fields map[string]any, id, oldName, newLink string) (changed, unaligned bool) {
	for _, pair := range [][2]string{
		{person.KeyFatherID, person.KeyFather},
		{person.KeyMotherID, person.KeyMother},
	} {
		if m.fields.String(fields, pair[0]) != id {
			continue
		}
		if m.fields.String(fields, pair[1]) != newLink {
			m.fields.Set(fields, pair[1], newLink)
			changed = true
		}
	}

	for _, pair := range [][2]string{
		{person.KeySpouseID, person.KeySpouse},
		{person.KeyChildrenID, person.KeyChildren},
	} {
		ids := m.fields.List(fields, pair[0])
		idx := indexOf(ids, id)
		if idx == -1 {
			continue
		}
		links := m.fields.List(fields, pair[1])

		if len(links) == len(ids) {
			if links[idx] != newLink {
				links[idx] = newLink
				m.fields.Set(fields, pair[1], links)
				changed = true
			}
			continue
		}

		// The id confirms the relationship; the old name only picks which
		// link in an unaligned list belongs to it.
		if indexOf(links, newLink) != -1 {
			continue
		}
		if i := candidate(links, oldName); i != -1 {
			links[i] = newLink
		} else {
			links = append(links, newLink)
			unaligned = true
		}
		m.fields.Set(fields, pair[1], links)
		changed = true
	}
	return changed, unaligned
}

func candidate(links []string, oldName string) int {
	oldName = strings.TrimSpace(oldName)
	if oldName == "" {
		return -1
	}
	for i, link := range links {
		if strings.EqualFold(person.LinkName(link), oldName) {
			return i
		}
	}
	for i, link := range links {
		if strings.Contains(link, oldName) {
			return i
		}
	}
	return -1
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
