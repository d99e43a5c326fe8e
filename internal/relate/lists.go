package relate

import (
	"strings"

	"chartedroots/internal/person"
)

// upsert adds id and its display link to a paired list field. An id that is
// already present keeps its position; its link is refreshed when the two
// lists line up.
func (m *Mutator) upsert(fields map[string]any, idKey, linkKey, id, link string) {
	ids := m.fields.List(fields, idKey)
	links := m.fields.List(fields, linkKey)

	for i, existing := range ids {
		if existing != id {
			continue
		}
		if len(links) == len(ids) && links[i] != link {
			links[i] = link
			m.fields.Set(fields, linkKey, links)
		}
		return
	}

	m.fields.Set(fields, idKey, append(ids, id))
	m.fields.Set(fields, linkKey, append(links, link))
}

// remove drops id from a paired list field together with its display link.
// When the lists do not line up the link is found by the name it shows.
func (m *Mutator) remove(fields map[string]any, idKey, linkKey, id, name string) {
	ids := m.fields.List(fields, idKey)
	links := m.fields.List(fields, linkKey)
	aligned := len(ids) == len(links)

	keptIDs := make([]string, 0, len(ids))
	keptLinks := links
	if aligned {
		keptLinks = make([]string, 0, len(links))
	}
	for i, existing := range ids {
		if existing == id {
			continue
		}
		keptIDs = append(keptIDs, existing)
		if aligned {
			keptLinks = append(keptLinks, links[i])
		}
	}
	if !aligned {
		filtered := make([]string, 0, len(links))
		for _, link := range links {
			if strings.EqualFold(person.LinkName(link), name) {
				continue
			}
			filtered = append(filtered, link)
		}
		keptLinks = filtered
	}

	m.fields.Set(fields, idKey, keptIDs)
	m.fields.Set(fields, linkKey, keptLinks)
}
