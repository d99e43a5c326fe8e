// Package ahnentafel numbers a person's ancestors: the root is 1, the father
// of n is 2n and the mother of n is 2n+1.
package ahnentafel

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"chartedroots/internal/person"
)

// MaxGenerations bounds the walk so numbers stay well inside an int.
const MaxGenerations = 30

var (
	ErrRootNotFound       = errors.New("root person not found")
	ErrInvalidGenerations = errors.New("invalid generation count")
)

// Graph is the read side the numberer needs. graph.Snapshot satisfies it.
type Graph interface {
	Person(id string) (*person.Record, bool)
}

type GenerationStats struct {
	Generation   int
	Found        int
	Possible     int
	Completeness float64
}

type Result struct {
	Root             *person.Record
	Ancestors        map[int]*person.Record
	GenerationsFound int
	Generations      []GenerationStats

	// Collapsed lists ids reached through more than one line, sorted.
	Collapsed []string
}

type Option func(*walker)

// WithPartialParents follows whichever parent is known. By default a person
// whose father or mother is missing ends that branch.
func WithPartialParents() Option {
	return func(w *walker) { w.partial = true }
}

type walker struct {
	partial bool
}

type entry struct {
	number int
	rec    *person.Record
}

// Generate walks parent links from rootID breadth first, stopping at
// maxGenerations or where a parent link is missing.
func Generate(g Graph, rootID string, maxGenerations int, opts ...Option) (*Result, error) {
	var w walker
	for _, opt := range opts {
		opt(&w)
	}
	if maxGenerations < 1 || maxGenerations > MaxGenerations {
		return nil, fmt.Errorf("%w: %d (want 1-%d)", ErrInvalidGenerations, maxGenerations, MaxGenerations)
	}
	root, ok := g.Person(rootID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, rootID)
	}

	res := &Result{Root: root, Ancestors: map[int]*person.Record{1: root}}
	seen := map[string]int{root.ID: 1}
	queue := []entry{{number: 1, rec: root}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if Generation(cur.number) >= maxGenerations {
			continue
		}
		var parents [2]*person.Record
		for i, id := range [2]string{cur.rec.FatherID, cur.rec.MotherID} {
			if id != "" {
				parents[i], _ = g.Person(id)
			}
		}
		if !w.partial && (parents[0] == nil || parents[1] == nil) {
			continue
		}
		for i, parent := range parents {
			if parent == nil {
				continue
			}
			n := 2*cur.number + i
			res.Ancestors[n] = parent
			seen[parent.ID]++
			queue = append(queue, entry{number: n, rec: parent})
		}
	}

	for id, count := range seen {
		if count > 1 {
			res.Collapsed = append(res.Collapsed, id)
		}
	}
	sort.Strings(res.Collapsed)
	res.stats()
	return res, nil
}

func (r *Result) stats() {
	found := map[int]int{}
	for n := range r.Ancestors {
		gen := Generation(n)
		found[gen]++
		r.GenerationsFound = max(r.GenerationsFound, gen)
	}
	r.Generations = make([]GenerationStats, 0, r.GenerationsFound)
	for gen := 1; gen <= r.GenerationsFound; gen++ {
		possible := 1 << (gen - 1)
		r.Generations = append(r.Generations, GenerationStats{
			Generation:   gen,
			Found:        found[gen],
			Possible:     possible,
			Completeness: float64(found[gen]) / float64(possible),
		})
	}
}

// Numbers returns the assigned numbers in ascending order.
func (r *Result) Numbers() []int {
	numbers := make([]int, 0, len(r.Ancestors))
	for n := range r.Ancestors {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// Generation returns floor(log2 n) + 1, or 0 for n < 1.
func Generation(n int) int {
	if n < 1 {
		return 0
	}
	return bits.Len(uint(n))
}

// Label describes how ancestor n relates to the root.
func Label(n int) string {
	gen := Generation(n)
	switch gen {
	case 0:
		return ""
	case 1:
		return "self"
	case 2:
		if n == 2 {
			return "father"
		}
		return "mother"
	}

	kin := "grandfather"
	if n%2 == 1 {
		kin = "grandmother"
	}
	switch greats := gen - 3; greats {
	case 0:
	case 1:
		kin = "great-" + kin
	default:
		kin = fmt.Sprintf("%d× great-%s", greats, kin)
	}

	side := "paternal"
	if n>>(gen-2) == 3 {
		side = "maternal"
	}
	return side + " " + kin
}
