// Package dupes finds people who are probably recorded twice.
package dupes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"chartedroots/internal/metrics"
	"chartedroots/internal/person"
)

type Options struct {
	MinNameSimilarity  float64 `validate:"gte=0,lte=100"`
	MinConfidence      float64 `validate:"gte=0,lte=100"`
	MaxYearDifference  int     `validate:"gte=0"`
	SameCollectionOnly bool
	Workers            int `validate:"gte=0,lte=64"`
}

func DefaultOptions() Options {
	return Options{
		MinNameSimilarity: 70,
		MinConfidence:     60,
		MaxYearDifference: 5,
		Workers:           1,
	}
}

type Candidate struct {
	A, B            *person.Record
	Confidence      float64
	NameSimilarity  float64
	DateProximity   float64
	SharedRelations int
	Reasons         []string
}

const (
	nameWeight     = 0.6
	dateWeight     = 0.3
	sameSexBonus   = 5
	perSharedBonus = 3
	maxSharedBonus = 10
)

var validate = validator.New()

// FindDuplicates compares every pair of people and returns the pairs scoring
// at least MinConfidence, best first.
func FindDuplicates(ctx context.Context, people []*person.Record, opts Options) ([]Candidate, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid duplicate options: %w", err)
	}
	start := time.Now()
	defer func() {
		metrics.DuplicateScanDuration.Observe(time.Since(start).Seconds())
	}()

	rows := make([][]Candidate, len(people))
	compared := make([]int, len(people))
	scanRow := func(i int) {
		for j := i + 1; j < len(people); j++ {
			a, b := people[i], people[j]
			if opts.SameCollectionOnly && (a.Collection == "" || a.Collection != b.Collection) {
				continue
			}
			compared[i]++
			if c, ok := score(a, b, opts); ok {
				rows[i] = append(rows[i], c)
			}
		}
	}

	if opts.Workers <= 1 {
		for i := range people {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			scanRow(i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i := range people {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scanRow(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	var out []Candidate
	total := 0
	for i := range rows {
		out = append(out, rows[i]...)
		total += compared[i]
	}
	metrics.DuplicatePairsCompared.Add(float64(total))

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.NameSimilarity != b.NameSimilarity {
			return a.NameSimilarity > b.NameSimilarity
		}
		if a.A.ID != b.A.ID {
			return a.A.ID < b.A.ID
		}
		return a.B.ID < b.B.ID
	})
	return out, nil
}

func score(a, b *person.Record, opts Options) (Candidate, bool) {
	nameSim := NameSimilarity(a.Name, b.Name)
	if nameSim < opts.MinNameSimilarity || nameSim == 0 {
		return Candidate{}, false
	}
	c := Candidate{A: a, B: b, NameSimilarity: nameSim}
	c.Reasons = append(c.Reasons, fmt.Sprintf("name similarity %.0f%%", nameSim))

	birthA, okA := a.BirthYear()
	birthB, okB := b.BirthYear()
	hasBirth := okA && okB
	deathA, okA := a.DeathYear()
	deathB, okB := b.DeathYear()
	hasDeath := okA && okB
	c.DateProximity = DateProximity(birthA, birthB, deathA, deathB, hasBirth, hasDeath, opts.MaxYearDifference)
	if hasBirth {
		c.Reasons = append(c.Reasons, yearReason("birth", birthA, birthB))
	}
	if hasDeath {
		c.Reasons = append(c.Reasons, yearReason("death", deathA, deathB))
	}

	confidence := nameWeight*nameSim + dateWeight*c.DateProximity
	if a.Sex.Known() && a.Sex == b.Sex {
		confidence += sameSexBonus
		c.Reasons = append(c.Reasons, "same sex")
	}

	shared := sharedRelations(a, b)
	c.SharedRelations = len(shared)
	for _, rel := range shared {
		c.Reasons = append(c.Reasons, "shared "+rel)
	}
	confidence += min(float64(perSharedBonus*len(shared)), maxSharedBonus)

	c.Confidence = max(0, min(100, confidence))
	if c.Confidence < opts.MinConfidence {
		return Candidate{}, false
	}
	return c, true
}

func yearReason(kind string, a, b int) string {
	if a == b {
		return fmt.Sprintf("same %s year %d", kind, a)
	}
	return fmt.Sprintf("%s years %d and %d", kind, a, b)
}

func sharedRelations(a, b *person.Record) []string {
	var shared []string
	if a.FatherID != "" && a.FatherID == b.FatherID {
		shared = append(shared, "father")
	}
	if a.MotherID != "" && a.MotherID == b.MotherID {
		shared = append(shared, "mother")
	}
	if overlaps(a.SpouseIDs, b.SpouseIDs) {
		shared = append(shared, "spouse")
	}
	if overlaps(a.ChildrenIDs, b.ChildrenIDs) {
		shared = append(shared, "child")
	}
	return shared
}

func overlaps(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
