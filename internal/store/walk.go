package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
	DirectionBoth     = "both"

	MaxDepth = 5
)

var relTypePattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// ValidRelType reports whether relType is safe to use as an edge type.
func ValidRelType(relType string) bool {
	return relTypePattern.MatchString(relType)
}

// EdgeRow is one edge as returned by a backend, with both endpoints resolved.
type EdgeRow struct {
	Src  PersonRef
	Dst  PersonRef
	Type string
}

// FetchEdges returns the edges touching any id in frontier, honouring the
// direction and an optional relationship type.
type FetchEdges func(ctx context.Context, frontier []string, relType, direction string) ([]EdgeRow, error)

// NormalizeWalk validates and defaults the arguments of GetRelationships.
func NormalizeWalk(relType, direction string, depth int) (string, error) {
	direction = strings.TrimSpace(direction)
	if direction == "" {
		direction = DirectionBoth
	}
	switch direction {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
	default:
		return "", fmt.Errorf("invalid direction: %s", direction)
	}
	if depth < 1 || depth > MaxDepth {
		return "", fmt.Errorf("depth must be between 1 and %d", MaxDepth)
	}
	if strings.TrimSpace(relType) != "" && !ValidRelType(relType) {
		return "", fmt.Errorf("invalid relationship type: %s", relType)
	}
	return direction, nil
}

// Walk runs a breadth-first traversal from startID. Each person is reached at
// most once, at the smallest depth. Direction is reported relative to the
// frontier person the edge was found from.
func Walk(ctx context.Context, startID, relType, direction string, depth int, fetch FetchEdges) ([]Relationship, error) {
	visited := map[string]bool{startID: true}
	frontier := []string{startID}
	results := []Relationship{}

	for current := 1; current <= depth && len(frontier) > 0; current++ {
		rows, err := fetch(ctx, frontier, relType, direction)
		if err != nil {
			return nil, err
		}
		inFrontier := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}

		var next []string
		for _, row := range rows {
			rel := Relationship{From: row.Src, To: row.Dst, Type: row.Type, Depth: current}
			var other string
			switch {
			case inFrontier[row.Src.ID] && direction != DirectionIncoming:
				other = row.Dst.ID
				rel.Direction = DirectionOutgoing
			case inFrontier[row.Dst.ID] && direction != DirectionOutgoing:
				other = row.Src.ID
				rel.Direction = DirectionIncoming
				rel.From, rel.To = rel.To, rel.From
			default:
				continue
			}
			if visited[other] {
				continue
			}
			visited[other] = true
			results = append(results, rel)
			next = append(next, other)
		}
		frontier = next
	}
	return results, nil
}
