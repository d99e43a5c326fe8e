package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"chartedroots/internal/store"
)

func (c *Client) ReplaceRelationships(ctx context.Context, ownerID string, edges []store.Edge) error {
	for _, e := range edges {
		if !store.ValidRelType(e.Type) {
			return fmt.Errorf("invalid relationship type: %s", e.Type)
		}
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM edges WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("clearing edges: %w", err)
	}

	if len(edges) > 0 {
		batch := &pgx.Batch{}
		for _, e := range edges {
			batch.Queue(`INSERT INTO edges (src_id, dst_id, rel_type, owner_id) VALUES ($1, $2, $3, $4)
ON CONFLICT (src_id, dst_id, rel_type) DO NOTHING`, e.From, e.To, e.Type, ownerID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting edges: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *Client) GetRelationships(ctx context.Context, id, relType, direction string, depth int) ([]store.Relationship, error) {
	direction, err := store.NormalizeWalk(relType, direction, depth)
	if err != nil {
		return nil, err
	}
	if _, err := c.GetPerson(ctx, id); err != nil {
		return nil, fmt.Errorf("finding start person: %w", err)
	}
	return store.Walk(ctx, id, relType, direction, depth, c.fetchEdges)
}

func (c *Client) fetchEdges(ctx context.Context, frontier []string, relType, direction string) ([]store.EdgeRow, error) {
	var where string
	switch direction {
	case store.DirectionOutgoing:
		where = "e.src_id = ANY($1)"
	case store.DirectionIncoming:
		where = "e.dst_id = ANY($1)"
	default:
		where = "(e.src_id = ANY($1) OR e.dst_id = ANY($1))"
	}
	query := `
SELECT e.src_id, s.name, e.dst_id, d.name, e.rel_type
FROM edges e
JOIN people s ON s.person_id = e.src_id
JOIN people d ON d.person_id = e.dst_id
WHERE ` + where + `
  AND ($2 = '' OR e.rel_type = $2)
ORDER BY e.rel_type, e.src_id, e.dst_id`

	rows, err := c.pool.Query(ctx, query, frontier, relType)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	var out []store.EdgeRow
	for rows.Next() {
		var row store.EdgeRow
		if err := rows.Scan(&row.Src.ID, &row.Src.Name, &row.Dst.ID, &row.Dst.Name, &row.Type); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relationship rows: %w", err)
	}
	return out, nil
}

func (c *Client) ListDanglingEdges(ctx context.Context) ([]store.Edge, error) {
	query := `
SELECT e.src_id, e.dst_id, e.rel_type
FROM edges e
LEFT JOIN people s ON s.person_id = e.src_id
LEFT JOIN people d ON d.person_id = e.dst_id
WHERE s.person_id IS NULL OR d.person_id IS NULL
ORDER BY e.src_id, e.dst_id, e.rel_type
`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing dangling edges: %w", err)
	}
	defer rows.Close()

	edges := []store.Edge{}
	for rows.Next() {
		var e store.Edge
		if err := rows.Scan(&e.From, &e.To, &e.Type); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dangling edges: %w", err)
	}
	return edges, nil
}
