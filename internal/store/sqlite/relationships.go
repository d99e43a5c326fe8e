package sqlite

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"chartedroots/internal/store"
)

func (c *Client) ReplaceRelationships(ctx context.Context, ownerID string, edges []store.Edge) error {
	for _, e := range edges {
		if !store.ValidRelType(e.Type) {
			return fmt.Errorf("invalid relationship type: %s", e.Type)
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := psql.Delete("edges").Where(sq.Eq{"owner_id": ownerID}).ToSql()
	if err != nil {
		return fmt.Errorf("building edge delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing edges: %w", err)
	}

	if len(edges) > 0 {
		insert := psql.Insert("edges").Options("OR IGNORE").Columns("src_id", "dst_id", "rel_type", "owner_id")
		for _, e := range edges {
			insert = insert.Values(e.From, e.To, e.Type, ownerID)
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return fmt.Errorf("building edge insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting edges: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
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
	builder := psql.Select("e.src_id", "s.name", "e.dst_id", "d.name", "e.rel_type").
		From("edges e").
		Join("people s ON s.person_id = e.src_id").
		Join("people d ON d.person_id = e.dst_id").
		OrderBy("e.rel_type", "e.src_id", "e.dst_id")
	switch direction {
	case store.DirectionOutgoing:
		builder = builder.Where(sq.Eq{"e.src_id": frontier})
	case store.DirectionIncoming:
		builder = builder.Where(sq.Eq{"e.dst_id": frontier})
	default:
		builder = builder.Where(sq.Or{sq.Eq{"e.src_id": frontier}, sq.Eq{"e.dst_id": frontier}})
	}
	if relType != "" {
		builder = builder.Where(sq.Eq{"e.rel_type": relType})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building relationship query: %w", err)
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
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

// ListDanglingEdges returns edges with an endpoint that is not indexed.
func (c *Client) ListDanglingEdges(ctx context.Context) ([]store.Edge, error) {
	query := `
	SELECT e.src_id, e.dst_id, e.rel_type
	FROM edges e
	LEFT JOIN people s ON s.person_id = e.src_id
	LEFT JOIN people d ON d.person_id = e.dst_id
	WHERE s.person_id IS NULL OR d.person_id IS NULL
	ORDER BY e.src_id, e.dst_id, e.rel_type
	`

	rows, err := c.db.QueryContext(ctx, query)
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
