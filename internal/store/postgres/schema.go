package postgres

import (
	"context"
	"fmt"
)

// All statements run in one call, which PostgreSQL executes in an implicit
// transaction.
const ddl = `
CREATE TABLE IF NOT EXISTS people (
    person_id       TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    name_normalized TEXT NOT NULL,
    sex             TEXT NOT NULL DEFAULT '',
    birth_date      TEXT NOT NULL DEFAULT '',
    death_date      TEXT NOT NULL DEFAULT '',
    birth_place     TEXT NOT NULL DEFAULT '',
    death_place     TEXT NOT NULL DEFAULT '',
    occupation      TEXT NOT NULL DEFAULT '',
    collection      TEXT NOT NULL DEFAULT '',
    source_file     TEXT NOT NULL DEFAULT '',
    source_hash     TEXT NOT NULL DEFAULT '',
    last_indexed    TIMESTAMPTZ DEFAULT now(),
    search_vector   TSVECTOR
);

CREATE TABLE IF NOT EXISTS edges (
    src_id   TEXT NOT NULL,
    dst_id   TEXT NOT NULL,
    rel_type TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    CONSTRAINT uq_edge UNIQUE (src_id, dst_id, rel_type)
);

CREATE INDEX IF NOT EXISTS idx_people_search ON people USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_people_collection ON people (collection);
CREATE INDEX IF NOT EXISTS idx_people_name_norm ON people (name_normalized);
CREATE INDEX IF NOT EXISTS idx_edges_src ON edges (src_id);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges (dst_id);
CREATE INDEX IF NOT EXISTS idx_edges_owner ON edges (owner_id);
CREATE INDEX IF NOT EXISTS idx_edges_src_type ON edges (src_id, rel_type);
CREATE INDEX IF NOT EXISTS idx_edges_dst_type ON edges (dst_id, rel_type);
`

func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
