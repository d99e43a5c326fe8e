package sqlite

import (
	"context"
	"fmt"
	"strings"
)

const ddl = `
CREATE TABLE IF NOT EXISTS people (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	person_id       TEXT NOT NULL UNIQUE,
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
	last_indexed    TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS edges (
	src_id   TEXT NOT NULL,
	dst_id   TEXT NOT NULL,
	rel_type TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	CONSTRAINT uq_edge UNIQUE (src_id, dst_id, rel_type)
);

CREATE INDEX IF NOT EXISTS idx_people_collection ON people (collection);
CREATE INDEX IF NOT EXISTS idx_people_name_norm ON people (name_normalized);
CREATE INDEX IF NOT EXISTS idx_edges_src ON edges (src_id);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges (dst_id);
CREATE INDEX IF NOT EXISTS idx_edges_owner ON edges (owner_id);
CREATE INDEX IF NOT EXISTS idx_edges_src_type ON edges (src_id, rel_type);
CREATE INDEX IF NOT EXISTS idx_edges_dst_type ON edges (dst_id, rel_type);

CREATE VIRTUAL TABLE IF NOT EXISTS people_fts USING fts5(
	name,
	birth_place,
	death_place,
	occupation,
	content=people,
	content_rowid=id
);

CREATE TRIGGER IF NOT EXISTS people_ai AFTER INSERT ON people BEGIN
	INSERT INTO people_fts(rowid, name, birth_place, death_place, occupation)
	VALUES (new.id, new.name, new.birth_place, new.death_place, new.occupation);
END;

CREATE TRIGGER IF NOT EXISTS people_ad AFTER DELETE ON people BEGIN
	INSERT INTO people_fts(people_fts, rowid, name, birth_place, death_place, occupation)
	VALUES ('delete', old.id, old.name, old.birth_place, old.death_place, old.occupation);
END;

CREATE TRIGGER IF NOT EXISTS people_au AFTER UPDATE ON people BEGIN
	INSERT INTO people_fts(people_fts, rowid, name, birth_place, death_place, occupation)
	VALUES ('delete', old.id, old.name, old.birth_place, old.death_place, old.occupation);
	INSERT INTO people_fts(rowid, name, birth_place, death_place, occupation)
	VALUES (new.id, new.name, new.birth_place, new.death_place, new.occupation);
END;
`

func (c *Client) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}
	return nil
}

// splitStatements splits on trailing semicolons, keeping trigger bodies
// (BEGIN ... END;) together.
func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder
	inBody := false

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		upper := strings.ToUpper(stripped)
		if strings.HasSuffix(upper, " BEGIN") {
			inBody = true
			continue
		}
		if inBody {
			if upper == "END;" {
				inBody = false
				statements = append(statements, current.String())
				current.Reset()
			}
			continue
		}
		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
