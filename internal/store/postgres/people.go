package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"chartedroots/internal/store"
)

// Names are weighted above places, places above occupation.
const searchVector = `setweight(to_tsvector('simple', coalesce(?, '')), 'A') ||
    setweight(to_tsvector('simple', coalesce(?, '') || ' ' || coalesce(?, '')), 'B') ||
    setweight(to_tsvector('english', coalesce(?, '')), 'C')`

const upsertPersonSuffix = `ON CONFLICT (person_id) DO UPDATE SET
    name = EXCLUDED.name,
    name_normalized = EXCLUDED.name_normalized,
    sex = EXCLUDED.sex,
    birth_date = EXCLUDED.birth_date,
    death_date = EXCLUDED.death_date,
    birth_place = EXCLUDED.birth_place,
    death_place = EXCLUDED.death_place,
    occupation = EXCLUDED.occupation,
    collection = EXCLUDED.collection,
    source_file = EXCLUDED.source_file,
    source_hash = EXCLUDED.source_hash,
    last_indexed = now(),
    search_vector = EXCLUDED.search_vector`

func (c *Client) UpsertPerson(ctx context.Context, p store.PersonInput) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("upserting person: empty id")
	}
	query, args, err := psql.Insert("people").
		Columns("person_id", "name", "name_normalized", "sex", "birth_date", "death_date",
			"birth_place", "death_place", "occupation", "collection", "source_file", "source_hash", "search_vector").
		Values(p.ID, p.Name, strings.ToLower(p.Name), p.Sex, p.BirthDate, p.DeathDate,
			p.BirthPlace, p.DeathPlace, p.Occupation, p.Collection, p.SourceFile, p.SourceHash,
			sq.Expr(searchVector, p.Name, p.BirthPlace, p.DeathPlace, p.Occupation)).
		Suffix(upsertPersonSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("building person upsert: %w", err)
	}
	if _, err := c.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting person: %w", err)
	}
	return nil
}

func (c *Client) GetPerson(ctx context.Context, id string) (*store.Person, error) {
	query, args, err := psql.Select("person_id", "name", "sex", "birth_date", "death_date",
		"birth_place", "death_place", "occupation", "collection", "source_file", "source_hash").
		From("people").
		Where(sq.Eq{"person_id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building person query: %w", err)
	}

	var p store.Person
	err = c.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.Name,
		&p.Sex,
		&p.BirthDate,
		&p.DeathDate,
		&p.BirthPlace,
		&p.DeathPlace,
		&p.Occupation,
		&p.Collection,
		&p.SourceFile,
		&p.SourceHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting person: %w", err)
	}
	return &p, nil
}

func (c *Client) ListPeople(ctx context.Context, collection string) ([]store.PersonSummary, error) {
	builder := psql.Select("person_id", "name", "sex", "birth_date", "death_date", "collection").
		From("people").
		OrderBy("name_normalized", "person_id")
	if collection != "" {
		builder = builder.Where(sq.Eq{"collection": collection})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building people query: %w", err)
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	defer rows.Close()

	summaries := []store.PersonSummary{}
	for rows.Next() {
		var s store.PersonSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Sex, &s.BirthDate, &s.DeathDate, &s.Collection); err != nil {
			return nil, fmt.Errorf("scanning person summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating people: %w", err)
	}
	return summaries, nil
}

func (c *Client) RemoveStalePeople(ctx context.Context, currentIDs []string) (int64, error) {
	if len(currentIDs) == 0 {
		return 0, nil
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM edges WHERE NOT (owner_id = ANY($1))`, currentIDs); err != nil {
		return 0, fmt.Errorf("removing stale edges: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM people WHERE NOT (person_id = ANY($1))`, currentIDs)
	if err != nil {
		return 0, fmt.Errorf("removing stale people: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing cleanup: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (c *Client) GetPersonHashes(ctx context.Context) (map[string]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT person_id, source_hash FROM people`)
	if err != nil {
		return nil, fmt.Errorf("query person hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("scanning person hash: %w", err)
		}
		hashes[id] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating person hashes: %w", err)
	}
	return hashes, nil
}
