package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"chartedroots/internal/store"
)

const upsertPersonSuffix = `ON CONFLICT (person_id) DO UPDATE SET
	name = excluded.name,
	name_normalized = excluded.name_normalized,
	sex = excluded.sex,
	birth_date = excluded.birth_date,
	death_date = excluded.death_date,
	birth_place = excluded.birth_place,
	death_place = excluded.death_place,
	occupation = excluded.occupation,
	collection = excluded.collection,
	source_file = excluded.source_file,
	source_hash = excluded.source_hash,
	last_indexed = datetime('now')`

func (c *Client) UpsertPerson(ctx context.Context, p store.PersonInput) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("upserting person: empty id")
	}
	query, args, err := psql.Insert("people").
		Columns("person_id", "name", "name_normalized", "sex", "birth_date", "death_date",
			"birth_place", "death_place", "occupation", "collection", "source_file", "source_hash").
		Values(p.ID, p.Name, strings.ToLower(p.Name), p.Sex, p.BirthDate, p.DeathDate,
			p.BirthPlace, p.DeathPlace, p.Occupation, p.Collection, p.SourceFile, p.SourceHash).
		Suffix(upsertPersonSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("building person upsert: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
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
	err = c.db.QueryRowContext(ctx, query, args...).Scan(
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
	if errors.Is(err, sql.ErrNoRows) {
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

	rows, err := c.db.QueryContext(ctx, query, args...)
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

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := psql.Delete("edges").Where(sq.NotEq{"owner_id": currentIDs}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building edge cleanup: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("removing stale edges: %w", err)
	}

	query, args, err = psql.Delete("people").Where(sq.NotEq{"person_id": currentIDs}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building people cleanup: %w", err)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("removing stale people: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing cleanup: %w", err)
	}
	return affected, nil
}

func (c *Client) GetPersonHashes(ctx context.Context) (map[string]string, error) {
	query, args, err := psql.Select("person_id", "source_hash").From("people").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building hash query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
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
