package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"chartedroots/internal/store"
)

func (c *Client) Search(ctx context.Context, query, collection string) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	builder := psql.Select("person_id", "name", "collection").
		Column("ts_rank(search_vector, websearch_to_tsquery('simple', ?)) AS score", query).
		Column("ts_headline('simple', concat_ws(' ', name, birth_place, death_place, occupation), "+
			"websearch_to_tsquery('simple', ?), 'MaxWords=16, MinWords=4, StartSel=**, StopSel=**') AS snippet", query).
		From("people").
		Where("search_vector @@ websearch_to_tsquery('simple', ?)", query).
		OrderBy("score DESC", "name ASC").
		Limit(50)
	if collection != "" {
		builder = builder.Where(sq.Eq{"collection": collection})
	}
	sqlQuery, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building search query: %w", err)
	}

	rows, err := c.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("searching people: %w", err)
	}
	defer rows.Close()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		var score float32
		if err := rows.Scan(&r.ID, &r.Name, &r.Collection, &score, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.Score = float64(score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}
