package sqlite

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"

	"chartedroots/internal/store"
)

func (c *Client) Search(ctx context.Context, query, collection string) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	builder := psql.Select(
		"p.person_id", "p.name", "p.collection",
		"-bm25(people_fts, 10.0, 2.0, 2.0, 1.0) AS score",
		"snippet(people_fts, -1, '**', '**', '...', 16) AS snippet",
	).
		From("people_fts").
		Join("people p ON people_fts.rowid = p.id").
		Where("people_fts MATCH ?", convertWebsearchToFTS5(query)).
		OrderBy("score DESC", "p.name ASC").
		Limit(50)
	if collection != "" {
		builder = builder.Where(sq.Eq{"p.collection": collection})
	}
	sqlQuery, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building search query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("searching people: %w", err)
	}
	defer rows.Close()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		if err := rows.Scan(&r.ID, &r.Name, &r.Collection, &r.Score, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}

// convertWebsearchToFTS5 rewrites web-style search syntax (quoted phrases,
// -negation, implicit AND) into an FTS5 match expression.
func convertWebsearchToFTS5(query string) string {
	var result strings.Builder
	var inQuote bool
	var current strings.Builder

	flushToken := func() {
		token := current.String()
		current.Reset()
		if token == "" {
			return
		}

		upper := strings.ToUpper(token)
		switch upper {
		case "AND", "OR", "NOT":
			if result.Len() > 0 {
				result.WriteString(" ")
			}
			result.WriteString(upper)
			return
		}

		negated := strings.HasPrefix(token, "-") && len(token) > 1
		if negated {
			token = token[1:]
		}
		if result.Len() > 0 {
			switch last := lastWord(result.String()); {
			case last == "AND" || last == "OR" || last == "NOT":
				result.WriteString(" ")
			case negated:
				result.WriteString(" NOT ")
			default:
				result.WriteString(" AND ")
			}
		}
		result.WriteString(bareword(token))
	}

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '"':
			if inQuote {
				inQuote = false
				token := current.String()
				current.Reset()
				if token != "" {
					if result.Len() > 0 {
						result.WriteString(" AND ")
					}
					result.WriteString(`"`)
					result.WriteString(token)
					result.WriteString(`"`)
				}
			} else {
				flushToken()
				inQuote = true
			}
		case inQuote:
			current.WriteByte(ch)
		case ch == ' ' || ch == '\t':
			flushToken()
		default:
			current.WriteByte(ch)
		}
	}

	flushToken()

	return result.String()
}

// bareword quotes tokens FTS5 would not accept unquoted, such as O'Brien or
// Mary-Ann. A trailing * stays outside the quotes as a prefix match.
func bareword(token string) string {
	prefix := strings.HasSuffix(token, "*")
	word := strings.TrimSuffix(token, "*")
	plain := word != ""
	for _, r := range word {
		if r < utf8.RuneSelf && !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			plain = false
			break
		}
	}
	if plain {
		return token
	}
	quoted := `"` + strings.ReplaceAll(word, `"`, `""`) + `"`
	if prefix {
		quoted += "*"
	}
	return quoted
}

func lastWord(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}
