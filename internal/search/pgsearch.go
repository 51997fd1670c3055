package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Postgres is the fallback search backend. It runs a trigram-free ILIKE
// match over cards and boards, scoped to the caller's board ids, so search
// keeps working when Meilisearch is down or not configured.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if len(q.BoardIDs) == 0 {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	pattern := "%" + escapeLike(q.Text) + "%"
	args := []any{pattern}
	placeholders := make([]string, 0, len(q.BoardIDs))
	for _, id := range q.BoardIDs {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	inList := strings.Join(placeholders, ", ")
	args = append(args, limit)
	limitArg := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT 'card' AS kind, c.id, c.board_id, c.title, COALESCE(c.description, '') AS snippet
		FROM cards c
		WHERE c.archived = FALSE
		  AND c.board_id IN (%[1]s)
		  AND (c.title ILIKE $1 OR c.description ILIKE $1)
		UNION ALL
		SELECT 'board' AS kind, b.id, b.id AS board_id, b.title, COALESCE(b.description, '') AS snippet
		FROM boards b
		WHERE b.destroyed = FALSE
		  AND b.id IN (%[1]s)
		  AND (b.title ILIKE $1 OR b.description ILIKE $1)
		ORDER BY kind DESC, title ASC
		LIMIT %[2]s`, inList, limitArg)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("fallback search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Kind, &r.ID, &r.BoardID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		if len(r.Snippet) > 200 {
			r.Snippet = r.Snippet[:200]
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, len(results), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
