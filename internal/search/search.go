// Package search indexes and queries cards and boards. Meilisearch is the
// primary backend; a Postgres fallback keeps search available when it is
// down or not configured.
package search

// Query is a card/board search request, scoped to the boards the requesting
// user is a member of.
type Query struct {
	Text     string
	BoardIDs []string
	Limit    int
}

type Result struct {
	Kind    string `json:"kind"` // "card" or "board"
	ID      string `json:"id"`
	BoardID string `json:"boardId,omitempty"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// CardRecord is the indexed projection of a card.
type CardRecord struct {
	ID          string `json:"id"`
	BoardID     string `json:"boardId"`
	ColumnID    string `json:"columnId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Archived    bool   `json:"archived"`
}

// BoardRecord is the indexed projection of a board.
type BoardRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Destroyed   bool   `json:"destroyed"`
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
