// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/bid-engine/pkg/types"
)

const defaultMaxResults = 10

// QueryContext returns up to maxResults ranked snippets from the
// opportunity's documents. Query terms are matched with FTS5 (any term,
// ranked by bm25). An empty query returns the leading chunks of each
// document in ingestion order, which is what the planner uses as a preview.
func (s *Store) QueryContext(ctx context.Context, opportunityID, query string, maxResults int) ([]types.Snippet, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	match := ftsQuery(query)

	var (
		sqlText string
		args    []any
	)
	if match != "" {
		sqlText = `SELECT c.document_id, c.heading, c.content, chunks_fts.rank
			FROM chunks_fts
			JOIN chunks c ON c.rowid = chunks_fts.rowid
			WHERE chunks_fts MATCH ? AND c.opportunity_id = ?
			ORDER BY chunks_fts.rank
			LIMIT ?`
		args = []any{match, opportunityID, maxResults}
	} else {
		sqlText = `SELECT c.document_id, c.heading, c.content, 0 AS rank
			FROM chunks c
			WHERE c.opportunity_id = ?
			ORDER BY c.position, c.document_id
			LIMIT ?`
		args = []any{opportunityID, maxResults}
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	defer rows.Close()

	var snippets []types.Snippet
	for rows.Next() {
		var sn types.Snippet
		if err := rows.Scan(&sn.DocumentID, &sn.Heading, &sn.Content, &sn.Rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		snippets = append(snippets, sn)
	}
	return snippets, rows.Err()
}

// ftsQuery turns free text into an FTS5 expression: each word quoted and
// joined with OR, so punctuation in the input cannot be read as FTS syntax.
func ftsQuery(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	var terms []string
	for _, w := range words {
		w = strings.ToLower(w)
		if len(w) < 2 || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

// DocumentCount returns the number of documents indexed for an opportunity.
func (s *Store) DocumentCount(ctx context.Context, opportunityID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE opportunity_id = ?`, opportunityID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}
