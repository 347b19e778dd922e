// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package library

import (
	"context"
	"fmt"
	"strings"
)

// Hit is one page matching a search.
type Hit struct {
	DocumentID string  `json:"documentId"`
	Page       int     `json:"page"`
	Snippet    string  `json:"snippet"`
	Rank       float64 `json:"rank"`
}

// DefaultSearchLimit caps results when the caller passes no limit.
const DefaultSearchLimit = 20

// Search finds pages whose text contains every word of query. An empty
// documentID searches the whole library.
func (s *Store) Search(ctx context.Context, documentID, query string, limit int) ([]Hit, error) {
	match := buildFTSQuery(query)
	if match == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	sqlQuery := `
		SELECT document_id, number, snippet(pages_fts, 2, '[', ']', '...', 12), rank
		FROM pages_fts
		WHERE pages_fts MATCH ?`
	args := []any{match}
	if documentID != "" {
		sqlQuery += " AND document_id = ?"
		args = append(args, documentID)
	}
	sqlQuery += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.DocumentID, &h.Page, &h.Snippet, &h.Rank); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// buildFTSQuery turns free text into an FTS5 query that ANDs each word as
// a quoted string, so operator characters in the input are inert.
func buildFTSQuery(query string) string {
	words := strings.Fields(query)
	if len(words) == 0 {
		return ""
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}
