// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vaultindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SearchResult is one indexed note matching a full-text query.
type SearchResult struct {
	Basename       string   `json:"basename" yaml:"basename"`
	Path           string   `json:"path" yaml:"path"`
	Title          string   `json:"title" yaml:"title"`
	ParentBasename string   `json:"parent_basename,omitempty" yaml:"parent_basename,omitempty"`
	Level          int      `json:"level" yaml:"level"`
	Concepts       []string `json:"concepts,omitempty" yaml:"concepts,omitempty"`
	Snippet        string   `json:"snippet" yaml:"snippet"`
}

// Search runs an FTS5 full-text query over note titles and bodies. Results
// are relevance-ranked; maxResults of 0 uses the store default.
func (s *Store) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search query required")
	}
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT n.basename, n.path, n.title, n.parent_basename, n.level, n.concepts,
			snippet(notes_fts, 1, '[', ']', ' … ', 12)
		 FROM notes_fts
		 JOIN notes n ON n.rowid = notes_fts.rowid
		 WHERE notes_fts MATCH ?
		 ORDER BY notes_fts.rank
		 LIMIT ?`,
		query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("querying vault index: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r            SearchResult
			parent       sql.NullString
			conceptsJSON sql.NullString
		)
		if err := rows.Scan(&r.Basename, &r.Path, &r.Title, &parent, &r.Level, &conceptsJSON, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.ParentBasename = parent.String
		if conceptsJSON.Valid && conceptsJSON.String != "" {
			if err := json.Unmarshal([]byte(conceptsJSON.String), &r.Concepts); err != nil {
				return nil, fmt.Errorf("parsing concepts for %s: %w", r.Basename, err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
