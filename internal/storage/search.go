/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes a studio search request.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Filters are optional. Types are element types ("dialogue", "action", ...) or one of the Doc* kinds.
// SceneFrom/To are inclusive; 0 means unset.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text      string
	Character string
	EpisodeID string
	Lang      string
	Types     []string
	SceneFrom int
	SceneTo   int
	Limit     int
	Offset    int
}

// SearchResult represents a single match row.
// Snippet is a highlighted excerpt using [ ] markers when FTS text is used.
// Scene is 0 when the document does not belong to a scene.
type SearchResult struct {
	DocID     int64  `json:"docId"`
	Type      string `json:"type"`
	Path      string `json:"path"`
	EpisodeID string `json:"episodeId,omitempty"`
	Lang      string `json:"lang,omitempty"`
	Scene     int    `json:"scene,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty, it falls back to a non-FTS scan over documents with filters applied.
func Search(ctx context.Context, studioRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(studioRoot) == "" {
		return nil, errors.New("studio root is required")
	}
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

const resultColumns = "d.doc_id, d.type, d.path, COALESCE(d.episode_id,''), COALESCE(d.lang,''), COALESCE(d.scene,0)"

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT " + resultColumns + ", snippet(fts_documents, 0, '[', ']', '...', 10)\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT " + resultColumns + ", ''\n")
		sb.WriteString("FROM documents d\nWHERE 1=1\n")
	}
	if len(q.Types) > 0 {
		sb.WriteString(" AND d.type IN (" + placeholders(len(q.Types)) + ")\n")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if s := strings.TrimSpace(q.EpisodeID); s != "" {
		sb.WriteString(" AND d.episode_id = ?\n")
		args = append(args, s)
	}
	if s := strings.TrimSpace(q.Lang); s != "" {
		sb.WriteString(" AND d.lang = ?\n")
		args = append(args, s)
	}
	if q.SceneFrom > 0 && q.SceneTo > 0 && q.SceneTo >= q.SceneFrom {
		sb.WriteString(" AND d.scene BETWEEN ? AND ?\n")
		args = append(args, q.SceneFrom, q.SceneTo)
	} else if q.SceneFrom > 0 {
		sb.WriteString(" AND d.scene >= ?\n")
		args = append(args, q.SceneFrom)
	} else if q.SceneTo > 0 {
		sb.WriteString(" AND d.scene <= ?\n")
		args = append(args, q.SceneTo)
	}
	// Character: the speaker recorded at index time, else a "NAME:" mention in shot audio
	if s := strings.TrimSpace(q.Character); s != "" {
		ss := strings.ToLower(s)
		sb.WriteString(" AND ( (d.character IS NOT NULL AND d.character = ?) OR lower(d.text) LIKE ? )\n")
		args = append(args, ss, likeContains(ss+":"))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY d.episode_id NULLS FIRST, d.scene NULLS FIRST, d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	return queryResults(ctx, db, "search query", sb.String(), args...)
}

// WhereUsed returns episode documents that mention the global asset with the given id.
func WhereUsed(ctx context.Context, studioRoot string, assetID string, limit, offset int) ([]SearchResult, error) {
	if strings.TrimSpace(studioRoot) == "" {
		return nil, errors.New("studio root is required")
	}
	if strings.TrimSpace(assetID) == "" {
		return nil, errors.New("asset id is required")
	}
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + resultColumns + `, ''
		FROM cross_refs x
		JOIN documents a ON a.doc_id = x.to_id
		JOIN documents d ON d.doc_id = x.from_id
		WHERE a.path = ?
		ORDER BY d.episode_id, d.scene NULLS FIRST, d.doc_id
		LIMIT ? OFFSET ?`
	return queryResults(ctx, db, "where-used query", q, "asset:"+assetID, limit, offset)
}

func queryResults(ctx context.Context, db *sql.DB, what, q string, args ...any) ([]SearchResult, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		var scene int64
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.Type, &r.Path, &r.EpisodeID, &r.Lang, &scene, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Scene = int(scene)
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func likeContains(s string) string { return "%" + s + "%" }

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
