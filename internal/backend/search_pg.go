/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"fmt"
	"strings"

	"concepto/internal/storage"
)

// Search runs q over the mirrored documents with Postgres full-text search. Results use the
// shape of the local index so callers can treat both alike; Text is matched as plain terms.
func (s *PGStore) Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		p := place(text)
		b.WriteString("SELECT d.id, d.doc_type, d.path, d.episode_id, COALESCE(d.lang,''), COALESCE(d.scene,0), ")
		b.WriteString("COALESCE(ts_headline('simple', d.raw_text, plainto_tsquery('simple', " + p + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM documents d WHERE d.search_vector @@ plainto_tsquery('simple', " + p + ") ")
	} else {
		b.WriteString("SELECT d.id, d.doc_type, d.path, d.episode_id, COALESCE(d.lang,''), COALESCE(d.scene,0), '' ")
		b.WriteString("FROM documents d WHERE TRUE ")
	}
	if q.EpisodeID != "" {
		b.WriteString(" AND d.episode_id = " + place(q.EpisodeID))
	}
	if q.Lang != "" {
		b.WriteString(" AND d.lang = " + place(q.Lang))
	}
	if len(q.Types) > 0 {
		b.WriteString(" AND d.doc_type = ANY (" + place(q.Types) + ")")
	}
	if q.SceneFrom > 0 {
		b.WriteString(" AND d.scene >= " + place(q.SceneFrom))
	}
	if q.SceneTo > 0 {
		b.WriteString(" AND d.scene <= " + place(q.SceneTo))
	}
	if c := strings.ToLower(strings.TrimSpace(q.Character)); c != "" {
		b.WriteString(" AND d.character = " + place(c))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(q.Offset, 0)
	b.WriteString(" ORDER BY d.episode_id, d.scene NULLS FIRST, d.id")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.DocID, &r.Type, &r.Path, &r.EpisodeID, &r.Lang, &r.Scene, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
