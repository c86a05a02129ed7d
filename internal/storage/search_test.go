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
	"testing"
	"time"

	"concepto/internal/domain"
)

func TestSearchFilters(t *testing.T) {
	root := t.TempDir()
	if _, err := InitStudio(root, domain.Studio{Name: "Search Test"}); err != nil {
		t.Fatalf("InitStudio error: %v", err)
	}
	db := openRaw(t, root)
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	seed := []struct {
		id      int
		typeStr string
		path    string
		episode any
		lang    any
		scene   any
		char    any
		text    string
	}{
		{1001, "dialogue", "episode:e1/en/element:en-1", "e1", "en", 2, "bob", "Hello there"},
		{1002, "shot_audio", "episode:e1/shot:s1/audio", "e1", "en", 5, nil, "BOB: something else"},
		{1003, "action", "episode:e2/en/element:en-9", "e2", "en", 1, nil, "Beach scene with waves"},
		{1004, "asset", "asset:beach", nil, nil, nil, nil, "Beach"},
	}
	for _, s := range seed {
		_, err := db.ExecContext(ctx, `INSERT INTO documents(doc_id, type, path, episode_id, lang, scene, character, text) VALUES(?,?,?,?,?,?,?,?)`,
			s.id, s.typeStr, s.path, s.episode, s.lang, s.scene, s.char, s.text)
		if err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO cross_refs(from_id, to_id) VALUES(1003, 1004)`); err != nil {
		t.Fatalf("insert cross_ref: %v", err)
	}

	ids := func(rs []SearchResult) map[int64]bool {
		m := map[int64]bool{}
		for _, r := range rs {
			m[r.DocID] = true
		}
		return m
	}

	res, err := Search(ctx, root, SearchQuery{Text: "Hello"})
	if err != nil || !ids(res)[1001] {
		t.Fatalf("FTS search: %v %+v", err, res)
	}
	res, err = Search(ctx, root, SearchQuery{SceneFrom: 2, SceneTo: 5})
	if err != nil || len(res) != 2 || !ids(res)[1001] || !ids(res)[1002] {
		t.Fatalf("scene range: %v %+v", err, res)
	}
	res, err = Search(ctx, root, SearchQuery{Character: "Bob"})
	if err != nil || len(res) != 2 {
		t.Fatalf("character filter: %v %+v", err, res)
	}
	res, err = Search(ctx, root, SearchQuery{EpisodeID: "e2", Types: []string{"action", "dialogue"}})
	if err != nil || len(res) != 1 || res[0].DocID != 1003 || res[0].Scene != 1 {
		t.Fatalf("episode+type filter: %v %+v", err, res)
	}
	res, err = Search(ctx, root, SearchQuery{Limit: 1, Offset: 1})
	if err != nil || len(res) != 1 {
		t.Fatalf("pagination: %v %+v", err, res)
	}
	used, err := WhereUsed(ctx, root, "beach", 10, 0)
	if err != nil || len(used) != 1 || used[0].DocID != 1003 {
		t.Fatalf("where-used: %v %+v", err, used)
	}
	if _, err := Search(ctx, "", SearchQuery{}); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
