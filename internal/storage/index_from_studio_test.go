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
)

func TestIndexBuildFromStudioFTSAndWhereUsed(t *testing.T) {
	root := t.TempDir()
	st := sampleStudio()
	if _, err := InitStudio(root, st); err != nil {
		t.Fatalf("InitStudio: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RebuildIndex(ctx, root, st); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	res, err := Search(ctx, root, SearchQuery{Text: "robot", Lang: "en"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 english hits for 'robot', got %+v", res)
	}
	if res[0].Snippet == "" || res[0].EpisodeID != "ep1" {
		t.Fatalf("expected snippet and episode id: %+v", res[0])
	}
	res, err = Search(ctx, root, SearchQuery{Character: "ada"})
	if err != nil || len(res) == 0 {
		t.Fatalf("Search character: %v len=%d", err, len(res))
	}
	for _, r := range res {
		if r.Type == "action" {
			t.Fatalf("action line attributed to a speaker: %+v", r)
		}
	}
	used, err := WhereUsed(ctx, root, "ada", 0, 0)
	if err != nil {
		t.Fatalf("WhereUsed: %v", err)
	}
	if len(used) == 0 {
		t.Fatalf("expected elements mentioning Ada")
	}
	for _, u := range used {
		if u.EpisodeID != "ep1" {
			t.Fatalf("unexpected where-used row: %+v", u)
		}
	}
}

func TestRefreshEpisodeReplacesOnlyThatEpisode(t *testing.T) {
	root := t.TempDir()
	st := sampleStudio()
	if _, err := InitStudio(root, st); err != nil {
		t.Fatalf("InitStudio: %v", err)
	}
	ctx := context.Background()
	st.Episodes[0].Screenplay.Slots[4].Secondary.Content = "A submarine surfaces."
	if err := RefreshEpisode(ctx, root, st, "ep1"); err != nil {
		t.Fatalf("RefreshEpisode: %v", err)
	}
	res, err := Search(ctx, root, SearchQuery{Text: "submarine"})
	if err != nil || len(res) != 1 {
		t.Fatalf("expected refreshed text to be searchable: %v %+v", err, res)
	}
	res, err = Search(ctx, root, SearchQuery{Text: "garden", Types: []string{"action"}})
	if err != nil || len(res) != 0 {
		t.Fatalf("stale text still indexed: %v %+v", err, res)
	}
	// studio level rows survive
	res, err = Search(ctx, root, SearchQuery{Types: []string{DocAsset, DocShow}})
	if err != nil || len(res) != 2 {
		t.Fatalf("studio rows lost: %v %+v", err, res)
	}
	// removed episode disappears
	st.Episodes = nil
	if err := RefreshEpisode(ctx, root, st, "ep1"); err != nil {
		t.Fatalf("RefreshEpisode removed: %v", err)
	}
	res, err = Search(ctx, root, SearchQuery{EpisodeID: "ep1"})
	if err != nil || len(res) != 0 {
		t.Fatalf("expected no rows for removed episode: %v %+v", err, res)
	}
}
