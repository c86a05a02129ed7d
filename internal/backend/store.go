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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"concepto/internal/domain"
	"concepto/internal/storage"
)

// ErrNotFound is returned for episodes missing from the mirror.
var ErrNotFound = errors.New("backend: episode not found")

// EpisodeInfo is the listing projection of a mirrored episode.
type EpisodeInfo struct {
	ID        string    `json:"id"`
	ShowID    string    `json:"showId"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveEpisode upserts ep and replaces its searchable texts. It returns the new version.
func (s *PGStore) SaveEpisode(ctx context.Context, ep domain.Episode) (int64, error) {
	data, err := json.Marshal(ep)
	if err != nil {
		return 0, fmt.Errorf("encode episode %s: %w", ep.ID, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int64
	err = tx.QueryRowContext(ctx, `INSERT INTO episodes(id, show_id, number, title, data, version, updated_at)
		VALUES($1, $2, $3, $4, $5, 1, now())
		ON CONFLICT (id) DO UPDATE SET
			show_id = EXCLUDED.show_id, number = EXCLUDED.number, title = EXCLUDED.title,
			data = EXCLUDED.data, version = episodes.version + 1, updated_at = now()
		RETURNING version`, ep.ID, ep.ShowID, ep.Number, ep.Title, string(data)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("upsert episode %s: %w", ep.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE episode_id = $1`, ep.ID); err != nil {
		return 0, fmt.Errorf("clear documents: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO documents(episode_id, doc_type, path, lang, scene, character, raw_text)
		VALUES($1, $2, $3, NULLIF($4, ''), NULLIF($5, 0), NULLIF($6, ''), $7)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = ins.Close() }()
	texts := storage.EpisodeTexts(ep)
	for _, t := range texts {
		if _, err := ins.ExecContext(ctx, ep.ID, t.Type, t.Path, t.Lang, t.Scene, t.Character, t.Text); err != nil {
			return 0, fmt.Errorf("insert document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("episode mirrored", slog.String("episode", ep.ID), slog.Int64("version", version), slog.Int("documents", len(texts)))
	return version, nil
}

// LoadEpisode returns a mirrored episode and its version.
func (s *PGStore) LoadEpisode(ctx context.Context, id string) (domain.Episode, int64, error) {
	var (
		data    []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT data, version FROM episodes WHERE id = $1`, id).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Episode{}, 0, fmt.Errorf("episode %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Episode{}, 0, fmt.Errorf("load episode %s: %w", id, err)
	}
	var ep domain.Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return domain.Episode{}, 0, fmt.Errorf("decode episode %s: %w", id, err)
	}
	return ep, version, nil
}

// ListEpisodes lists mirrored episodes, most recently updated first.
func (s *PGStore) ListEpisodes(ctx context.Context) ([]EpisodeInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, show_id, number, title, version, updated_at FROM episodes ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []EpisodeInfo
	for rows.Next() {
		var e EpisodeInfo
		if err := rows.Scan(&e.ID, &e.ShowID, &e.Number, &e.Title, &e.Version, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEpisode removes an episode and its documents from the mirror.
func (s *PGStore) DeleteEpisode(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete episode %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("episode %s: %w", id, ErrNotFound)
	}
	return nil
}
