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
	"time"
)

// language=SQL
// dialect=SQLite
const insertDocumentBackupSQL = `INSERT INTO document_backups(episode_id, revision, ts, data) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestDocumentBackupSQL = `SELECT id, episode_id, revision, ts, data FROM document_backups WHERE episode_id = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const selectDocumentBackupSQL = `SELECT id, episode_id, revision, ts, data FROM document_backups WHERE episode_id = ? AND id = ?`

// language=SQL
// dialect=SQLite
const listDocumentBackupsSQL = `SELECT id, episode_id, revision, ts, data FROM document_backups WHERE episode_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneDocumentBackupsSQL = `DELETE FROM document_backups WHERE episode_id = ? AND id NOT IN (
	SELECT id FROM document_backups WHERE episode_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// DocumentBackup is one stored copy of an episode's screenplay document.
type DocumentBackup struct {
	ID        int64     `json:"id"`
	EpisodeID string    `json:"episodeId"`
	Revision  int64     `json:"revision"`
	TS        time.Time `json:"ts"`
	Data      []byte    `json:"-"`
}

// SaveDocumentBackup stores a serialized document with its revision and timestamp.
// The history lives in the derived index and is meant for recovering recent autosaves,
// not as canonical storage.
func SaveDocumentBackup(ctx context.Context, h *StudioHandle, episodeID string, revision int64, data []byte, ts time.Time) error {
	if h == nil {
		return errors.New("nil StudioHandle")
	}
	if episodeID == "" {
		return errors.New("episode id is required")
	}
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertDocumentBackupSQL, episodeID, revision, ts.UTC().Format(time.RFC3339Nano), data)
	return err
}

// LatestDocumentBackup returns the newest backup of an episode, or nil if there is none.
func LatestDocumentBackup(ctx context.Context, h *StudioHandle, episodeID string) (*DocumentBackup, error) {
	if h == nil {
		return nil, errors.New("nil StudioHandle")
	}
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	b, err := scanBackup(db.QueryRowContext(ctx, selectLatestDocumentBackupSQL, episodeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetDocumentBackup returns one backup of an episode by id, or ErrNotFound.
func GetDocumentBackup(ctx context.Context, h *StudioHandle, episodeID string, id int64) (DocumentBackup, error) {
	if h == nil {
		return DocumentBackup{}, errors.New("nil StudioHandle")
	}
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return DocumentBackup{}, err
	}
	defer func() { _ = db.Close() }()
	b, err := scanBackup(db.QueryRowContext(ctx, selectDocumentBackupSQL, episodeID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentBackup{}, fmt.Errorf("backup %d of episode %s: %w", id, episodeID, ErrNotFound)
	}
	return b, err
}

// ListDocumentBackups returns up to limit most recent backups of an episode, newest first.
func ListDocumentBackups(ctx context.Context, h *StudioHandle, episodeID string, limit int) ([]DocumentBackup, error) {
	if h == nil {
		return nil, errors.New("nil StudioHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listDocumentBackupsSQL, episodeID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []DocumentBackup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PruneDocumentBackups keeps at most keepLast backups of the episode and deletes older ones.
func PruneDocumentBackups(ctx context.Context, h *StudioHandle, episodeID string, keepLast int) (int64, error) {
	if h == nil {
		return 0, errors.New("nil StudioHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(h.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneDocumentBackupsSQL, episodeID, episodeID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackup(s rowScanner) (DocumentBackup, error) {
	var b DocumentBackup
	var tsStr string
	if err := s.Scan(&b.ID, &b.EpisodeID, &b.Revision, &tsStr, &b.Data); err != nil {
		return DocumentBackup{}, err
	}
	// a bad timestamp still returns the data
	b.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
	return b, nil
}
