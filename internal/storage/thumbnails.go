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
	"os"
	"strconv"
	"strings"
	"time"
)

// ensureThumbnailsSchema creates the thumbnail cache table. Rows are keyed by media path and
// target size; last_access drives LRU eviction.
func ensureThumbnailsSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS thumbnails (
			id          INTEGER PRIMARY KEY,
			media_path  TEXT    NOT NULL,
			w           INTEGER NOT NULL DEFAULT 0,
			h           INTEGER NOT NULL DEFAULT 0,
			blob        BLOB    NOT NULL,
			size        INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT    NOT NULL,
			last_access TEXT
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_thumbnails_variant ON thumbnails(media_path, w, h);`,
		`CREATE INDEX IF NOT EXISTS idx_thumbnails_access ON thumbnails(last_access);`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure thumbnails schema: %w", err)
		}
	}
	return nil
}

// GetThumbnail returns the cached thumbnail bytes for a media file and size, or nil when
// nothing is cached. A hit refreshes last_access.
func GetThumbnail(ctx context.Context, studioRoot, mediaPath string, w, h int) ([]byte, error) {
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT blob FROM thumbnails WHERE media_path=? AND w=? AND h=?`, mediaPath, w, h).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query thumbnail: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, _ = db.ExecContext(ctx, `UPDATE thumbnails SET last_access=? WHERE media_path=? AND w=? AND h=?`, now, mediaPath, w, h)
	return blob, nil
}

// PutThumbnail upserts a thumbnail and enforces the cache size cap via LRU eviction.
func PutThumbnail(ctx context.Context, studioRoot, mediaPath string, w, h int, blob []byte) error {
	if len(blob) == 0 {
		return errors.New("empty thumbnail")
	}
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = db.ExecContext(ctx, `INSERT INTO thumbnails(media_path,w,h,blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(media_path,w,h) DO UPDATE SET blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		mediaPath, w, h, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert thumbnail: %w", err)
	}
	if capBytes := MaxThumbnailBytesFromEnv(); capBytes > 0 {
		return EvictThumbnailsToFit(ctx, db, capBytes)
	}
	return nil
}

// GetOrCreateThumbnail fetches a thumbnail or generates and stores it using gen.
func GetOrCreateThumbnail(ctx context.Context, studioRoot, mediaPath string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := GetThumbnail(ctx, studioRoot, mediaPath, w, h); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if err := PutThumbnail(ctx, studioRoot, mediaPath, w, h, data); err != nil {
		return nil, err
	}
	return data, nil
}

// DropThumbnails removes every cached size of a media file.
func DropThumbnails(ctx context.Context, studioRoot, mediaPath string) error {
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, `DELETE FROM thumbnails WHERE media_path=?`, mediaPath)
	return err
}

// EvictThumbnailsToFit deletes least-recently-used rows until total size <= capBytes.
func EvictThumbnailsToFit(ctx context.Context, db *sql.DB, capBytes int64) error {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM thumbnails`).Scan(&total); err != nil {
		return fmt.Errorf("sum thumbnails size: %w", err)
	}
	if total <= capBytes {
		return nil
	}
	rows, err := db.QueryContext(ctx, `SELECT id, size FROM thumbnails ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// the single connection is held by the cursor until it is closed
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM thumbnails WHERE id IN (`+placeholders(len(victims))+`)`, victims...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalThumbnailBytes returns total bytes tracked by thumbnails.size.
func TotalThumbnailBytes(ctx context.Context, studioRoot string) (int64, error) {
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM thumbnails`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// MaxThumbnailBytesFromEnv reads CONCEPTO_THUMBS_MAX_BYTES, defaulting to 128MB if unset.
func MaxThumbnailBytesFromEnv() int64 {
	const def = 128 * 1024 * 1024
	v := strings.TrimSpace(os.Getenv("CONCEPTO_THUMBS_MAX_BYTES"))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
