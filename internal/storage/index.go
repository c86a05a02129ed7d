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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"concepto/internal/domain"
	applog "concepto/internal/log"
	"concepto/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-studio derived data under the studio root.
	IndexDirName  = ".concepto"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 3
)

// Document types stored in the index besides the screenplay element types.
const (
	DocStudio     = "studio"
	DocShow       = "show"
	DocEpisode    = "episode"
	DocAsset      = "asset"
	DocShotAudio  = "shot_audio"
	DocShotVisual = "shot_visual"
)

// IndexPath returns the full path to the studio's embedded index database file.
func IndexPath(studioRoot string) string {
	return filepath.Join(studioRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-studio SQLite index exists at .concepto/index.sqlite,
// opens the database, enables WAL mode, and ensures the schema is current.
// Callers close the returned *sql.DB when done.
func InitOrOpenIndex(studioRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", studioRoot),
	)
	if strings.TrimSpace(studioRoot) == "" {
		return nil, errors.New("studio root is required")
	}
	if err := os.MkdirAll(filepath.Join(studioRoot, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}

	path := IndexPath(studioRoot)
	// SQLite URIs want forward slashes
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema so runMigrations can see it
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Lookup indexes for per-episode refreshes and where-used queries
			if err := migrate(ctx, db, next,
				`CREATE INDEX IF NOT EXISTS idx_documents_episode ON documents(episode_id);`,
				`CREATE INDEX IF NOT EXISTS idx_cross_refs_to ON cross_refs(to_id);`,
				`CREATE INDEX IF NOT EXISTS idx_cross_refs_from ON cross_refs(from_id);`,
			); err != nil {
				return err
			}
			// optimize is best effort
			_, _ = db.ExecContext(ctx, `INSERT INTO fts_documents(fts_documents) VALUES('optimize')`)
		case 3:
			// Contentless FTS tables cannot produce snippets; recreate over documents
			if err := migrate(ctx, db, next,
				`DROP TABLE IF EXISTS fts_documents;`,
				ftsDDL,
				`INSERT INTO fts_documents(fts_documents) VALUES('rebuild');`,
			); err != nil {
				return err
			}
		}
		cur = next
	}
	return nil
}

// ftsDDL is the FTS5 index over documents.text. It reads its content from documents so that
// snippet() can quote matches; triggers keep it in step.
const ftsDDL = `CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
	text,
	content='documents',
	content_rowid='doc_id',
	tokenize = 'unicode61'
);`

func migrate(ctx context.Context, db *sql.DB, next int, stmts ...string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", next, err)
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d stmt failed: %w", next, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %d update version: %w", next, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d commit: %w", next, err)
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per searchable text: screenplay element, shot audio/visual, titles, assets.
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id     INTEGER PRIMARY KEY,
			type       TEXT    NOT NULL,
			path       TEXT    NOT NULL,
			episode_id TEXT,
			lang       TEXT,
			scene      INTEGER,
			character  TEXT,
			text       TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_scene ON documents(scene);`,

		ftsDDL,

		// Element or shot -> global asset mentions
		`CREATE TABLE IF NOT EXISTS cross_refs (
			from_id INTEGER NOT NULL,
			to_id   INTEGER NOT NULL,
			PRIMARY KEY(from_id, to_id),
			FOREIGN KEY(from_id) REFERENCES documents(doc_id) ON DELETE CASCADE,
			FOREIGN KEY(to_id)   REFERENCES documents(doc_id) ON DELETE CASCADE
		);`,

		// Autosave history of episode documents
		`CREATE TABLE IF NOT EXISTS document_backups (
			id         INTEGER PRIMARY KEY,
			episode_id TEXT    NOT NULL,
			revision   INTEGER NOT NULL,
			ts         TEXT    NOT NULL,
			data       BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_document_backups_episode_ts ON document_backups(episode_id, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE OF text ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
			INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return ensureThumbnailsSchema(ctx, db)
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, studioRoot string, st domain.Studio) (bool, error) {
	path := IndexPath(studioRoot)
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		backupIndexFile(path)
		removeIndexFiles(path)
		if rbErr := RebuildIndex(ctx, studioRoot, st); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM documents LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	removeIndexFiles(path)
	if err := RebuildIndex(ctx, studioRoot, st); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .concepto/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func removeIndexFiles(indexPath string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(indexPath + suffix)
	}
}

// BuildIndexIfEmpty ensures the DB exists and, if the documents table is empty, populates it from st.
func BuildIndexIfEmpty(ctx context.Context, studioRoot string, st domain.Studio) error {
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents;").Scan(&cnt); err != nil {
		return fmt.Errorf("check documents count: %w", err)
	}
	if cnt > 0 {
		return nil
	}
	return rebuildDocuments(ctx, db, st)
}

// UpdateIndex replaces the indexed documents with the content of st.
func UpdateIndex(ctx context.Context, studioRoot string, st domain.Studio) error {
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildDocuments(ctx, db, st)
}

// RefreshEpisode re-indexes a single episode; other documents are left alone.
// Mentions of global assets are recomputed for the episode's rows.
func RefreshEpisode(ctx context.Context, studioRoot string, st domain.Studio, episodeID string) error {
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE episode_id=?;", episodeID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear episode documents: %w", err)
	}
	if ep := st.FindEpisode(episodeID); ep != nil {
		if err := insertRows(ctx, tx, episodeRows(*ep)); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := linkAssets(ctx, tx, "WHERE d.episode_id = ?", episodeID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RebuildIndex drops and recreates the derived tables and rebuilds content from the manifest.
// It preserves meta/version and the document backup history.
func RebuildIndex(ctx context.Context, studioRoot string, st domain.Studio) error {
	db, err := InitOrOpenIndex(studioRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS cross_refs;",
		"DROP TABLE IF EXISTS thumbnails;",
		"DROP TRIGGER IF EXISTS documents_ai;",
		"DROP TRIGGER IF EXISTS documents_ad;",
		"DROP TRIGGER IF EXISTS documents_au;",
		"DROP TABLE IF EXISTS documents;",
		"DROP TABLE IF EXISTS fts_documents;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	// migration 2 indexes were dropped with their tables
	for _, q := range []string{
		`CREATE INDEX IF NOT EXISTS idx_documents_episode ON documents(episode_id);`,
		`CREATE INDEX IF NOT EXISTS idx_cross_refs_to ON cross_refs(to_id);`,
		`CREATE INDEX IF NOT EXISTS idx_cross_refs_from ON cross_refs(from_id);`,
	} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("recreate indexes: %w", err)
		}
	}
	return rebuildDocuments(ctx, db, st)
}

type docRow struct {
	typeStr   string
	path      string
	episodeID sql.NullString
	lang      sql.NullString
	scene     sql.NullInt64
	character sql.NullString
	text      string
}

// studioRows lists the searchable texts of the studio that do not belong to an episode.
func studioRows(st domain.Studio) []docRow {
	var rows []docRow
	if s := strings.TrimSpace(st.Name); s != "" {
		rows = append(rows, docRow{typeStr: DocStudio, path: "studio:name", text: s})
	}
	if s := strings.TrimSpace(st.Metadata.Notes); s != "" {
		rows = append(rows, docRow{typeStr: DocStudio, path: "studio:notes", text: s})
	}
	for _, sh := range st.Shows {
		text := strings.TrimSpace(sh.Name + "\n" + sh.Description)
		if text != "" {
			rows = append(rows, docRow{typeStr: DocShow, path: "show:" + sh.ID, text: text})
		}
	}
	for _, a := range st.Assets {
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		text := strings.TrimSpace(a.Name + "\n" + a.Description + "\n" + strings.Join(a.Tags, " "))
		rows = append(rows, docRow{typeStr: DocAsset, path: "asset:" + a.ID, character: nullStr(assetCharacter(a)), text: text})
	}
	return rows
}

// episodeRows lists the searchable texts of one episode: its title, every non-empty element of
// both languages and the audio/visual lines of the AV script.
func episodeRows(ep domain.Episode) []docRow {
	var rows []docRow
	eid := nullStr(ep.ID)
	if s := strings.TrimSpace(ep.Title); s != "" {
		rows = append(rows, docRow{typeStr: DocEpisode, path: "episode:" + ep.ID, episodeID: eid, text: s})
	}
	doc := ep.Screenplay
	langs := []domain.Lang{doc.PrimaryLang}
	if doc.HasSecondary {
		langs = append(langs, doc.SecondaryLang)
	}
	for _, lang := range langs {
		scene := 1
		seenHeading := false
		character := ""
		for _, el := range doc.Elements(lang) {
			switch el.Type {
			case domain.SceneSetting:
				if seenHeading {
					scene++
				}
				seenHeading = true
				character = ""
			case domain.Character:
				character = strings.ToLower(strings.TrimSpace(el.Content))
			case domain.Action, domain.General:
				character = ""
			}
			text := strings.TrimSpace(el.Content)
			if text == "" {
				continue
			}
			r := docRow{
				typeStr:   string(el.Type),
				path:      fmt.Sprintf("episode:%s/%s/element:%s", ep.ID, lang, el.ID),
				episodeID: eid,
				lang:      nullStr(string(lang)),
				scene:     sql.NullInt64{Int64: int64(scene), Valid: true},
				text:      text,
			}
			if el.Type == domain.Dialogue || el.Type == domain.Parenthetical || el.Type == domain.Character {
				r.character = nullStr(character)
			}
			rows = append(rows, r)
		}
	}
	av := nullStr(string(ep.AVScript.Lang))
	for _, sh := range ep.AVScript.Shots() {
		scene := sql.NullInt64{Int64: int64(sh.Scene), Valid: true}
		if s := strings.TrimSpace(sh.Audio); s != "" {
			rows = append(rows, docRow{typeStr: DocShotAudio, path: fmt.Sprintf("episode:%s/shot:%s/audio", ep.ID, sh.ID), episodeID: eid, lang: av, scene: scene, text: s})
		}
		if s := strings.TrimSpace(sh.Visual); s != "" {
			rows = append(rows, docRow{typeStr: DocShotVisual, path: fmt.Sprintf("episode:%s/shot:%s/visual", ep.ID, sh.ID), episodeID: eid, lang: av, scene: scene, text: s})
		}
	}
	return rows
}

// IndexedText is one searchable text of an episode as the index stores it. Scene is 0 for
// texts outside a scene.
type IndexedText struct {
	Type      string
	Path      string
	Lang      string
	Scene     int
	Character string
	Text      string
}

// EpisodeTexts lists the searchable texts of an episode, for mirrors that keep their own index.
func EpisodeTexts(ep domain.Episode) []IndexedText {
	rows := episodeRows(ep)
	out := make([]IndexedText, len(rows))
	for i, r := range rows {
		out[i] = IndexedText{Type: r.typeStr, Path: r.path, Lang: r.lang.String, Scene: int(r.scene.Int64), Character: r.character.String, Text: r.text}
	}
	return out
}

func assetCharacter(a domain.GlobalAsset) string {
	if a.Kind != domain.AssetCharacter {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(a.Name))
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rebuildDocuments replaces the documents table content from the given studio.
func rebuildDocuments(ctx context.Context, db *sql.DB, st domain.Studio) error {
	rows := studioRows(st)
	for _, ep := range st.Episodes {
		rows = append(rows, episodeRows(ep)...)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear documents: %w", err)
	}
	if err := insertRows(ctx, tx, rows); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := linkAssets(ctx, tx, "", nil); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, rows []docRow) error {
	ins, err := tx.PrepareContext(ctx, "INSERT INTO documents(type, path, episode_id, lang, scene, character, text) VALUES(?,?,?,?,?,?,?);")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range rows {
		if _, err := ins.ExecContext(ctx, r.typeStr, r.path, r.episodeID, r.lang, r.scene, r.character, r.text); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return nil
}

// linkAssets records a cross reference from every episode document that mentions an asset by
// name (case-insensitive) to that asset. where optionally narrows the source documents.
func linkAssets(ctx context.Context, tx *sql.Tx, where string, arg any) error {
	q := `INSERT OR IGNORE INTO cross_refs(from_id, to_id)
		SELECT d.doc_id, a.doc_id
		FROM documents d JOIN documents a ON a.type = '` + DocAsset + `'
		` + where
	if where == "" {
		q += "WHERE d.episode_id IS NOT NULL"
	} else {
		q += " AND d.episode_id IS NOT NULL"
	}
	q += ` AND instr(lower(d.text), lower(substr(a.text, 1, CASE WHEN instr(a.text, char(10)) > 0 THEN instr(a.text, char(10)) - 1 ELSE length(a.text) END))) > 0`
	var err error
	if arg == nil {
		_, err = tx.ExecContext(ctx, q)
	} else {
		_, err = tx.ExecContext(ctx, q, arg)
	}
	if err != nil {
		return fmt.Errorf("link assets: %w", err)
	}
	return nil
}
