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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"concepto/internal/domain"
	applog "concepto/internal/log"
)

const (
	ManifestFileName = "studio.json"
	BackupsDirName   = "backups"
	MediaDirName     = "media"
	ExportsDirName   = "exports"
	ImportsDirName   = "imports"
)

// Standard subfolders of a studio directory.
var standardSubDirs = []string{
	MediaDirName,
	ExportsDirName,
	ImportsDirName,
	BackupsDirName,
}

// StudioHandle keeps track of the studio state loaded/saved from disk.
// Root is the studio directory containing studio.json and subfolders.
// Studio holds the in-memory representation of the manifest.
type StudioHandle struct {
	Root         string
	ManifestPath string
	Studio       domain.Studio
}

// InitStudio creates a new studio directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, writes the manifest transactionally and builds the index.
func InitStudio(root string, st domain.Studio) (*StudioHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create studio root: %w", err)
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	if st.Shows == nil {
		st.Shows = []domain.Show{}
	}
	if st.Episodes == nil {
		st.Episodes = []domain.Episode{}
	}
	h := &StudioHandle{
		Root:         root,
		ManifestPath: filepath.Join(root, ManifestFileName),
		Studio:       st,
	}
	if err := Save(h); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := BuildIndexIfEmpty(ctx, root, h.Studio); err != nil {
		// the index is derived; a failed first build only costs search until the next refresh
		applog.WithComponent("storage").Warn("initial index build failed", slog.Any("err", err))
	}
	return h, nil
}

// Open loads an existing studio from the given root directory.
// If the current manifest cannot be read or parsed, it will attempt the latest backup.
func Open(root string) (*StudioHandle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open")
	mpath := filepath.Join(root, ManifestFileName)
	b, err := os.ReadFile(mpath)
	if err != nil {
		st, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open manifest: %w; backup attempt: %v", err, berr)
		}
		l.Warn("manifest unreadable, opened latest backup", slog.Any("err", err))
		return &StudioHandle{Root: root, ManifestPath: mpath, Studio: *st}, nil
	}
	var st domain.Studio
	if uerr := json.Unmarshal(b, &st); uerr != nil {
		bst, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("parse manifest: %w; backup attempt: %v", uerr, berr)
		}
		l.Warn("manifest corrupt, opened latest backup", slog.Any("err", uerr))
		return &StudioHandle{Root: root, ManifestPath: mpath, Studio: *bst}, nil
	}
	if problems := ValidateManifest(b); len(problems) > 0 {
		l.Warn("manifest does not match schema", slog.Int("problems", len(problems)), slog.String("first", problems[0]))
	}
	return &StudioHandle{Root: root, ManifestPath: mpath, Studio: st}, nil
}

// Save writes the current StudioHandle.Studio to disk with transactional semantics
// and a timestamped backup of the previous manifest (if present).
func Save(h *StudioHandle) error {
	if h == nil {
		return errors.New("nil StudioHandle")
	}
	if h.Root == "" || h.ManifestPath == "" {
		return errors.New("invalid StudioHandle: missing paths")
	}
	data, err := json.MarshalIndent(h.Studio, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	// Keep the previous manifest before replacing it
	if _, statErr := os.Stat(h.ManifestPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bname := fmt.Sprintf("%s.%s.bak", ManifestFileName, stamp)
		if cerr := copyFile(h.ManifestPath, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current manifest: %w", cerr)
		}
	}

	// Transactional write: to temp file in same directory, then rename over target
	dir := filepath.Dir(h.ManifestPath)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", ManifestFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp manifest: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(h.ManifestPath); err == nil {
		_ = os.Remove(h.ManifestPath)
	}
	if rerr := os.Rename(temp, h.ManifestPath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace manifest: %w", rerr)
	}
	return nil
}

// SaveAs writes the manifest to a new root folder, scaffolding structure if needed, and updates the handle.
// Media files are not copied.
func SaveAs(h *StudioHandle, newRoot string) error {
	if h == nil {
		return errors.New("nil StudioHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := os.MkdirAll(newRoot, 0o755); err != nil {
		return fmt.Errorf("create new root: %w", err)
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	h.Root = newRoot
	h.ManifestPath = filepath.Join(newRoot, ManifestFileName)
	return Save(h)
}

// AutosaveCrashSnapshot writes the in-memory studio next to the backups without touching
// studio.json. It is meant for panic handlers and returns the written path.
func AutosaveCrashSnapshot(h *StudioHandle) (string, error) {
	if h == nil {
		return "", errors.New("nil StudioHandle")
	}
	data, err := json.MarshalIndent(h.Studio, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash snapshot: %w", err)
	}
	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", ManifestFileName, time.Now().Format("20060102-150405")))
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// PruneBackups keeps the newest keep manifest backups and removes the rest.
// It returns how many files were removed.
func PruneBackups(root string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	candidates, err := manifestBackups(root)
	if err != nil {
		return 0, err
	}
	if len(candidates) <= keep {
		return 0, nil
	}
	removed := 0
	for _, p := range candidates[:len(candidates)-keep] {
		if err := os.Remove(p); err != nil {
			return removed, fmt.Errorf("remove backup: %w", err)
		}
		removed++
	}
	return removed, nil
}

func scaffold(root string) error {
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// manifestBackups lists manifest backups oldest first; the timestamp in the name sorts lexicographically.
func manifestBackups(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

func openFromLatestBackup(root string) (*domain.Studio, error) {
	candidates, err := manifestBackups(root)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	latest := candidates[len(candidates)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	var st domain.Studio
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse latest backup: %w", err)
	}
	return &st, nil
}
