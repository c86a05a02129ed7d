/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pack moves episodes between studios as zip archives holding the episode JSON and
// the images its shots reference.
package pack

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"concepto/internal/domain"
	applog "concepto/internal/log"
	"concepto/internal/storage"
)

// Archive entry names.
const (
	ManifestName = "pack.manifest.txt"
	EpisodeName  = "episode.json"
)

// ErrInvalidPack is returned for archives without a readable episode or with unsafe entries.
var ErrInvalidPack = errors.New("invalid episode pack")

// Contents is a read pack. Media is keyed by the URL the shots use, e.g. "/media/ep/x.png".
type Contents struct {
	Episode domain.Episode
	Media   map[string][]byte
}

// ShotImages returns the image URLs of a shot that point into the studio's media directory.
func ShotImages(sh domain.AVShot) []string {
	var out []string
	for _, u := range []string{sh.ImageURL, sh.StartFrameURL, sh.EndFrameURL} {
		if strings.HasPrefix(u, "/"+storage.MediaDirName+"/") {
			out = append(out, u)
		}
	}
	return out
}

// Write packs ep and the stored images of its shots. Images missing on disk are skipped.
// It returns the number of images written.
func Write(w io.Writer, studioRoot string, ep domain.Episode) (int, error) {
	l := applog.WithOperation(applog.WithComponent("pack"), "write").With(slog.String("episode", ep.ID))
	zw := zip.NewWriter(w)

	manifest := fmt.Sprintf("Concepto Episode Pack\nCreated: %s\nEpisode: %s (#%d %s)\nElements: %d\nShots: %d\n",
		time.Now().Format(time.RFC3339), ep.ID, ep.Number, ep.Title, len(ep.Screenplay.Slots), len(ep.AVScript.Shots()))
	if err := writeEntry(zw, ManifestName, []byte(manifest)); err != nil {
		return 0, err
	}
	data, err := json.MarshalIndent(ep, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal episode: %w", err)
	}
	if err := writeEntry(zw, EpisodeName, data); err != nil {
		return 0, err
	}

	added := 0
	seen := map[string]bool{}
	for _, sh := range ep.AVScript.Shots() {
		for _, u := range ShotImages(sh) {
			if seen[u] {
				continue
			}
			seen[u] = true
			abs, err := storage.MediaPath(studioRoot, strings.TrimPrefix(u, "/"))
			if err != nil {
				return added, err
			}
			b, err := os.ReadFile(abs)
			if err != nil {
				l.Warn("skip missing image", slog.String("url", u), slog.Any("err", err))
				continue
			}
			if err := writeEntry(zw, strings.TrimPrefix(u, "/"), b); err != nil {
				return added, err
			}
			added++
		}
	}
	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("finish zip: %w", err)
	}
	l.Info("episode packed", slog.Int("images", added))
	return added, nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Read opens a pack. The screenplay is validated like an uploaded document; entries outside
// media/ and the manifest are ignored, and entries larger than the media limit are rejected.
func Read(r io.ReaderAt, size int64) (Contents, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Contents{}, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}
	out := Contents{Media: map[string][]byte{}}
	found := false
	for _, f := range zr.File {
		name := f.Name
		if f.FileInfo().IsDir() || name == ManifestName {
			continue
		}
		if f.UncompressedSize64 > uint64(storage.DefaultMaxMediaBytes) {
			return Contents{}, fmt.Errorf("%w: %s is too large", ErrInvalidPack, name)
		}
		if name != EpisodeName && !safeMediaName(name) {
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			return Contents{}, err
		}
		if name == EpisodeName {
			if err := decodeEpisode(b, &out.Episode); err != nil {
				return Contents{}, err
			}
			found = true
			continue
		}
		out.Media["/"+name] = b
	}
	if !found {
		return Contents{}, fmt.Errorf("%w: %s missing", ErrInvalidPack, EpisodeName)
	}
	return out, nil
}

func safeMediaName(name string) bool {
	if !strings.HasPrefix(name, storage.MediaDirName+"/") || strings.Contains(name, "\\") {
		return false
	}
	return path.Clean(name) == name
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidPack, f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, storage.DefaultMaxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidPack, f.Name, err)
	}
	if int64(len(b)) > storage.DefaultMaxMediaBytes {
		return nil, fmt.Errorf("%w: %s is too large", ErrInvalidPack, f.Name)
	}
	return b, nil
}

func decodeEpisode(b []byte, ep *domain.Episode) error {
	var raw struct {
		Screenplay json.RawMessage `json:"screenplay"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}
	if err := json.Unmarshal(b, ep); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}
	if len(bytes.TrimSpace(raw.Screenplay)) == 0 {
		return fmt.Errorf("%w: episode has no screenplay", ErrInvalidPack)
	}
	doc, err := storage.DecodeDocument(raw.Screenplay, ep.Screenplay.PrimaryLang, ep.Screenplay.SecondaryLang)
	if err != nil {
		return err
	}
	ep.Screenplay = doc
	return nil
}
