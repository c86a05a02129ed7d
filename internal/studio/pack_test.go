/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package studio

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"concepto/internal/avscript"
	"concepto/internal/domain"
)

func TestPackageRoundTripCopiesImages(t *testing.T) {
	ctx := context.Background()
	w, epID := newWorkspace(t, Options{Shots: avscript.GeneratorFunc(shotRows)})
	write(t, w, epID, domain.SceneSetting, "INT. KITCHEN - NIGHT")
	write(t, w, epID, domain.Dialogue, "Nobody is here.")
	res, err := w.GenerateAV(ctx, epID, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	first := res.Script.Shots()[0]
	if _, err := w.SetShotImage(ctx, epID, first.ID, ImageMain, bytes.NewReader(testPNG())); err != nil {
		t.Fatalf("set image: %v", err)
	}

	var buf bytes.Buffer
	n, err := w.ExportPackage(epID, &buf)
	if err != nil || n != 1 {
		t.Fatalf("export package: %d images, %v", n, err)
	}

	showID := w.Studio().Shows[0].ID
	ep, err := w.InstallPackage(ctx, showID, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("install package: %v", err)
	}
	if ep.ID == epID || ep.Number != 2 || ep.Title != "Night Garden" {
		t.Fatalf("unexpected installed episode: %s #%d %q", ep.ID, ep.Number, ep.Title)
	}
	if got := content(t, w, ep.ID, "pl"); len(got) != 2 || got[1] != "Nobody is here." {
		t.Fatalf("screenplay not copied: %q", got)
	}
	shots := ep.AVScript.Shots()
	if len(shots) != 2 {
		t.Fatalf("expected 2 shots, got %d", len(shots))
	}
	img := shots[0].ImageURL
	if !strings.HasPrefix(img, "/media/"+ep.ID+"/") {
		t.Fatalf("image not stored under the new episode: %q", img)
	}
	if !fileExists(filepath.Join(w.Root(), filepath.FromSlash(strings.TrimPrefix(img, "/")))) {
		t.Fatalf("image file missing: %s", img)
	}
}

func TestInstallPackageRejectsGarbage(t *testing.T) {
	w, _ := newWorkspace(t, Options{})
	data := []byte("not a zip")
	_, err := w.InstallPackage(context.Background(), w.Studio().Shows[0].ID, bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
