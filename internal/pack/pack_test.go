/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pack

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"concepto/internal/domain"
	"concepto/internal/screenplay"
)

func episode() domain.Episode {
	e := screenplay.New(screenplay.NewDocument("pl", "en", "Noc"))
	s := screenplay.NewSession("pl")
	id := e.AddElement(s, domain.Action, "")
	e.UpdateContent(s, id, "Ada czeka.")
	return domain.Episode{
		ID: "ep1", ShowID: "show1", Number: 1, Title: "Noc",
		Screenplay: *e.Document(),
		AVScript: domain.AVScript{Segments: []domain.AVSegment{{ID: "seg1", SegmentNumber: 1, Shots: []domain.AVShot{
			{ID: "shot1", ShotNumber: "1.1", ImageURL: "/media/ep1/shot1-main.png", StartFrameURL: "https://elsewhere.test/a.png"},
			{ID: "shot2", ShotNumber: "1.2", EndFrameURL: "/media/ep1/missing.png"},
		}}}},
	}
}

func TestWriteThenRead(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "media", "ep1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "media", "ep1", "shot1-main.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := Write(&buf, root, episode())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 image, got %d", n)
	}
	c, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if c.Episode.Title != "Noc" || len(c.Episode.Screenplay.Slots) != 1 {
		t.Fatalf("episode not restored: %+v", c.Episode)
	}
	if got := string(c.Media["/media/ep1/shot1-main.png"]); got != "png-bytes" {
		t.Fatalf("media not restored: %q", got)
	}
	if len(c.Media) != 1 {
		t.Fatalf("unexpected media entries: %v", c.Media)
	}
}

func TestReadIgnoresUnsafeEntriesAndNeedsEpisode(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"media/../../etc/passwd", "other/file.txt"} {
		fw, _ := zw.Create(name)
		_, _ = fw.Write([]byte("x"))
	}
	_ = zw.Close()
	_, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if !errors.Is(err, ErrInvalidPack) {
		t.Fatalf("expected ErrInvalidPack, got %v", err)
	}
	if safeMediaName("media/../../etc/passwd") || safeMediaName("media\\x.png") || !safeMediaName("media/ep1/a.png") {
		t.Fatalf("safeMediaName misjudged a path")
	}
}

func TestShotImagesKeepsStoredOnly(t *testing.T) {
	got := ShotImages(episode().AVScript.Segments[0].Shots[0])
	if len(got) != 1 || got[0] != "/media/ep1/shot1-main.png" {
		t.Fatalf("ShotImages = %v", got)
	}
}
