/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestSaveMediaAndThumbnail(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	mf, err := SaveMedia(root, "ep1", "shot1", "main", bytes.NewReader(pngBytes(t, 400, 200)), 0)
	if err != nil {
		t.Fatalf("SaveMedia: %v", err)
	}
	if !strings.HasPrefix(mf.Path, "media/ep1/shot1-main-") || !strings.HasSuffix(mf.Path, ".png") {
		t.Fatalf("unexpected media path %q", mf.Path)
	}
	if mf.Width != 400 || mf.Height != 200 || mf.Format != "png" {
		t.Fatalf("unexpected media info: %+v", mf)
	}
	thumb, err := Thumbnail(ctx, root, mf.Path, 100, 100)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("thumbnail should keep aspect ratio, got %dx%d", cfg.Width, cfg.Height)
	}
	// second call is served from the cache even when the file is gone
	abs, _ := MediaPath(root, mf.Path)
	if err := os.Remove(abs); err != nil {
		t.Fatalf("remove: %v", err)
	}
	again, err := Thumbnail(ctx, root, mf.Path, 100, 100)
	if err != nil || !bytes.Equal(again, thumb) {
		t.Fatalf("expected cached thumbnail, err=%v", err)
	}
	if err := RemoveMedia(ctx, root, mf.Path); err != nil {
		t.Fatalf("RemoveMedia: %v", err)
	}
	if b, _ := GetThumbnail(ctx, root, mf.Path, 100, 100); b != nil {
		t.Fatalf("thumbnail should be dropped with the media")
	}
}

func TestSaveMediaRejectsBadInput(t *testing.T) {
	root := t.TempDir()
	if _, err := SaveMedia(root, "ep1", "shot1", "main", strings.NewReader("plain text"), 0); !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}
	if _, err := SaveMedia(root, "ep1", "shot1", "main", bytes.NewReader(pngBytes(t, 10, 10)), 16); err == nil {
		t.Fatalf("expected size limit error")
	}
	if _, err := SaveMedia(root, "..", "shot1", "main", bytes.NewReader(pngBytes(t, 10, 10)), 0); err == nil {
		t.Fatalf("expected path segment error")
	}
	if _, err := MediaPath(root, "../studio.json"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestThumbnailEviction(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	t.Setenv("CONCEPTO_THUMBS_MAX_BYTES", "10")
	if err := PutThumbnail(ctx, root, "media/a.png", 1, 1, []byte("123456")); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := PutThumbnail(ctx, root, "media/b.png", 1, 1, []byte("abcdef")); err != nil {
		t.Fatalf("put b: %v", err)
	}
	total, err := TotalThumbnailBytes(ctx, root)
	if err != nil || total > 10 {
		t.Fatalf("cache over cap: %d err=%v", total, err)
	}
}
