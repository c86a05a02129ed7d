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
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxMediaBytes bounds a single uploaded image.
const DefaultMaxMediaBytes = 20 << 20

// ErrUnsupportedMedia is returned for uploads that are not decodable images.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// MediaFile describes a stored image. Path is relative to the studio root and uses forward slashes.
type MediaFile struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// SaveMedia stores an image for a shot under media/<episode>/ and returns its description.
// role names the image slot (main, start, end). Input larger than maxBytes is rejected;
// maxBytes <= 0 uses DefaultMaxMediaBytes.
func SaveMedia(studioRoot, episodeID, shotID, role string, r io.Reader, maxBytes int64) (MediaFile, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMediaBytes
	}
	if err := checkSegment(episodeID); err != nil {
		return MediaFile{}, err
	}
	if err := checkSegment(shotID); err != nil {
		return MediaFile{}, err
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return MediaFile{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return MediaFile{}, fmt.Errorf("upload exceeds %d bytes", maxBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return MediaFile{}, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}
	ext := "." + format
	if format == "jpeg" {
		ext = ".jpg"
	}
	name := fmt.Sprintf("%s-%s-%s%s", shotID, role, uuid.NewString()[:8], ext)
	rel := filepath.ToSlash(filepath.Join(MediaDirName, episodeID, name))
	abs := filepath.Join(studioRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return MediaFile{}, fmt.Errorf("create media dir: %w", err)
	}
	if err := writeFileSync(abs, data); err != nil {
		return MediaFile{}, fmt.Errorf("write media: %w", err)
	}
	return MediaFile{Path: rel, Format: format, Width: cfg.Width, Height: cfg.Height, Size: int64(len(data))}, nil
}

// MediaPath resolves a stored relative media path to an absolute one. Paths escaping the media
// directory are rejected.
func MediaPath(studioRoot, rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	mediaRoot := filepath.Join(studioRoot, MediaDirName)
	abs := filepath.Join(studioRoot, clean)
	if !strings.HasPrefix(abs, mediaRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("media path outside %s: %q", MediaDirName, rel)
	}
	return abs, nil
}

// RemoveMedia deletes a stored image and its cached thumbnails. Missing files are not an error.
func RemoveMedia(ctx context.Context, studioRoot, rel string) error {
	abs, err := MediaPath(studioRoot, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove media: %w", err)
	}
	return DropThumbnails(ctx, studioRoot, rel)
}

// Thumbnail returns a PNG of the stored image scaled to fit within maxW x maxH, served from
// the index cache when present.
func Thumbnail(ctx context.Context, studioRoot, rel string, maxW, maxH int) ([]byte, error) {
	if maxW <= 0 || maxH <= 0 {
		return nil, errors.New("thumbnail size must be positive")
	}
	abs, err := MediaPath(studioRoot, rel)
	if err != nil {
		return nil, err
	}
	return GetOrCreateThumbnail(ctx, studioRoot, rel, maxW, maxH, func(context.Context) ([]byte, error) {
		f, err := os.Open(abs)
		if err != nil {
			return nil, fmt.Errorf("open media: %w", err)
		}
		defer f.Close()
		src, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
		}
		return scalePNG(src, maxW, maxH)
	})
}

// scalePNG fits src into maxW x maxH keeping the aspect ratio; images are never enlarged.
func scalePNG(src image.Image, maxW, maxH int) ([]byte, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, ErrUnsupportedMedia
	}
	tw, th := w, h
	if tw > maxW {
		tw, th = maxW, max(1, h*maxW/w)
	}
	if th > maxH {
		tw, th = max(1, tw*maxH/th), maxH
	}
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func checkSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("invalid path segment %q", s)
	}
	return nil
}
