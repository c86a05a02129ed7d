/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout measures and breaks caption text for raster exports.
package textlayout

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

const ellipsis = "..."

// Default returns the built-in 7x13 face. It covers ASCII only.
func Default() font.Face { return basicfont.Face7x13 }

// LoadFace parses an OpenType or TrueType file and returns a face of sizePt at 72 DPI.
func LoadFace(path string, sizePt float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	if sizePt <= 0 {
		sizePt = 11
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: sizePt, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("face %s: %w", path, err)
	}
	return face, nil
}

// LineHeight returns the distance between baselines in pixels.
func LineHeight(face font.Face) int {
	return face.Metrics().Height.Ceil()
}

// Width measures s in pixels, kerning included.
func Width(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// Wrap breaks text into lines no wider than maxWidth pixels. Breaks happen at whitespace;
// a word wider than a line is split between runes. Newlines in text force a break.
func Wrap(face font.Face, text string, maxWidth int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.FieldsFunc(para, unicode.IsSpace)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		cur := ""
		for _, w := range words {
			cand := w
			if cur != "" {
				cand = cur + " " + w
			}
			if maxWidth <= 0 || Width(face, cand) <= maxWidth {
				cur = cand
				continue
			}
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			for Width(face, w) > maxWidth {
				head, tail := splitAt(face, w, maxWidth)
				out = append(out, head)
				w = tail
			}
			cur = w
		}
		out = append(out, cur)
	}
	return out
}

// splitAt returns the longest prefix of w fitting maxWidth (at least one rune) and the rest.
func splitAt(face font.Face, w string, maxWidth int) (string, string) {
	end := 0
	for i, r := range w {
		next := i + utf8.RuneLen(r)
		if end > 0 && Width(face, w[:next]) > maxWidth {
			break
		}
		end = next
	}
	return w[:end], w[end:]
}

// Fit wraps text and keeps at most maxLines lines. When text is cut, the last kept line
// ends in "..." and still fits maxWidth.
func Fit(face font.Face, text string, maxWidth, maxLines int) []string {
	lines := Wrap(face, text, maxWidth)
	if maxLines <= 0 || len(lines) <= maxLines {
		return lines
	}
	lines = lines[:maxLines]
	last := strings.TrimRight(lines[maxLines-1], " ")
	for last != "" && Width(face, last+ellipsis) > maxWidth {
		_, size := utf8.DecodeLastRuneInString(last)
		last = strings.TrimRight(last[:len(last)-size], " ")
	}
	lines[maxLines-1] = last + ellipsis
	return lines
}
