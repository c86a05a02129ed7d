/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"errors"
	"image/png"
	"strings"
	"testing"
)

func TestRenderHTMLFull(t *testing.T) {
	s, _ := Build(sampleEpisode(), "en", ViewFull)
	b, err := Bytes(s, FormatHTML, Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := string(b)
	for _, want := range []string{"<title>Night Garden</title>", `class="el scene_setting"`, "Nobody is here.", "Episode 3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("html missing %q", want)
		}
	}
}

func TestRenderHTMLStoryboardUsesMediaURL(t *testing.T) {
	s, _ := Build(sampleEpisode(), "en", ViewStoryboard)
	b, err := Bytes(s, FormatHTML, Options{MediaURL: func(ref string) string { return "/" + ref }})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, `src="/media/ep1/a.png"`) {
		t.Fatalf("expected mapped image url in %s", out)
	}
	if strings.Count(out, "<img") != 1 {
		t.Fatalf("frames without image must not get an img tag")
	}
	if !strings.Contains(out, "SC02T01") {
		t.Fatalf("missing unique name")
	}
}

func TestRenderHTMLEscapes(t *testing.T) {
	ep := sampleEpisode()
	ep.Screenplay.Slots[1].Secondary.Content = "<script>alert(1)</script>"
	s, _ := Build(ep, "en", ViewFull)
	b, _ := Bytes(s, FormatHTML, Options{})
	if strings.Contains(string(b), "<script>alert") {
		t.Fatalf("content must be escaped")
	}
}

func TestRenderPDF(t *testing.T) {
	for _, v := range []View{ViewFull, ViewVO, ViewStoryboard} {
		s, _ := Build(sampleEpisode(), "pl", v)
		calls := 0
		b, err := Bytes(s, FormatPDF, Options{Media: func(ref string) ([]byte, error) {
			calls++
			return tinyPNG(), nil
		}})
		if err != nil {
			t.Fatalf("%s: render pdf: %v", v, err)
		}
		if !bytes.HasPrefix(b, []byte("%PDF-")) {
			t.Fatalf("%s: not a pdf", v)
		}
		if v == ViewStoryboard && calls != 1 {
			t.Fatalf("expected one image lookup, got %d", calls)
		}
	}
}

func TestRenderStoryboardPNG(t *testing.T) {
	s, _ := Build(sampleEpisode(), "en", ViewStoryboard)
	b, err := Bytes(s, FormatPNG, Options{Media: func(string) ([]byte, error) { return nil, errors.New("gone") }})
	if err != nil {
		t.Fatalf("render png: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != sheetPad+sheetCols*(sheetCellW+sheetPad) {
		t.Fatalf("unexpected width %d", img.Bounds().Dx())
	}
}

func TestRenderPNGNeedsStoryboard(t *testing.T) {
	s, _ := Build(sampleEpisode(), "en", ViewFull)
	if _, err := Bytes(s, FormatPNG, Options{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
