/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package avscript turns a screenplay into an audio/visual shot list.
//
// The script is cut into segments at scene boundaries, each segment is sent to a
// Generator, and the returned rows are repaired into one globally consistent
// scene.shot numbering with unique take names and normalized durations.
package avscript

import (
	"strings"

	"concepto/internal/domain"
)

// DefaultMaxChars caps the text of one generation request.
const DefaultMaxChars = 3000

// Segment is one slice of the flattened script.
type Segment struct {
	Index      int    `json:"index"`
	StartScene int    `json:"startScene"`
	Text       string `json:"text"`
	// SceneTitles maps scene numbers that begin inside this segment to their headings.
	SceneTitles map[int]string `json:"sceneTitles,omitempty"`
}

type sceneChunk struct {
	number int
	title  string
	lines  []string
}

// FlattenElement renders one element as a plain script line.
func FlattenElement(el domain.Element) string {
	c := strings.TrimSpace(el.Content)
	switch el.Type {
	case domain.SceneSetting:
		return strings.ToUpper(c)
	case domain.Character:
		return strings.ToUpper(c) + ":"
	case domain.Parenthetical:
		if c != "" && !strings.HasPrefix(c, "(") {
			return "(" + c + ")"
		}
	}
	return c
}

// Split cuts elements into segments of at most maxChars characters, preferring scene
// boundaries. A scene longer than maxChars is split at element boundaries; each part keeps the
// scene number it starts in. Scene numbers start at 1 and text before the first heading is
// counted as part of scene 1.
func Split(elements []domain.Element, maxChars int) []Segment {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	var scenes []sceneChunk
	cur := sceneChunk{number: 1}
	seenHeading := false
	for _, el := range elements {
		line := FlattenElement(el)
		if el.Type == domain.SceneSetting {
			if seenHeading {
				scenes = append(scenes, cur)
				cur = sceneChunk{number: cur.number + 1}
			}
			seenHeading = true
			cur.title = strings.TrimSpace(el.Content)
		}
		if line == "" || line == ":" {
			continue
		}
		cur.lines = append(cur.lines, line)
	}
	if len(cur.lines) > 0 || cur.title != "" {
		scenes = append(scenes, cur)
	}

	var out []Segment
	var b strings.Builder
	seg := Segment{StartScene: 1}
	flush := func() {
		if b.Len() == 0 {
			return
		}
		seg.Index = len(out)
		seg.Text = b.String()
		out = append(out, seg)
		b.Reset()
		seg = Segment{}
	}
	write := func(number int, line string) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		} else {
			seg.StartScene = number
		}
		b.WriteString(line)
	}
	for _, sc := range scenes {
		size := sceneLen(sc)
		if b.Len() > 0 && b.Len()+1+size > maxChars {
			flush()
		}
		for i, line := range sc.lines {
			if b.Len() > 0 && b.Len()+1+len(line) > maxChars {
				flush()
			}
			write(sc.number, line)
			if i == 0 && sc.title != "" {
				if seg.SceneTitles == nil {
					seg.SceneTitles = map[int]string{}
				}
				seg.SceneTitles[sc.number] = sc.title
			}
		}
	}
	flush()
	return out
}

func sceneLen(sc sceneChunk) int {
	n := 0
	for i, l := range sc.lines {
		if i > 0 {
			n++
		}
		n += len(l)
	}
	return n
}
