/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders read-only projections of one episode language: the full script,
// the dialogue-only VO cut and the storyboard frame layout, as HTML, PDF or PNG.
package export

import (
	"errors"
	"fmt"
	"strings"

	"concepto/internal/domain"
)

// View selects which projection of the episode is exported.
type View string

const (
	ViewFull       View = "full"
	ViewVO         View = "vo"
	ViewStoryboard View = "storyboard"
)

// Format selects the output encoding.
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
)

// ErrUnsupported is returned for unknown views and for view/format pairs that cannot be rendered.
var ErrUnsupported = errors.New("export: unsupported view or format")

// ParseView accepts the view names case-insensitively.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewFull, ViewVO, ViewStoryboard:
		return v, nil
	}
	return "", fmt.Errorf("%w: view %q", ErrUnsupported, s)
}

// ParseFormat accepts the format names case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatHTML, FormatPDF, FormatPNG:
		return f, nil
	}
	return "", fmt.Errorf("%w: format %q", ErrUnsupported, s)
}

// ContentType returns the MIME type of f.
func ContentType(f Format) string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatPNG:
		return "image/png"
	}
	return "text/html; charset=utf-8"
}

// Line is one printable screenplay line.
type Line struct {
	Type  domain.ElementType
	Text  string
	Scene int
}

// Frame is one storyboard cell built from an AV shot.
type Frame struct {
	Number   string
	Name     string
	Audio    string
	Visual   string
	Duration string
	Runtime  float64
	// Image references the shot's main image (or its start frame) as stored on the shot.
	Image string
}

// FrameGroup holds the frames of one scene.
type FrameGroup struct {
	Title  string
	Frames []Frame
}

// Script is the renderer-neutral projection of an episode.
type Script struct {
	Title   string
	Episode int
	Lang    domain.Lang
	View    View
	Lines   []Line
	Groups  []FrameGroup
	// Words counts dialogue words; Runtime sums shot runtimes in seconds.
	Words   int
	Runtime float64
}

// Build projects ep into view for lang. The episode is not modified.
func Build(ep domain.Episode, lang domain.Lang, view View) (Script, error) {
	if lang == "" {
		lang = ep.Screenplay.PrimaryLang
	}
	title := strings.TrimSpace(ep.Screenplay.Title(lang))
	if title == "" {
		title = ep.Title
	}
	s := Script{Title: title, Episode: ep.Number, Lang: lang, View: view}
	switch view {
	case ViewFull:
		s.Lines = fullLines(ep.Screenplay.Elements(lang))
	case ViewVO:
		s.Lines = voLines(ep.Screenplay.Elements(lang))
	case ViewStoryboard:
		s.Groups = frameGroups(ep.AVScript)
		s.Runtime = ep.AVScript.TotalRuntime()
	default:
		return Script{}, fmt.Errorf("%w: view %q", ErrUnsupported, view)
	}
	for _, l := range s.Lines {
		if l.Type == domain.Dialogue {
			s.Words += len(strings.Fields(l.Text))
		}
	}
	return s, nil
}

func fullLines(elems []domain.Element) []Line {
	var out []Line
	scene := 0
	for _, el := range elems {
		if el.Type == domain.SceneSetting {
			scene++
		}
		text := strings.TrimSpace(el.Content)
		if text == "" {
			continue
		}
		out = append(out, Line{Type: el.Type, Text: text, Scene: max(scene, 1)})
	}
	return out
}

// voLines keeps dialogue with its cues and parentheticals. Scene headings and cues are only
// emitted once a spoken line follows them.
func voLines(elems []domain.Element) []Line {
	var out []Line
	var heading, cue *Line
	scene := 0
	for _, el := range elems {
		text := strings.TrimSpace(el.Content)
		switch el.Type {
		case domain.SceneSetting:
			scene++
			heading, cue = nil, nil
			if text != "" {
				heading = &Line{Type: el.Type, Text: text, Scene: scene}
			}
		case domain.Character:
			cue = nil
			if text != "" {
				cue = &Line{Type: el.Type, Text: text, Scene: max(scene, 1)}
			}
		case domain.Dialogue, domain.Parenthetical:
			if text == "" {
				continue
			}
			if heading != nil {
				out = append(out, *heading)
				heading = nil
			}
			if cue != nil {
				out = append(out, *cue)
				cue = nil
			}
			out = append(out, Line{Type: el.Type, Text: text, Scene: max(scene, 1)})
		default:
			cue = nil
		}
	}
	return out
}

func frameGroups(av domain.AVScript) []FrameGroup {
	var out []FrameGroup
	for _, seg := range av.Segments {
		g := FrameGroup{Title: seg.Title}
		for _, sh := range seg.Shots {
			img := sh.ImageURL
			if img == "" {
				img = sh.StartFrameURL
			}
			g.Frames = append(g.Frames, Frame{
				Number:   sh.ShotNumber,
				Name:     sh.UniqueName,
				Audio:    sh.Audio,
				Visual:   sh.Visual,
				Duration: sh.Duration,
				Runtime:  sh.Runtime,
				Image:    img,
			})
		}
		if len(g.Frames) > 0 {
			out = append(out, g)
		}
	}
	return out
}
