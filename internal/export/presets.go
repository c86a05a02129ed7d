/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"concepto/internal/domain"
)

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetWeb writes HTML for every view.
	PresetWeb PresetName = "web"
	// PresetPrint writes PDF for every view plus the storyboard contact sheet.
	PresetPrint PresetName = "print"
)

// Target is one file produced by a batch.
type Target struct {
	View   View
	Format Format
}

// PresetTargets lists the files a preset produces.
func PresetTargets(p PresetName) ([]Target, error) {
	switch p {
	case PresetWeb:
		return []Target{{ViewFull, FormatHTML}, {ViewVO, FormatHTML}, {ViewStoryboard, FormatHTML}}, nil
	case PresetPrint:
		return []Target{{ViewFull, FormatPDF}, {ViewVO, FormatPDF}, {ViewStoryboard, FormatPDF}, {ViewStoryboard, FormatPNG}}, nil
	}
	return nil, fmt.Errorf("%w: preset %q", ErrUnsupported, p)
}

var reUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// FileName returns ep<number>-<title>-<lang>-<view>.<ext>.
func FileName(ep domain.Episode, lang domain.Lang, t Target) string {
	slug := strings.Trim(reUnsafe.ReplaceAllString(strings.ToLower(ep.Title), "-"), "-")
	if slug == "" {
		slug = "untitled"
	}
	return fmt.Sprintf("ep%02d-%s-%s-%s.%s", ep.Number, slug, lang, t.View, t.Format)
}

// BatchExport renders every target of the preset into outDir and returns the written paths.
func BatchExport(ep domain.Episode, lang domain.Lang, p PresetName, outDir string, opt Options) ([]string, error) {
	targets, err := PresetTargets(p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	var written []string
	for _, t := range targets {
		s, err := Build(ep, lang, t.View)
		if err != nil {
			return written, err
		}
		b, err := Bytes(s, t.Format, opt)
		if err != nil {
			return written, fmt.Errorf("%s %s: %w", t.View, t.Format, err)
		}
		path := filepath.Join(outDir, FileName(ep, lang, t))
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
