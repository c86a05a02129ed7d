/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package studio

import (
	"context"
	"strings"

	"concepto/internal/domain"
	"concepto/internal/export"
	"concepto/internal/storage"
)

// Thumbnail size used for images embedded into PDF and PNG exports.
const (
	exportImageW = 640
	exportImageH = 360
)

type exportKey struct {
	episodeID string
	revision  int64
	avRev     int64
	lang      domain.Lang
	view      export.View
	format    export.Format
}

// Export renders one view of an episode, including unsaved edits. Renders are cached per
// document and AV revision, so repeated downloads of an unchanged episode are free.
func (w *Workspace) Export(ctx context.Context, episodeID string, lang domain.Lang, view export.View, format export.Format) ([]byte, error) {
	oe, err := w.episode(episodeID)
	if err != nil {
		return nil, err
	}
	oe.mu.Lock()
	if lang == "" {
		lang = oe.ep.Screenplay.PrimaryLang
	}
	key := exportKey{episodeID: episodeID, revision: oe.eng.Revision(), avRev: oe.avRev, lang: lang, view: view, format: format}
	oe.mu.Unlock()
	if b, ok := w.exports.Get(key); ok {
		return b, nil
	}
	ep, err := w.Episode(episodeID)
	if err != nil {
		return nil, err
	}
	s, err := export.Build(ep, lang, view)
	if err != nil {
		return nil, err
	}
	b, err := export.Bytes(s, format, w.renderOptions(ctx))
	if err != nil {
		return nil, err
	}
	w.exports.Add(key, b)
	return b, nil
}

// ExportPreset writes every file of a preset for an episode into outDir.
func (w *Workspace) ExportPreset(ctx context.Context, episodeID string, lang domain.Lang, preset export.PresetName, outDir string) ([]string, error) {
	ep, err := w.Episode(episodeID)
	if err != nil {
		return nil, err
	}
	if lang == "" {
		lang = ep.Screenplay.PrimaryLang
	}
	return export.BatchExport(ep, lang, preset, outDir, w.renderOptions(ctx))
}

func (w *Workspace) renderOptions(ctx context.Context) export.Options {
	w.mu.Lock()
	author := w.h.Studio.Name
	w.mu.Unlock()
	return export.Options{
		Author: author,
		Face:   w.opts.CaptionFace,
		Media: func(ref string) ([]byte, error) {
			return storage.Thumbnail(ctx, w.h.Root, strings.TrimPrefix(ref, "/"), exportImageW, exportImageH)
		},
	}
}
