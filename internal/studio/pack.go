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
	"fmt"
	"io"
	"log/slog"

	"concepto/internal/domain"
	applog "concepto/internal/log"
	"concepto/internal/pack"
	"concepto/internal/storage"
)

// ExportPackage writes the episode, unsaved edits included, with its shot images as a zip.
func (w *Workspace) ExportPackage(episodeID string, out io.Writer) (int, error) {
	ep, err := w.Episode(episodeID)
	if err != nil {
		return 0, err
	}
	return pack.Write(out, w.h.Root, ep)
}

// InstallPackage adds the packed episode to a show as a new episode. Shot images are stored
// again under the new episode; images missing from the pack are dropped from their shots.
func (w *Workspace) InstallPackage(ctx context.Context, showID string, r io.ReaderAt, size int64) (domain.Episode, error) {
	c, err := pack.Read(r, size)
	if err != nil {
		return domain.Episode{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	ep, err := w.AddEpisodeWithDocument(ctx, showID, c.Episode.Title, 0, c.Episode.Screenplay)
	if err != nil {
		return domain.Episode{}, err
	}
	l := applog.WithOperation(w.log, "install-package").With(slog.String("episode", ep.ID))

	av := cloneAV(c.Episode.AVScript)
	images := 0
	for si := range av.Segments {
		for hi := range av.Segments[si].Shots {
			sh := &av.Segments[si].Shots[hi]
			for _, slot := range []struct {
				role string
				url  *string
			}{{ImageMain, &sh.ImageURL}, {ImageStart, &sh.StartFrameURL}, {ImageEnd, &sh.EndFrameURL}} {
				if *slot.url == "" {
					continue
				}
				data, ok := c.Media[*slot.url]
				if !ok {
					*slot.url = ""
					continue
				}
				mf, err := storage.SaveMedia(w.h.Root, ep.ID, sh.ID, slot.role, bytes.NewReader(data), w.opts.MaxMediaBytes)
				if err != nil {
					l.Warn("dropping packed image", slog.String("shot", sh.ID), slog.Any("err", err))
					*slot.url = ""
					continue
				}
				*slot.url = "/" + mf.Path
				images++
			}
		}
	}

	oe, err := w.episode(ep.ID)
	if err != nil {
		return domain.Episode{}, err
	}
	oe.mu.Lock()
	oe.ep.AVScript = av
	oe.avRev++
	oe.mu.Unlock()
	oe.saver.Touch()
	l.Info("episode installed", slog.Int("shots", len(av.Shots())), slog.Int("images", images))
	return w.Episode(ep.ID)
}
