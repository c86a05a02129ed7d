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
	"fmt"
	"io"
	"log/slog"
	"strings"

	"concepto/internal/avscript"
	"concepto/internal/domain"
	applog "concepto/internal/log"
	"concepto/internal/storage"
)

// Image roles of a shot.
const (
	ImageMain  = "main"
	ImageStart = "start"
	ImageEnd   = "end"
)

// ShotPatch carries the shot fields to change; nil fields are left alone.
type ShotPatch struct {
	Audio    *string `json:"audio,omitempty"`
	Visual   *string `json:"visual,omitempty"`
	Duration *string `json:"duration,omitempty"`
	// WordCount and Runtime override the values derived from audio and duration.
	WordCount *int     `json:"wordCount,omitempty"`
	Runtime   *float64 `json:"runtime,omitempty"`
}

// ShotRef locates a shot.
type ShotRef struct {
	EpisodeID string        `json:"episodeId"`
	Shot      domain.AVShot `json:"shot"`
}

// FindShot searches all episodes for a shot id, including unsaved AV changes.
func (w *Workspace) FindShot(shotID string) (ShotRef, error) {
	w.mu.Lock()
	ids := make([]string, len(w.h.Studio.Episodes))
	for i, ep := range w.h.Studio.Episodes {
		ids[i] = ep.ID
	}
	w.mu.Unlock()
	for _, id := range ids {
		ep, err := w.Episode(id)
		if err != nil {
			continue
		}
		if sh := ep.AVScript.FindShot(shotID); sh != nil {
			return ShotRef{EpisodeID: id, Shot: *sh}, nil
		}
	}
	return ShotRef{}, fmt.Errorf("shot %s: %w", shotID, ErrNotFound)
}

// UpdateShot edits a shot. A new duration is normalized and the derived word count and
// runtime follow the new audio and duration unless the patch sets them explicitly.
func (w *Workspace) UpdateShot(episodeID, shotID string, p ShotPatch) (domain.AVShot, error) {
	if p.WordCount != nil && *p.WordCount < 0 {
		return domain.AVShot{}, fmt.Errorf("%w: word count %d is negative", ErrInvalid, *p.WordCount)
	}
	if p.Runtime != nil && *p.Runtime < 0 {
		return domain.AVShot{}, fmt.Errorf("%w: runtime %v is negative", ErrInvalid, *p.Runtime)
	}
	var out domain.AVShot
	err := w.shot(episodeID, shotID, func(sh *domain.AVShot) error {
		if p.Audio != nil {
			sh.Audio = strings.TrimSpace(*p.Audio)
			sh.WordCount = len(strings.Fields(sh.Audio))
		}
		if p.Visual != nil {
			sh.Visual = strings.TrimSpace(*p.Visual)
		}
		if p.Duration != nil {
			sh.Duration = avscript.NormalizeDuration(*p.Duration)
			sh.Runtime = avscript.DurationSeconds(sh.Duration)
		}
		if p.WordCount != nil {
			sh.WordCount = *p.WordCount
		}
		if p.Runtime != nil {
			sh.Runtime = *p.Runtime
		}
		out = *sh
		return nil
	})
	return out, err
}

// SetShotImage stores an uploaded image for one role of a shot and links it. The image it
// replaces is removed from the media directory.
func (w *Workspace) SetShotImage(ctx context.Context, episodeID, shotID, role string, r io.Reader) (storage.MediaFile, error) {
	if _, err := w.FindShotIn(episodeID, shotID); err != nil {
		return storage.MediaFile{}, err
	}
	if role != ImageMain && role != ImageStart && role != ImageEnd {
		return storage.MediaFile{}, fmt.Errorf("%w: unknown image role %q", ErrInvalid, role)
	}
	mf, err := storage.SaveMedia(w.h.Root, episodeID, shotID, role, r, w.opts.MaxMediaBytes)
	if err != nil {
		return storage.MediaFile{}, err
	}
	var old string
	err = w.shot(episodeID, shotID, func(sh *domain.AVShot) error {
		url := "/" + mf.Path
		switch role {
		case ImageMain:
			old, sh.ImageURL = sh.ImageURL, url
		case ImageStart:
			old, sh.StartFrameURL = sh.StartFrameURL, url
		case ImageEnd:
			old, sh.EndFrameURL = sh.EndFrameURL, url
		}
		return nil
	})
	if err != nil {
		_ = storage.RemoveMedia(ctx, w.h.Root, mf.Path)
		return storage.MediaFile{}, err
	}
	if old != "" && old != "/"+mf.Path && strings.HasPrefix(old, "/media/") {
		if err := storage.RemoveMedia(ctx, w.h.Root, strings.TrimPrefix(old, "/")); err != nil {
			applog.WithEpisode(applog.WithOperation(w.log, "set-image"), episodeID).Warn("old image not removed", slog.String("path", old), slog.Any("err", err))
		}
	}
	return mf, nil
}

// FindShotIn returns a shot of one episode.
func (w *Workspace) FindShotIn(episodeID, shotID string) (domain.AVShot, error) {
	ep, err := w.Episode(episodeID)
	if err != nil {
		return domain.AVShot{}, err
	}
	sh := ep.AVScript.FindShot(shotID)
	if sh == nil {
		return domain.AVShot{}, fmt.Errorf("shot %s: %w", shotID, ErrNotFound)
	}
	return *sh, nil
}

// shot applies fn to a shot of the open episode and records the AV change.
func (w *Workspace) shot(episodeID, shotID string, fn func(*domain.AVShot) error) error {
	oe, err := w.episode(episodeID)
	if err != nil {
		return err
	}
	oe.mu.Lock()
	sh := oe.ep.AVScript.FindShot(shotID)
	if sh == nil {
		oe.mu.Unlock()
		return fmt.Errorf("shot %s: %w", shotID, ErrNotFound)
	}
	if err := fn(sh); err != nil {
		oe.mu.Unlock()
		return err
	}
	oe.avRev++
	oe.ep.UpdatedAt = domain.TS(w.opts.Now())
	oe.mu.Unlock()
	oe.saver.Touch()
	w.publish(Event{Type: EventShotUpdated, EpisodeID: episodeID, ShotID: shotID})
	return nil
}
