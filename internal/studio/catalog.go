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
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"concepto/internal/domain"
	applog "concepto/internal/log"
	"concepto/internal/screenplay"
	"concepto/internal/storage"
)

// Studio returns a copy of the studio catalog as last saved. Screenplays of episodes with
// unsaved edits are not included; use Episode for those.
func (w *Workspace) Studio() domain.Studio {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.h.Studio
	st.Shows = slices.Clone(st.Shows)
	st.Assets = slices.Clone(st.Assets)
	st.Episodes = make([]domain.Episode, len(w.h.Studio.Episodes))
	for i, ep := range w.h.Studio.Episodes {
		st.Episodes[i] = cloneEpisode(ep)
	}
	return st
}

// catalog applies fn to the studio and persists the result. Rejections by fn other than
// ErrNotFound are reported as ErrInvalid. On any failure the previous catalog is restored.
func (w *Workspace) catalog(ctx context.Context, op string, fn func(h *storage.StudioHandle) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev := w.h.Studio
	prev.Shows = slices.Clone(prev.Shows)
	prev.Episodes = slices.Clone(prev.Episodes)
	prev.Assets = slices.Clone(prev.Assets)
	if err := fn(w.h); err != nil {
		w.h.Studio = prev
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := storage.Save(w.h); err != nil {
		w.h.Studio = prev
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := storage.UpdateIndex(ctx, w.h.Root, w.h.Studio); err != nil {
		applog.WithOperation(w.log, op).Warn("index update failed", slog.Any("err", err))
	}
	return nil
}

// AddShow creates a show.
func (w *Workspace) AddShow(ctx context.Context, name, description string) (domain.Show, error) {
	var out domain.Show
	err := w.catalog(ctx, "add-show", func(h *storage.StudioHandle) error {
		var err error
		out, err = storage.AddShow(h, name, description)
		return err
	})
	return out, err
}

// UpdateShow renames a show and replaces its description.
func (w *Workspace) UpdateShow(ctx context.Context, id, name, description string) error {
	return w.catalog(ctx, "update-show", func(h *storage.StudioHandle) error {
		return storage.UpdateShow(h, id, name, description)
	})
}

// RemoveShow deletes a show; with cascade its episodes go too.
func (w *Workspace) RemoveShow(ctx context.Context, id string, cascade bool) error {
	var gone []string
	err := w.catalog(ctx, "remove-show", func(h *storage.StudioHandle) error {
		for _, ep := range storage.ShowEpisodes(h.Studio, id) {
			gone = append(gone, ep.ID)
		}
		return storage.RemoveShow(h, id, cascade)
	})
	if err != nil {
		return err
	}
	for _, epID := range gone {
		w.forget(epID)
	}
	return nil
}

// Episodes lists the episodes of a show in number order.
func (w *Workspace) Episodes(showID string) []domain.Episode {
	w.mu.Lock()
	defer w.mu.Unlock()
	eps := storage.ShowEpisodes(w.h.Studio, showID)
	for i := range eps {
		eps[i] = cloneEpisode(eps[i])
	}
	return eps
}

// AddEpisode creates an episode with an empty screenplay in the given languages. Empty
// languages default to pl/en and number <= 0 takes the next free number.
func (w *Workspace) AddEpisode(ctx context.Context, showID, title string, number int, primary, secondary domain.Lang) (domain.Episode, error) {
	doc := screenplay.NewDocument(primary, secondary, title)
	screenplay.New(doc)
	return w.AddEpisodeWithDocument(ctx, showID, title, number, *doc)
}

// AddEpisodeWithDocument creates an episode holding an imported document.
func (w *Workspace) AddEpisodeWithDocument(ctx context.Context, showID, title string, number int, doc domain.Document) (domain.Episode, error) {
	var out domain.Episode
	err := w.catalog(ctx, "add-episode", func(h *storage.StudioHandle) error {
		var err error
		out, err = storage.AddEpisode(h, showID, title, number, doc)
		return err
	})
	if err == nil {
		out = cloneEpisode(out)
	}
	return out, err
}

// UpdateEpisode changes title and, when number > 0, the number of an episode.
func (w *Workspace) UpdateEpisode(ctx context.Context, id, title string, number int) error {
	return w.catalog(ctx, "update-episode", func(h *storage.StudioHandle) error {
		return storage.UpdateEpisodeMeta(h, id, title, number)
	})
}

// MoveEpisode shifts an episode delta places within its show.
func (w *Workspace) MoveEpisode(ctx context.Context, id string, delta int) error {
	return w.catalog(ctx, "move-episode", func(h *storage.StudioHandle) error {
		return storage.MoveEpisode(h, id, delta)
	})
}

// RemoveEpisode deletes an episode, dropping its pending edits and undo history.
func (w *Workspace) RemoveEpisode(ctx context.Context, id string) error {
	err := w.catalog(ctx, "remove-episode", func(h *storage.StudioHandle) error {
		return storage.RemoveEpisode(h, id)
	})
	if err != nil {
		return err
	}
	w.forget(id)
	return nil
}

// forget closes the open state of a removed episode.
func (w *Workspace) forget(id string) {
	w.mu.Lock()
	oe := w.open[id]
	delete(w.open, id)
	w.mu.Unlock()
	if oe != nil {
		oe.saver.Stop()
	}
	w.undo.Clear(id)
	w.publish(Event{Type: EventRemoved, EpisodeID: id})
}

// AddAsset registers a global asset.
func (w *Workspace) AddAsset(ctx context.Context, a domain.GlobalAsset) (domain.GlobalAsset, error) {
	var out domain.GlobalAsset
	err := w.catalog(ctx, "add-asset", func(h *storage.StudioHandle) error {
		var err error
		out, err = storage.AddAsset(h, a)
		return err
	})
	return out, err
}

// UpdateAsset replaces the fields of an asset.
func (w *Workspace) UpdateAsset(ctx context.Context, a domain.GlobalAsset) error {
	return w.catalog(ctx, "update-asset", func(h *storage.StudioHandle) error {
		return storage.UpdateAsset(h, a)
	})
}

// RemoveAsset deletes a global asset.
func (w *Workspace) RemoveAsset(ctx context.Context, id string) error {
	return w.catalog(ctx, "remove-asset", func(h *storage.StudioHandle) error {
		return storage.RemoveAsset(h, id)
	})
}

// Search queries the index of saved content.
func (w *Workspace) Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	return storage.Search(ctx, w.h.Root, q)
}

// WhereUsed lists saved episode content mentioning an asset.
func (w *Workspace) WhereUsed(ctx context.Context, assetID string, limit, offset int) ([]storage.SearchResult, error) {
	return storage.WhereUsed(ctx, w.h.Root, assetID, limit, offset)
}
