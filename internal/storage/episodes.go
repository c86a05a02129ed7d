/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"concepto/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a show, episode or asset id does not exist in the studio.
var ErrNotFound = errors.New("not found")

// AddShow appends a new show and returns it.
func AddShow(h *StudioHandle, name, description string) (domain.Show, error) {
	if h == nil {
		return domain.Show{}, errors.New("studio handle is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Show{}, errors.New("show name is required")
	}
	sh := domain.Show{ID: uuid.NewString(), Name: name, Description: description, CreatedAt: domain.Now()}
	h.Studio.Shows = append(h.Studio.Shows, sh)
	return sh, nil
}

// UpdateShow renames a show and replaces its description.
func UpdateShow(h *StudioHandle, id, name, description string) error {
	sh := h.Studio.FindShow(id)
	if sh == nil {
		return fmt.Errorf("show %s: %w", id, ErrNotFound)
	}
	if s := strings.TrimSpace(name); s != "" {
		sh.Name = s
	}
	sh.Description = description
	return nil
}

// RemoveShow deletes a show. Shows that still have episodes are refused unless cascade is set,
// in which case their episodes are removed as well.
func RemoveShow(h *StudioHandle, id string, cascade bool) error {
	if h.Studio.FindShow(id) == nil {
		return fmt.Errorf("show %s: %w", id, ErrNotFound)
	}
	n := len(ShowEpisodes(h.Studio, id))
	if n > 0 && !cascade {
		return fmt.Errorf("show %s still has %d episodes", id, n)
	}
	h.Studio.Episodes = filter(h.Studio.Episodes, func(e domain.Episode) bool { return e.ShowID != id })
	h.Studio.Shows = filter(h.Studio.Shows, func(s domain.Show) bool { return s.ID != id })
	return nil
}

// ShowEpisodes returns the episodes of a show ordered by number.
func ShowEpisodes(st domain.Studio, showID string) []domain.Episode {
	var out []domain.Episode
	for _, e := range st.Episodes {
		if e.ShowID == showID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// NextEpisodeNumber returns one past the highest episode number of the show.
func NextEpisodeNumber(st domain.Studio, showID string) int {
	maxN := 0
	for _, e := range st.Episodes {
		if e.ShowID == showID && e.Number > maxN {
			maxN = e.Number
		}
	}
	return maxN + 1
}

// AddEpisode creates an episode of the given show holding doc. A number <= 0 takes the next
// free number; an explicit number must not be taken yet.
func AddEpisode(h *StudioHandle, showID, title string, number int, doc domain.Document) (domain.Episode, error) {
	if h == nil {
		return domain.Episode{}, errors.New("studio handle is nil")
	}
	if h.Studio.FindShow(showID) == nil {
		return domain.Episode{}, fmt.Errorf("show %s: %w", showID, ErrNotFound)
	}
	if number <= 0 {
		number = NextEpisodeNumber(h.Studio, showID)
	} else {
		for _, e := range h.Studio.Episodes {
			if e.ShowID == showID && e.Number == number {
				return domain.Episode{}, fmt.Errorf("episode %d already exists in show %s", number, showID)
			}
		}
	}
	if doc.Slots == nil {
		doc.Slots = []domain.Slot{}
	}
	ep := domain.Episode{
		ID:         uuid.NewString(),
		ShowID:     showID,
		Number:     number,
		Title:      strings.TrimSpace(title),
		Screenplay: doc,
		UpdatedAt:  domain.Now(),
	}
	h.Studio.Episodes = append(h.Studio.Episodes, ep)
	sortEpisodes(h.Studio.Episodes)
	return ep, nil
}

// UpdateEpisodeMeta changes the title and, when newNumber > 0, the number of an episode.
func UpdateEpisodeMeta(h *StudioHandle, id, title string, newNumber int) error {
	ep := h.Studio.FindEpisode(id)
	if ep == nil {
		return fmt.Errorf("episode %s: %w", id, ErrNotFound)
	}
	if newNumber > 0 && newNumber != ep.Number {
		for _, e := range h.Studio.Episodes {
			if e.ShowID == ep.ShowID && e.Number == newNumber {
				return fmt.Errorf("episode %d already exists in show %s", newNumber, ep.ShowID)
			}
		}
		ep.Number = newNumber
	}
	if s := strings.TrimSpace(title); s != "" {
		ep.Title = s
	}
	ep.UpdatedAt = domain.Now()
	sortEpisodes(h.Studio.Episodes)
	return nil
}

// MoveEpisode shifts an episode by delta places within its show and renumbers the show's
// episodes densely from 1.
func MoveEpisode(h *StudioHandle, id string, delta int) error {
	ep := h.Studio.FindEpisode(id)
	if ep == nil {
		return fmt.Errorf("episode %s: %w", id, ErrNotFound)
	}
	var order []*domain.Episode
	for i := range h.Studio.Episodes {
		if h.Studio.Episodes[i].ShowID == ep.ShowID {
			order = append(order, &h.Studio.Episodes[i])
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].Number < order[j].Number })
	idx := -1
	for i, e := range order {
		if e.ID == id {
			idx = i
			break
		}
	}
	newIdx := min(max(idx+delta, 0), len(order)-1)
	if newIdx != idx {
		p := order[idx]
		if newIdx < idx {
			copy(order[newIdx+1:idx+1], order[newIdx:idx])
		} else {
			copy(order[idx:newIdx], order[idx+1:newIdx+1])
		}
		order[newIdx] = p
	}
	for i, e := range order {
		e.Number = i + 1
	}
	sortEpisodes(h.Studio.Episodes)
	return nil
}

// RemoveEpisode deletes an episode.
func RemoveEpisode(h *StudioHandle, id string) error {
	if h.Studio.FindEpisode(id) == nil {
		return fmt.Errorf("episode %s: %w", id, ErrNotFound)
	}
	h.Studio.Episodes = filter(h.Studio.Episodes, func(e domain.Episode) bool { return e.ID != id })
	return nil
}

// AddAsset validates and appends a global asset. The id is generated when empty.
func AddAsset(h *StudioHandle, a domain.GlobalAsset) (domain.GlobalAsset, error) {
	if err := checkAsset(h, a); err != nil {
		return domain.GlobalAsset{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	} else if h.Studio.FindAsset(a.ID) != nil {
		return domain.GlobalAsset{}, fmt.Errorf("asset id %s already exists", a.ID)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = domain.Now()
	}
	h.Studio.Assets = append(h.Studio.Assets, a)
	return a, nil
}

// UpdateAsset replaces an asset's fields, keeping id and creation time.
func UpdateAsset(h *StudioHandle, a domain.GlobalAsset) error {
	cur := h.Studio.FindAsset(a.ID)
	if cur == nil {
		return fmt.Errorf("asset %s: %w", a.ID, ErrNotFound)
	}
	if err := checkAsset(h, a); err != nil {
		return err
	}
	a.CreatedAt = cur.CreatedAt
	*cur = a
	return nil
}

// RemoveAsset deletes a global asset.
func RemoveAsset(h *StudioHandle, id string) error {
	if h.Studio.FindAsset(id) == nil {
		return fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	h.Studio.Assets = filter(h.Studio.Assets, func(a domain.GlobalAsset) bool { return a.ID != id })
	return nil
}

func checkAsset(h *StudioHandle, a domain.GlobalAsset) error {
	if h == nil {
		return errors.New("studio handle is nil")
	}
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("asset name is required")
	}
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown asset category %q", a.Kind)
	}
	if a.ShowID != "" && h.Studio.FindShow(a.ShowID) == nil {
		return fmt.Errorf("show %s: %w", a.ShowID, ErrNotFound)
	}
	return nil
}

func sortEpisodes(eps []domain.Episode) {
	sort.SliceStable(eps, func(i, j int) bool {
		if eps[i].ShowID != eps[j].ShowID {
			return eps[i].ShowID < eps[j].ShowID
		}
		return eps[i].Number < eps[j].Number
	})
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
