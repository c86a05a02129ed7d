/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the studio-level data model: shows, episodes and the global asset library.
// Screenplay and AV-script structures live in screenplay.go and avscript.go.

// Studio is the root of the persisted manifest (studio.json).
type Studio struct {
	Name     string        `json:"name"`
	Metadata Metadata      `json:"metadata,omitempty"`
	Shows    []Show        `json:"shows"`
	Episodes []Episode     `json:"episodes"`
	Assets   []GlobalAsset `json:"assets,omitempty"`
}

// Metadata contains optional descriptive metadata for a studio.
type Metadata struct {
	Owner string `json:"owner,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// Show groups episodes of one animated/video series.
type Show struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// Episode is one production unit with its bilingual screenplay and AV script.
type Episode struct {
	ID         string    `json:"id"`
	ShowID     string    `json:"showId"`
	Number     int       `json:"episodeNumber"`
	Title      string    `json:"title"`
	Screenplay Document  `json:"screenplay"`
	AVScript   AVScript  `json:"avScript"`
	UpdatedAt  Timestamp `json:"updatedAt"`
}

// AssetKind enumerates global asset categories.
type AssetKind string

const (
	AssetCharacter AssetKind = "character"
	AssetLocation  AssetKind = "location"
	AssetVehicle   AssetKind = "vehicle"
	AssetGadget    AssetKind = "gadget"
)

// Valid reports whether k is one of the known asset kinds.
func (k AssetKind) Valid() bool {
	switch k {
	case AssetCharacter, AssetLocation, AssetVehicle, AssetGadget:
		return true
	}
	return false
}

// GlobalAsset is a reusable show-level entity (character, location, vehicle, gadget).
type GlobalAsset struct {
	ID          string    `json:"id"`
	ShowID      string    `json:"showId"`
	Kind        AssetKind `json:"category"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	ImageURLs   []string  `json:"images,omitempty"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// FindEpisode returns a pointer into s.Episodes or nil.
func (s *Studio) FindEpisode(id string) *Episode {
	for i := range s.Episodes {
		if s.Episodes[i].ID == id {
			return &s.Episodes[i]
		}
	}
	return nil
}

// FindShow returns a pointer into s.Shows or nil.
func (s *Studio) FindShow(id string) *Show {
	for i := range s.Shows {
		if s.Shows[i].ID == id {
			return &s.Shows[i]
		}
	}
	return nil
}

// FindAsset returns a pointer into s.Assets or nil.
func (s *Studio) FindAsset(id string) *GlobalAsset {
	for i := range s.Assets {
		if s.Assets[i].ID == id {
			return &s.Assets[i]
		}
	}
	return nil
}
