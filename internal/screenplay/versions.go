/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package screenplay

import (
	"fmt"
	"strings"

	"concepto/internal/domain"
)

// SaveStableVersion freezes titles and slots into a new stable version and returns its id.
// An empty name defaults to Screenplay_stable_vN.
func (e *Engine) SaveStableVersion(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Screenplay_stable_v%d", len(e.doc.StableVersions)+1)
	}
	snap := e.doc.Clone()
	v := domain.StableVersion{
		ID:        e.newID(),
		Name:      name,
		CreatedAt: domain.TS(e.now()),
		Data: domain.VersionData{
			PrimaryTitle:   snap.PrimaryTitle,
			SecondaryTitle: snap.SecondaryTitle,
			HasSecondary:   snap.HasSecondary,
			Slots:          snap.Slots,
		},
	}
	e.doc.StableVersions = append(e.doc.StableVersions, v)
	e.touch()
	return v.ID
}

// RestoreStableVersion copies the version's titles and slots back over the live document.
// The version list itself is unchanged.
func (e *Engine) RestoreStableVersion(sess *Session, id string) bool {
	i := e.versionIndex(id)
	if i < 0 {
		return false
	}
	v := e.doc.StableVersions[i]
	restored := domain.Document{Slots: v.Data.Slots}.Clone()
	e.doc.PrimaryTitle = v.Data.PrimaryTitle
	e.doc.SecondaryTitle = v.Data.SecondaryTitle
	e.doc.HasSecondary = v.Data.HasSecondary
	e.doc.Slots = restored.Slots
	if e.doc.Slots == nil {
		e.doc.Slots = []domain.Slot{}
	}
	if sess != nil {
		sess.reset()
	}
	e.touch()
	return true
}

// RenameStableVersion changes the display name of a version.
func (e *Engine) RenameStableVersion(id, name string) bool {
	i := e.versionIndex(id)
	name = strings.TrimSpace(name)
	if i < 0 || name == "" {
		return false
	}
	e.doc.StableVersions[i].Name = name
	e.touch()
	return true
}

// DeleteStableVersion removes a version.
func (e *Engine) DeleteStableVersion(id string) bool {
	i := e.versionIndex(id)
	if i < 0 {
		return false
	}
	e.doc.StableVersions = append(e.doc.StableVersions[:i], e.doc.StableVersions[i+1:]...)
	e.touch()
	return true
}

// StableVersions returns copies of the stored versions.
func (e *Engine) StableVersions() []domain.StableVersion {
	return domain.Document{StableVersions: e.doc.StableVersions}.Clone().StableVersions
}

func (e *Engine) versionIndex(id string) int {
	for i, v := range e.doc.StableVersions {
		if v.ID == id {
			return i
		}
	}
	return -1
}
