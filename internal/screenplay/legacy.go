/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package screenplay

import (
	"strings"

	"concepto/internal/domain"

	"github.com/google/uuid"
)

// FromDualArrays converts a dual-array document into slots. Arrays of different length are
// padded with empty payloads; on type disagreement the primary type wins.
func FromDualArrays(in domain.LegacyDocument, primary, secondary domain.Lang) domain.Document {
	d := legacySlots(in, primary, secondary)
	d.PrimaryLang = primary
	d.SecondaryLang = secondary
	for _, v := range in.StableVersions {
		vd := legacySlots(v.Data, primary, secondary)
		id := v.ID
		if id == "" {
			id = uuid.NewString()
		}
		d.StableVersions = append(d.StableVersions, domain.StableVersion{
			ID:        id,
			Name:      v.Name,
			CreatedAt: v.CreatedAt,
			Data: domain.VersionData{
				PrimaryTitle:   vd.PrimaryTitle,
				SecondaryTitle: vd.SecondaryTitle,
				HasSecondary:   vd.HasSecondary,
				Slots:          vd.Slots,
			},
		})
	}
	return d
}

func legacySlots(in domain.LegacyDocument, primary, secondary domain.Lang) domain.Document {
	n := len(in.PrimaryElements)
	if len(in.SecondaryElements) > n {
		n = len(in.SecondaryElements)
	}
	d := domain.Document{
		PrimaryTitle:   in.PrimaryTitle,
		SecondaryTitle: in.SecondaryTitle,
		HasSecondary:   in.SecondaryElements != nil,
		Slots:          make([]domain.Slot, 0, n),
	}
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		var p, s *domain.Element
		if i < len(in.PrimaryElements) {
			p = &in.PrimaryElements[i]
		}
		if i < len(in.SecondaryElements) {
			s = &in.SecondaryElements[i]
		}
		slot := domain.Slot{}
		switch {
		case p != nil:
			slot.ID = stripLang(p.ID, primary)
			slot.Type = p.Type
		default:
			slot.ID = stripLang(s.ID, secondary)
			slot.Type = s.Type
		}
		if slot.ID == "" || seen[slot.ID] {
			slot.ID = uuid.NewString()
		}
		seen[slot.ID] = true
		if !slot.Type.Valid() {
			slot.Type = domain.General
		}
		commentIDs := map[string]bool{}
		for _, el := range []*domain.Element{p, s} {
			if el == nil {
				continue
			}
			slot.Reviewed = slot.Reviewed || el.Reviewed
			slot.EditedInPrimary = slot.EditedInPrimary || el.EditedInPrimary
			slot.EditedInSecondary = slot.EditedInSecondary || el.EditedInSecondary
			for _, c := range el.Comments {
				if c.ID != "" && commentIDs[c.ID] {
					continue
				}
				commentIDs[c.ID] = true
				slot.Comments = append(slot.Comments, c)
			}
		}
		if slot.EditedInPrimary || slot.EditedInSecondary {
			slot.Reviewed = false
		}
		if p != nil {
			slot.Primary = domain.Payload{Content: p.Content, EnhancementThread: p.EnhancementThread.Clone()}
		}
		if s != nil {
			slot.Secondary = domain.Payload{Content: s.Content, EnhancementThread: s.EnhancementThread.Clone()}
		}
		d.Slots = append(d.Slots, slot)
	}
	return d
}

func stripLang(id string, lang domain.Lang) string {
	return strings.TrimPrefix(id, string(lang)+"-")
}
