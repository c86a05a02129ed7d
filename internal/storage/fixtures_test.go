/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import "concepto/internal/domain"

func slot(id string, t domain.ElementType, pl, en string) domain.Slot {
	return domain.Slot{ID: id, Type: t, Primary: domain.Payload{Content: pl}, Secondary: domain.Payload{Content: en}}
}

// sampleStudio returns a studio with one show, one bilingual episode with a short AV script
// and a character asset.
func sampleStudio() domain.Studio {
	doc := domain.Document{
		PrimaryLang:    "pl",
		SecondaryLang:  "en",
		PrimaryTitle:   "Laboratorium",
		SecondaryTitle: "The Lab",
		HasSecondary:   true,
		Slots: []domain.Slot{
			slot("a1", domain.SceneSetting, "WNĘTRZE. LABORATORIUM - DZIEŃ", "INT. LAB - DAY"),
			slot("a2", domain.Character, "ADA", "ADA"),
			slot("a3", domain.Dialogue, "Działa! Robot się rusza.", "It works! The robot moves."),
			slot("a4", domain.SceneSetting, "PLENER. OGRÓD - NOC", "EXT. GARDEN - NIGHT"),
			slot("a5", domain.Action, "Robot idzie przez ogród.", "The robot walks through the garden."),
		},
	}
	return domain.Studio{
		Name:  "Test Studio",
		Shows: []domain.Show{{ID: "show1", Name: "Robots"}},
		Episodes: []domain.Episode{{
			ID:         "ep1",
			ShowID:     "show1",
			Number:     1,
			Title:      "Pilot",
			Screenplay: doc,
			AVScript: domain.AVScript{Lang: "en", Segments: []domain.AVSegment{{
				ID: "seg1", SegmentNumber: 2, Title: "SC02",
				Shots: []domain.AVShot{{ID: "shot1", Scene: 2, Shot: 1, ShotNumber: "2.1", UniqueName: "SC02T01", Audio: "NARRATOR: night falls", Visual: "Wide shot of the garden, moonlight", Duration: "00:03:00"}},
			}}},
		}},
		Assets: []domain.GlobalAsset{{ID: "ada", ShowID: "show1", Kind: domain.AssetCharacter, Name: "Ada"}},
	}
}
