/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"concepto/internal/domain"
)

func slot(id string, t domain.ElementType, pl, en string) domain.Slot {
	return domain.Slot{ID: id, Type: t, Primary: domain.Payload{Content: pl}, Secondary: domain.Payload{Content: en}}
}

func sampleEpisode() domain.Episode {
	return domain.Episode{
		ID:     "ep1",
		Number: 3,
		Title:  "Night Garden",
		Screenplay: domain.Document{
			PrimaryLang:    "pl",
			SecondaryLang:  "en",
			PrimaryTitle:   "Nocny ogród",
			SecondaryTitle: "Night Garden",
			HasSecondary:   true,
			Slots: []domain.Slot{
				slot("s1", domain.SceneSetting, "WNĘTRZE. KUCHNIA - NOC", "INT. KITCHEN - NIGHT"),
				slot("s2", domain.Action, "Ada otwiera lodówkę.", "Ada opens the fridge."),
				slot("s3", domain.Character, "ADA", "ADA"),
				slot("s4", domain.Parenthetical, "szeptem", "whispering"),
				slot("s5", domain.Dialogue, "Nikogo nie ma.", "Nobody is here."),
				slot("s6", domain.SceneSetting, "PLENER. OGRÓD - NOC", "EXT. GARDEN - NIGHT"),
				slot("s7", domain.Action, "Cisza.", "Silence."),
				slot("s8", domain.Character, "ROBOT", "ROBOT"),
				slot("s9", domain.Action, "", ""),
			},
		},
		AVScript: domain.AVScript{
			Lang: "en",
			Segments: []domain.AVSegment{
				{ID: "g1", SegmentNumber: 1, Title: "SC01 INT. KITCHEN - NIGHT", Shots: []domain.AVShot{
					{ID: "a", ShotNumber: "1.1", UniqueName: "SC01T01", Audio: "ADA: Nobody is here.", Visual: "Fridge light on Ada's face", Duration: "00:03:00", Runtime: 3, ImageURL: "media/ep1/a.png"},
					{ID: "b", ShotNumber: "1.2", UniqueName: "SC01T02", Audio: "", Visual: "Wide kitchen", Duration: "00:02:12", Runtime: 2.5},
				}},
				{ID: "g2", SegmentNumber: 2, Title: "SC02 EXT. GARDEN - NIGHT", Shots: []domain.AVShot{
					{ID: "c", ShotNumber: "2.1", UniqueName: "SC02T01", Audio: "NARRATOR: night falls", Visual: "Garden, moonlight", Duration: "00:04:00", Runtime: 4},
				}},
			},
		},
	}
}

func tinyPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 32, 18))
	for x := 0; x < 32; x++ {
		img.Set(x, 9, color.RGBA{200, 0, 0, 255})
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
