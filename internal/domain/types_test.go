/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEpisodeJSONRoundTrip(t *testing.T) {
	ep := Episode{
		ID:     "ep1",
		ShowID: "show1",
		Number: 3,
		Title:  "RoundTrip",
		Screenplay: Document{
			PrimaryLang:   "pl",
			SecondaryLang: "en",
			PrimaryTitle:  "Tytuł",
			HasSecondary:  true,
			Slots: []Slot{
				{ID: "a", Type: SceneSetting, Primary: Payload{Content: "WNĘTRZE. DOM"}, Secondary: Payload{Content: "INT. HOUSE"}},
			},
		},
		AVScript: AVScript{Segments: []AVSegment{{SegmentNumber: 1, Title: "SC01", Shots: []AVShot{{ShotNumber: "1.1", UniqueName: "SC01T01"}}}}},
	}

	b, err := json.Marshal(ep)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Episode
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Title != ep.Title || len(got.Screenplay.Slots) != 1 {
		t.Fatalf("unexpected episode: %+v", got)
	}
	if got.Screenplay.Slots[0].Secondary.Content != "INT. HOUSE" {
		t.Fatalf("secondary content lost: %+v", got.Screenplay.Slots[0])
	}
	if len(got.AVScript.Segments) != 1 || got.AVScript.Segments[0].Shots[0].UniqueName != "SC01T01" {
		t.Fatalf("unexpected av script: %+v", got.AVScript)
	}
}

func TestTimestampShapes(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	inputs := []string{
		`{"seconds": 1714564800, "nanoseconds": 0}`,
		`{"_seconds": 1714564800, "_nanoseconds": 0}`,
		`"2024-05-01T12:00:00Z"`,
		`1714564800000`,
		`1714564800`,
		`{"$date": "2024-05-01T12:00:00Z"}`,
	}
	for _, in := range inputs {
		var c Comment
		if err := json.Unmarshal([]byte(`{"id":"c","createdAt":`+in+`}`), &c); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if !c.CreatedAt.Equal(want) {
			t.Fatalf("%s: got %v want %v", in, c.CreatedAt.Time, want)
		}
	}
}

func TestTimestampNullAndMarshal(t *testing.T) {
	var c Comment
	if err := json.Unmarshal([]byte(`{"id":"c","createdAt":null}`), &c); err != nil {
		t.Fatalf("null: %v", err)
	}
	if !c.CreatedAt.IsZero() {
		t.Fatalf("expected zero time")
	}
	b, _ := json.Marshal(Timestamp{time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)})
	if string(b) != `"2024-05-01T12:00:00Z"` {
		t.Fatalf("marshal: %s", b)
	}
	if _, err := NormalizeInstant(json.RawMessage(`"yesterday"`)); err == nil {
		t.Fatalf("expected error for garbage string")
	}
}

func TestElementsProjection(t *testing.T) {
	d := Document{PrimaryLang: "pl", SecondaryLang: "en", Slots: []Slot{
		{ID: "a", Type: Character, Primary: Payload{Content: "ANNA"}},
		{ID: "b", Type: Dialogue, Primary: Payload{Content: "Cześć"}, Secondary: Payload{Content: "Hi"}},
	}}
	if got := d.Elements("en"); len(got) != 0 {
		t.Fatalf("secondary must be absent before init, got %d", len(got))
	}
	d.HasSecondary = true
	pl, en := d.Elements("pl"), d.Elements("en")
	if len(pl) != 2 || len(en) != 2 {
		t.Fatalf("lengths: %d %d", len(pl), len(en))
	}
	if pl[1].ID != "pl-b" || en[1].ID != "en-b" || en[1].Position != 1 || en[1].Content != "Hi" {
		t.Fatalf("unexpected projection: %+v / %+v", pl[1], en[1])
	}
	lang, base, ok := SplitElementID("en-b")
	if !ok || lang != "en" || base != "b" {
		t.Fatalf("split: %v %v %v", lang, base, ok)
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	d := Document{Slots: []Slot{{ID: "a", Comments: []Comment{{ID: "c", Images: []string{"x"}}}}}}
	c := d.Clone()
	c.Slots[0].Comments[0].Images[0] = "y"
	c.Slots[0].Primary.Content = "changed"
	if d.Slots[0].Comments[0].Images[0] != "x" || d.Slots[0].Primary.Content != "" {
		t.Fatalf("clone shares memory with original")
	}
}

func TestTypeFromMarker(t *testing.T) {
	if TypeFromMarker("SCENE-SETTING") != SceneSetting || TypeFromMarker("SCENE") != SceneSetting {
		t.Fatalf("scene markers")
	}
	if TypeFromMarker("NARRATOR") != General {
		t.Fatalf("unknown marker should map to general")
	}
	if Dialogue.Marker() != "DIALOGUE" {
		t.Fatalf("marker: %s", Dialogue.Marker())
	}
}
