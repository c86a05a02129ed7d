/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package screenplay

import (
	"reflect"
	"testing"

	"concepto/internal/domain"
)

func seed(t *testing.T, e *Engine, sess *Session, items ...Block) {
	t.Helper()
	after := ""
	for _, it := range items {
		after = e.AddElement(sess, it.Type, after)
		e.UpdateContent(sess, after, it.Content)
	}
}

func TestMarkupParseRoundTrip(t *testing.T) {
	e, sess := newTestEngine(t)
	seed(t, e, sess,
		Block{domain.SceneSetting, "WNĘTRZE. DOM - NOC"},
		Block{domain.Character, "ANNA"},
		Block{domain.Dialogue, "Kto tam?\nHalo?"},
	)
	text := e.Markup("pl")
	want := "[SCENE-SETTING]\nWNĘTRZE. DOM - NOC\n[/SCENE-SETTING]\n[CHARACTER]\nANNA\n[/CHARACTER]\n[DIALOGUE]\nKto tam?\nHalo?\n[/DIALOGUE]"
	if text != want {
		t.Fatalf("markup mismatch:\n%s", text)
	}
	got := ParseMarkup(text)
	exp := []Block{{domain.SceneSetting, "WNĘTRZE. DOM - NOC"}, {domain.Character, "ANNA"}, {domain.Dialogue, "Kto tam?\nHalo?"}}
	if !reflect.DeepEqual(got, exp) {
		t.Fatalf("parse mismatch: %+v", got)
	}
}

func TestParseMarkupTolerance(t *testing.T) {
	in := "Sure! Here is the translation:\n```\n[SCENE]\nINT. HOUSE - NIGHT\n[ACTION]\nRain.\n[/ACTION]\nstray text\n[NARRATOR]\n  Once upon a time  \n```"
	got := ParseMarkup(in)
	exp := []Block{{domain.SceneSetting, "INT. HOUSE - NIGHT"}, {domain.Action, "Rain."}, {domain.General, "Once upon a time"}}
	if !reflect.DeepEqual(got, exp) {
		t.Fatalf("unexpected blocks: %+v", got)
	}
	if len(ParseMarkup("")) != 0 || len(ParseMarkup("no markers at all")) != 0 {
		t.Fatalf("expected no blocks")
	}
}

func TestIngestTranslationMatchingStructure(t *testing.T) {
	e, sess := newTestEngine(t)
	seed(t, e, sess,
		Block{domain.SceneSetting, "WNĘTRZE. DOM"},
		Block{domain.Character, "ANNA"},
		Block{domain.Dialogue, "Cześć"},
	)
	for _, id := range []string{"pl-s1", "pl-s2", "pl-s3"} {
		e.MarkReviewed(sess, id)
	}
	rep := e.IngestTranslation(nil, "en", "[SCENE-SETTING]\nINT. HOUSE\n[/SCENE-SETTING]\n[CHARACTER]\nANNA\n[/CHARACTER]\n[DIALOGUE]\nHi\n[/DIALOGUE]")
	if rep.Matched != 3 || rep.Fallbacks != 0 || len(rep.Missing) != 0 || rep.Unused != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	en := e.Elements("en")
	for i, want := range []string{"INT. HOUSE", "ANNA", "Hi"} {
		if en[i].Content != want {
			t.Fatalf("en[%d] = %q want %q", i, en[i].Content, want)
		}
		if en[i].EditedInSecondary || !en[i].Reviewed {
			t.Fatalf("ingestion must not touch flags: %+v", en[i])
		}
	}
}

func TestIngestTranslationFallbackNeverReuses(t *testing.T) {
	e, sess := newTestEngine(t)
	seed(t, e, sess,
		Block{domain.Character, "ANNA"},
		Block{domain.Dialogue, "Raz"},
		Block{domain.Character, "PIOTR"},
		Block{domain.Dialogue, "Dwa"},
	)
	// the model dropped the first character block and the second dialogue
	rep := e.IngestTranslation(nil, "en", "[DIALOGUE]\nOne\n[/DIALOGUE]\n[CHARACTER]\nPETER\n[/CHARACTER]")
	en := e.Elements("en")
	got := []string{en[0].Content, en[1].Content, en[2].Content, en[3].Content}
	want := []string{"PETER", "One", "", ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
	if !reflect.DeepEqual(rep.Missing, []int{2, 3}) || rep.Fallbacks != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestIngestTranslationGarbage(t *testing.T) {
	e, sess := newTestEngine(t)
	seed(t, e, sess, Block{domain.Action, "Cisza."})
	rep := e.IngestTranslation(nil, "en", "I cannot help with that.")
	if rep.Blocks != 0 || len(rep.Missing) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if e.Elements("en")[0].Content != "" || e.Elements("pl")[0].Content != "Cisza." {
		t.Fatalf("garbage translation must only blank the target")
	}
}
