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
	"reflect"
	"testing"
	"time"

	"concepto/internal/domain"
)

func newTestEngine(t *testing.T) (*Engine, *Session) {
	t.Helper()
	n := 0
	e := New(NewDocument("pl", "en", "Pilot"),
		WithIDFunc(func() string { n++; return fmt.Sprintf("s%d", n) }),
		WithClock(func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	return e, NewSession("pl")
}

func checkInvariant(t *testing.T, e *Engine) {
	t.Helper()
	pl, en := e.Elements("pl"), e.Elements("en")
	if len(pl) != len(en) {
		t.Fatalf("length mismatch: %d vs %d", len(pl), len(en))
	}
	for i := range pl {
		if pl[i].Type != en[i].Type {
			t.Fatalf("type mismatch at %d: %s vs %s", i, pl[i].Type, en[i].Type)
		}
		if pl[i].Position != i || en[i].Position != i {
			t.Fatalf("position mismatch at %d: %d/%d", i, pl[i].Position, en[i].Position)
		}
	}
}

func TestStructuralOpsKeepLanguagesAligned(t *testing.T) {
	e, sess := newTestEngine(t)
	a := e.AddElement(sess, domain.SceneSetting, "")
	checkInvariant(t, e)
	b := e.AddElement(sess, domain.Character, a)
	checkInvariant(t, e)
	e.AddElement(sess, domain.Dialogue, b)
	checkInvariant(t, e)
	// insert in the middle from the secondary view
	en := NewSession("en")
	mid := e.AddElement(en, domain.Action, "en-s1")
	if mid != "en-s4" {
		t.Fatalf("unexpected id from secondary insert: %q", mid)
	}
	checkInvariant(t, e)
	if got := e.Elements("pl")[1].Type; got != domain.Action {
		t.Fatalf("expected action at index 1, got %s", got)
	}
	if !e.ChangeType("en-s4", domain.Parenthetical) {
		t.Fatalf("change type failed")
	}
	checkInvariant(t, e)
	if e.Elements("pl")[1].Type != domain.Parenthetical {
		t.Fatalf("retype not mirrored")
	}
	if !e.DeleteElement(sess, b) {
		t.Fatalf("delete failed")
	}
	checkInvariant(t, e)
	if e.Len() != 3 {
		t.Fatalf("expected 3 slots, got %d", e.Len())
	}
}

func TestAddElementFocusAndStaleAfter(t *testing.T) {
	e, sess := newTestEngine(t)
	id := e.AddElement(sess, domain.Action, "")
	if sess.Editing != id || id != "pl-s1" {
		t.Fatalf("focus not moved to new element: %q / %q", sess.Editing, id)
	}
	if got := e.AddElement(sess, domain.Action, "pl-missing"); got != "" {
		t.Fatalf("stale afterID should be a no-op, got %q", got)
	}
	if e.Len() != 1 {
		t.Fatalf("stale insert changed the document")
	}
}

func TestEditFlagsAreSharedAndClearedByReview(t *testing.T) {
	e, sess := newTestEngine(t)
	id := e.AddElement(sess, domain.Dialogue, "")
	e.MarkReviewed(sess, id)
	if !e.BeginEdit(sess, id) {
		t.Fatalf("begin edit failed")
	}
	e.UpdateContent(sess, id, "H")
	e.UpdateContent(sess, id, "Hej")
	pl, en := e.Elements("pl")[0], e.Elements("en")[0]
	if !pl.EditedInPrimary || !en.EditedInPrimary {
		t.Fatalf("editedInPrimary must show in both languages: %+v %+v", pl, en)
	}
	if pl.Reviewed || en.Reviewed {
		t.Fatalf("edit must clear reviewed")
	}
	if pl.EditedInSecondary {
		t.Fatalf("secondary flag set by primary edit")
	}
	e.EndEdit(sess, id)
	if !e.MarkReviewed(sess, "en-s1") {
		t.Fatalf("mark reviewed failed")
	}
	pl, en = e.Elements("pl")[0], e.Elements("en")[0]
	if pl.EditedInPrimary || en.EditedInPrimary || !pl.Reviewed || !en.Reviewed {
		t.Fatalf("review did not reset flags: %+v %+v", pl, en)
	}
}

func TestEditSessionDetectsNetChangeOnly(t *testing.T) {
	e, sess := newTestEngine(t)
	id := e.AddElement(nil, domain.Action, "")
	e.UpdateContent(nil, id, "The door opens.")
	e.MarkReviewed(nil, id)

	e.BeginEdit(sess, id)
	if changed := e.EndEdit(sess, id); changed {
		t.Fatalf("no edit should not flag")
	}
	if e.Elements("pl")[0].EditedInPrimary {
		t.Fatalf("flag set without change")
	}

	en := NewSession("en")
	e.BeginEdit(en, "en-s1")
	e.UpdateContent(en, "en-s1", "The door")
	e.UpdateContent(en, "en-s1", "The door opens.")
	if !e.EndEdit(en, "en-s1") {
		t.Fatalf("expected change on end")
	}
	if !e.Elements("pl")[0].EditedInSecondary {
		t.Fatalf("secondary edit flag missing")
	}
	if en.Editing != "" {
		t.Fatalf("focus not cleared")
	}
}

func TestStaleIDsAreNoOps(t *testing.T) {
	e, sess := newTestEngine(t)
	e.AddElement(sess, domain.Action, "")
	rev := e.Revision()
	if e.UpdateContent(sess, "pl-nope", "x") || e.DeleteElement(sess, "en-nope") || e.ChangeType("nope", domain.Action) ||
		e.MarkReviewed(sess, "") || e.IngestEnhancement(sess, "pl-nope", "x", nil) || e.AddComment("pl-nope", "a", "b", nil) != "" {
		t.Fatalf("stale id must be a no-op")
	}
	if e.Revision() != rev {
		t.Fatalf("revision changed on no-op: %d -> %d", rev, e.Revision())
	}
}

func TestDeleteRecomputesPositionsAndClearsFocus(t *testing.T) {
	e, sess := newTestEngine(t)
	for i := 0; i < 4; i++ {
		e.AddElement(sess, domain.Action, "")
	}
	e.BeginEdit(sess, "pl-s2")
	if !e.DeleteElement(sess, "pl-s2") {
		t.Fatalf("delete failed")
	}
	if sess.Editing != "" {
		t.Fatalf("focus on deleted element not cleared")
	}
	if _, ok := sess.Baseline("pl-s2"); ok {
		t.Fatalf("baseline of deleted element kept")
	}
	want := []string{"s1", "s3", "s4"}
	for lang, prefix := range map[domain.Lang]string{"pl": "pl-", "en": "en-"} {
		els := e.Elements(lang)
		for i, el := range els {
			if el.Position != i || el.ID != prefix+want[i] {
				t.Fatalf("%s[%d] = %+v", lang, i, el)
			}
		}
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	e, sess := newTestEngine(t)
	id := e.AddElement(sess, domain.Action, "")
	asked := 0
	sess.Confirm = func(string) bool { asked++; return false }
	if e.DeleteElement(sess, id) {
		t.Fatalf("declined delete must not remove")
	}
	sess.Confirm = func(string) bool { asked++; return true }
	if !e.DeleteElement(sess, id) || asked != 2 {
		t.Fatalf("confirmed delete failed (asked=%d)", asked)
	}
}

func TestEnhancementFlagsAgainstPreviousContent(t *testing.T) {
	e, sess := newTestEngine(t)
	id := e.AddElement(sess, domain.Dialogue, "")
	e.UpdateContent(nil, id, "hello")
	e.MarkReviewed(sess, id)
	th := &domain.EnhancementThread{Instruction: "more dramatic", Turns: []domain.ThreadTurn{{Role: "user", Text: "hello"}}}
	if !e.IngestEnhancement(sess, id, "HELLO!", th) {
		t.Fatalf("enhancement failed")
	}
	el := e.Elements("pl")[0]
	if el.Content != "HELLO!" || !el.EditedInPrimary || el.EnhancementThread == nil || el.EnhancementThread.Instruction != "more dramatic" {
		t.Fatalf("unexpected element after enhancement: %+v", el)
	}
	th.Turns[0].Text = "mutated"
	if e.Elements("pl")[0].EnhancementThread.Turns[0].Text != "hello" {
		t.Fatalf("thread must be copied")
	}
}

func TestCommentsVisibleFromBothLanguages(t *testing.T) {
	e, sess := newTestEngine(t)
	e.AddElement(sess, domain.Action, "")
	cid := e.AddComment("en-s1", "kasia", "check this", []string{"http://img/1.png"})
	if cid == "" {
		t.Fatalf("comment not added")
	}
	if len(e.Elements("pl")[0].Comments) != 1 || len(e.Elements("en")[0].Comments) != 1 {
		t.Fatalf("comment should be shared")
	}
	if !e.DeleteComment("pl-s1", cid) {
		t.Fatalf("delete comment failed")
	}
	if len(e.Elements("en")[0].Comments) != 0 {
		t.Fatalf("comment still visible")
	}
}

func TestStableVersionRoundTrip(t *testing.T) {
	e, sess := newTestEngine(t)
	a := e.AddElement(sess, domain.SceneSetting, "")
	e.UpdateContent(sess, a, "WNĘTRZE. KUCHNIA")
	e.AddElement(sess, domain.Action, a)
	e.SetTitle("en", "Pilot EN")
	e.MarkReviewed(sess, a)
	wantPL, wantEN := e.Elements("pl"), e.Elements("en")
	wantTitles := [2]string{e.Document().PrimaryTitle, e.Document().SecondaryTitle}

	vid := e.SaveStableVersion("")
	if got := e.StableVersions()[0].Name; got != "Screenplay_stable_v1" {
		t.Fatalf("default name: %q", got)
	}

	e.UpdateContent(sess, a, "EXT. GARDEN")
	e.DeleteElement(sess, "pl-s2")
	e.AddElement(sess, domain.Dialogue, "")
	e.SetTitle("pl", "Changed")

	if !e.RestoreStableVersion(sess, vid) {
		t.Fatalf("restore failed")
	}
	if !reflect.DeepEqual(e.Elements("pl"), wantPL) || !reflect.DeepEqual(e.Elements("en"), wantEN) {
		t.Fatalf("restored elements differ\n got %+v\nwant %+v", e.Elements("pl"), wantPL)
	}
	if e.Document().PrimaryTitle != wantTitles[0] || e.Document().SecondaryTitle != wantTitles[1] {
		t.Fatalf("titles not restored")
	}
	if len(e.StableVersions()) != 1 {
		t.Fatalf("version list must be untouched by restore")
	}
	// mutating after restore must not leak into the stored version
	e.UpdateContent(sess, a, "again")
	if e.Document().StableVersions[0].Data.Slots[0].Primary.Content != "WNĘTRZE. KUCHNIA" {
		t.Fatalf("version shares memory with live document")
	}
}

func TestStableVersionRenameDelete(t *testing.T) {
	e, _ := newTestEngine(t)
	v1 := e.SaveStableVersion("first")
	v2 := e.SaveStableVersion("")
	if e.StableVersions()[1].Name != "Screenplay_stable_v2" {
		t.Fatalf("second default name: %q", e.StableVersions()[1].Name)
	}
	if !e.RenameStableVersion(v2, "final") || e.StableVersions()[1].Name != "final" {
		t.Fatalf("rename failed")
	}
	if e.RenameStableVersion(v1, "  ") {
		t.Fatalf("blank rename should be rejected")
	}
	if !e.DeleteStableVersion(v1) || len(e.StableVersions()) != 1 {
		t.Fatalf("delete failed")
	}
	if e.DeleteStableVersion(v1) || e.RestoreStableVersion(nil, v1) {
		t.Fatalf("stale version id must be a no-op")
	}
}

func TestReplaceAllAlignsOtherLanguage(t *testing.T) {
	e, sess := newTestEngine(t)
	e.AddElement(sess, domain.Action, "")
	v := e.SaveStableVersion("keep")
	e.ReplaceAll(sess, "pl", []Block{{Type: domain.SceneSetting, Content: "INT. DOM"}, {Type: "bogus", Content: "x"}})
	checkInvariant(t, e)
	en := e.Elements("en")
	if len(en) != 2 || en[0].Content != "" || en[1].Type != domain.General {
		t.Fatalf("unexpected secondary after replace: %+v", en)
	}
	if len(e.StableVersions()) != 1 || e.StableVersions()[0].ID != v {
		t.Fatalf("stable versions must survive ReplaceAll")
	}
}

func TestSecondaryInitializedOnFirstWrite(t *testing.T) {
	e, sess := newTestEngine(t)
	e.AddElement(sess, domain.Action, "")
	if e.Document().HasSecondary {
		t.Fatalf("secondary should start absent")
	}
	if got := e.Document().Elements("en"); len(got) != 0 {
		t.Fatalf("absent secondary should project empty")
	}
	rev := e.Revision()
	if len(e.Elements("en")) != 1 || e.Index("en-s1") != 0 {
		t.Fatalf("secondary view not aligned with primary")
	}
	if _, ok := e.Slot("en-s1"); !ok {
		t.Fatalf("slot lookup by secondary id failed")
	}
	_ = e.Markup("en")
	if e.Revision() != rev || e.Document().HasSecondary {
		t.Fatalf("lookups changed the document: revision %d->%d", rev, e.Revision())
	}
	if !e.UpdateContent(NewSession("en"), "en-s1", "Rain.") {
		t.Fatalf("update secondary failed")
	}
	if !e.Document().HasSecondary || e.Elements("en")[0].Content != "Rain." {
		t.Fatalf("secondary not initialized by the first write")
	}
}
