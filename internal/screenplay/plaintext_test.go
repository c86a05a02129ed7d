/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package screenplay

import (
	"testing"

	"concepto/internal/domain"
)

func TestImportPlainTextScenesAndDialogue(t *testing.T) {
	input := `# Opening Scene
ALICE: Hello, world!
  And a continuation line.

; a note that is skipped
The wind howls.

INT. KITCHEN - NIGHT
BOB
(quietly)
Hi, Alice.
How are you?

EXT. GARDEN
Scene: Finale`

	blocks, errs := ImportPlainText(input)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	want := []Block{
		{domain.SceneSetting, "Opening Scene"},
		{domain.Character, "ALICE"},
		{domain.Dialogue, "Hello, world!\nAnd a continuation line."},
		{domain.Action, "The wind howls."},
		{domain.SceneSetting, "INT. KITCHEN - NIGHT"},
		{domain.Character, "BOB"},
		{domain.Parenthetical, "(quietly)"},
		{domain.Dialogue, "Hi, Alice.\nHow are you?"},
		{domain.SceneSetting, "EXT. GARDEN"},
		{domain.SceneSetting, "Finale"},
	}
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(want), len(blocks), blocks)
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Fatalf("block %d: got %+v want %+v", i, blocks[i], want[i])
		}
	}
}

func TestImportPlainTextEmptyHeading(t *testing.T) {
	blocks, errs := ImportPlainText("#\nSomething happens.")
	if len(errs) != 1 || errs[0].Line != 1 {
		t.Fatalf("expected one error on line 1, got %+v", errs)
	}
	if len(blocks) != 1 || blocks[0].Type != domain.Action {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}
}

func TestImportIntoEngine(t *testing.T) {
	e, sess := newTestEngine(t)
	blocks, _ := ImportPlainText("INT. DOM\nANNA: Cześć")
	e.ReplaceAll(sess, "pl", blocks)
	if e.Len() != 3 {
		t.Fatalf("expected 3 slots, got %d", e.Len())
	}
	checkInvariant(t, e)
}
