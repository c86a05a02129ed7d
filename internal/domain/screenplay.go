/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "strings"

// Lang is a short language code such as "pl" or "en".
type Lang string

// ElementType identifies the layout role of a screenplay element.
type ElementType string

const (
	SceneSetting  ElementType = "scene-setting"
	Character     ElementType = "character"
	Action        ElementType = "action"
	Dialogue      ElementType = "dialogue"
	Parenthetical ElementType = "parenthetical"
	General       ElementType = "general"
)

// ElementTypes lists all element types in display order.
var ElementTypes = []ElementType{SceneSetting, Character, Action, Dialogue, Parenthetical, General}

// Valid reports whether t is a known element type.
func (t ElementType) Valid() bool {
	for _, k := range ElementTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Marker returns the upper-case block marker name used in translation markup, e.g. "SCENE-SETTING".
func (t ElementType) Marker() string {
	if !t.Valid() {
		return strings.ToUpper(string(General))
	}
	return strings.ToUpper(string(t))
}

// TypeFromMarker maps a markup marker name back to an element type. Unknown names map to General.
func TypeFromMarker(name string) ElementType {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "scene", "scene-heading", "heading":
		return SceneSetting
	}
	t := ElementType(n)
	if t.Valid() {
		return t
	}
	return General
}

// Comment is attached to a slot and therefore visible from both languages.
type Comment struct {
	ID        string    `json:"id"`
	CreatedAt Timestamp `json:"createdAt"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Images    []string  `json:"images,omitempty"`
}

// ThreadTurn is one prompt/response exchange recorded by an AI enhancement.
type ThreadTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// EnhancementThread is the audit record of an enhancement conversation.
type EnhancementThread struct {
	Instruction string       `json:"instruction,omitempty"`
	Model       string       `json:"model,omitempty"`
	Turns       []ThreadTurn `json:"turns,omitempty"`
	CreatedAt   Timestamp    `json:"createdAt"`
}

// Payload is the per-language part of a slot.
type Payload struct {
	Content           string             `json:"content"`
	EnhancementThread *EnhancementThread `json:"enhancementThread,omitempty"`
}

// Slot is one language-neutral screenplay unit. Type, comments and review state are shared
// between the two languages; only the payloads differ.
type Slot struct {
	ID                string      `json:"id"`
	Type              ElementType `json:"type"`
	Primary           Payload     `json:"primary"`
	Secondary         Payload     `json:"secondary"`
	Comments          []Comment   `json:"comments,omitempty"`
	Reviewed          bool        `json:"reviewed"`
	EditedInPrimary   bool        `json:"editedInPrimary"`
	EditedInSecondary bool        `json:"editedInSecondary"`
}

// Element is the per-language projection of a slot.
type Element struct {
	ID                string             `json:"id"`
	Type              ElementType        `json:"type"`
	Content           string             `json:"content"`
	Position          int                `json:"position"`
	Reviewed          bool               `json:"reviewed"`
	EditedInPrimary   bool               `json:"editedInPrimary"`
	EditedInSecondary bool               `json:"editedInSecondary"`
	Comments          []Comment          `json:"comments,omitempty"`
	EnhancementThread *EnhancementThread `json:"enhancementThread,omitempty"`
}

// VersionData is the frozen content of a stable version.
type VersionData struct {
	PrimaryTitle   string `json:"primaryTitle"`
	SecondaryTitle string `json:"secondaryTitle,omitempty"`
	HasSecondary   bool   `json:"hasSecondary"`
	Slots          []Slot `json:"slots"`
}

// StableVersion is a named snapshot of the full bilingual document.
type StableVersion struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	CreatedAt Timestamp   `json:"createdAt"`
	Data      VersionData `json:"data"`
}

// Document is the live bilingual screenplay.
type Document struct {
	PrimaryLang    Lang            `json:"primaryLang"`
	SecondaryLang  Lang            `json:"secondaryLang"`
	PrimaryTitle   string          `json:"primaryTitle"`
	SecondaryTitle string          `json:"secondaryTitle,omitempty"`
	HasSecondary   bool            `json:"hasSecondary"`
	Slots          []Slot          `json:"slots"`
	StableVersions []StableVersion `json:"stableVersions,omitempty"`
	Revision       int64           `json:"revision"`
}

// ElementID builds the language-tagged id of a slot.
func ElementID(lang Lang, baseID string) string {
	return string(lang) + "-" + baseID
}

// SplitElementID separates the language tag from the base id. ok is false when id carries no tag.
func SplitElementID(id string) (lang Lang, base string, ok bool) {
	i := strings.IndexByte(id, '-')
	if i <= 0 || i == len(id)-1 {
		return "", id, false
	}
	return Lang(id[:i]), id[i+1:], true
}

// Elements projects the slots into the element sequence of one language.
// Asking for the secondary language before it is initialized yields an empty slice.
func (d *Document) Elements(lang Lang) []Element {
	secondary := lang == d.SecondaryLang && lang != d.PrimaryLang
	if secondary && !d.HasSecondary {
		return []Element{}
	}
	out := make([]Element, len(d.Slots))
	for i, s := range d.Slots {
		p := s.Primary
		if secondary {
			p = s.Secondary
		}
		out[i] = Element{
			ID:                ElementID(lang, s.ID),
			Type:              s.Type,
			Content:           p.Content,
			Position:          i,
			Reviewed:          s.Reviewed,
			EditedInPrimary:   s.EditedInPrimary,
			EditedInSecondary: s.EditedInSecondary,
			Comments:          cloneComments(s.Comments),
			EnhancementThread: p.EnhancementThread.Clone(),
		}
	}
	return out
}

// Title returns the title for lang.
func (d *Document) Title(lang Lang) string {
	if lang == d.SecondaryLang && lang != d.PrimaryLang {
		return d.SecondaryTitle
	}
	return d.PrimaryTitle
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	c := d
	c.Slots = cloneSlots(d.Slots)
	if d.StableVersions != nil {
		c.StableVersions = make([]StableVersion, len(d.StableVersions))
		for i, v := range d.StableVersions {
			v.Data.Slots = cloneSlots(v.Data.Slots)
			c.StableVersions[i] = v
		}
	}
	return c
}

// Clone returns a deep copy of s.
func (s Slot) Clone() Slot {
	c := s
	c.Comments = cloneComments(s.Comments)
	c.Primary.EnhancementThread = s.Primary.EnhancementThread.Clone()
	c.Secondary.EnhancementThread = s.Secondary.EnhancementThread.Clone()
	return c
}

// Clone returns a deep copy of t; nil stays nil.
func (t *EnhancementThread) Clone() *EnhancementThread {
	if t == nil {
		return nil
	}
	c := *t
	if t.Turns != nil {
		c.Turns = append([]ThreadTurn(nil), t.Turns...)
	}
	return &c
}

func cloneSlots(in []Slot) []Slot {
	if in == nil {
		return nil
	}
	out := make([]Slot, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

func cloneComments(in []Comment) []Comment {
	if in == nil {
		return nil
	}
	out := make([]Comment, len(in))
	for i, c := range in {
		if c.Images != nil {
			c.Images = append([]string(nil), c.Images...)
		}
		out[i] = c
	}
	return out
}
