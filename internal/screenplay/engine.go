/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package screenplay implements the bilingual screenplay document engine.
//
// The document is an ordered list of slots; each slot carries one shared element type and
// shared review state plus a payload per language. Structural operations (insert, delete,
// retype) therefore act on both languages at once and the two per-language element sequences
// can never drift apart.
//
// Operations that receive an unknown id are silent no-ops and report false (or an empty id).
// The engine is not safe for concurrent use; one owner per open document.
package screenplay

import (
	"time"

	"concepto/internal/domain"

	"github.com/google/uuid"
)

// Engine mutates one screenplay document.
type Engine struct {
	doc   *domain.Document
	newID func() string
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDFunc overrides id generation (tests).
func WithIDFunc(f func() string) Option { return func(e *Engine) { e.newID = f } }

// WithClock overrides the time source (tests).
func WithClock(f func() time.Time) Option { return func(e *Engine) { e.now = f } }

// New wraps doc. Missing language codes default to pl/en.
func New(doc *domain.Document, opts ...Option) *Engine {
	if doc.PrimaryLang == "" {
		doc.PrimaryLang = "pl"
	}
	if doc.SecondaryLang == "" || doc.SecondaryLang == doc.PrimaryLang {
		if doc.PrimaryLang == "en" {
			doc.SecondaryLang = "pl"
		} else {
			doc.SecondaryLang = "en"
		}
	}
	if doc.Slots == nil {
		doc.Slots = []domain.Slot{}
	}
	e := &Engine{doc: doc, newID: uuid.NewString, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewDocument returns an empty document with the given languages and primary title.
func NewDocument(primary, secondary domain.Lang, title string) *domain.Document {
	return &domain.Document{PrimaryLang: primary, SecondaryLang: secondary, PrimaryTitle: title, Slots: []domain.Slot{}}
}

// Document exposes the underlying document. Callers must not mutate it directly.
func (e *Engine) Document() *domain.Document { return e.doc }

// Revision returns the mutation counter of the document.
func (e *Engine) Revision() int64 { return e.doc.Revision }

// Len returns the number of slots.
func (e *Engine) Len() int { return len(e.doc.Slots) }

// Elements returns the element sequence of lang. An uninitialized secondary language projects as
// aligned empty elements; the document itself is left unchanged until content is written to it.
func (e *Engine) Elements(lang domain.Lang) []domain.Element {
	if e.isSecondary(lang) && !e.doc.HasSecondary {
		view := *e.doc
		view.HasSecondary = true
		return view.Elements(lang)
	}
	return e.doc.Elements(lang)
}

// SetTitle sets the title of lang.
func (e *Engine) SetTitle(lang domain.Lang, title string) {
	if e.isSecondary(lang) {
		e.ensureSecondary()
		e.doc.SecondaryTitle = title
	} else {
		e.doc.PrimaryTitle = title
	}
	e.touch()
}

// AddElement inserts an empty element of type t after afterID (or at the end when afterID is
// empty) in both languages. It returns the language-tagged id of the new element in the session's
// language and moves edit focus to it. A stale afterID is a no-op returning "".
func (e *Engine) AddElement(sess *Session, t domain.ElementType, afterID string) string {
	if !t.Valid() {
		t = domain.General
	}
	lang := e.sessionLang(sess)
	at := len(e.doc.Slots)
	if afterID != "" {
		idx, _, ok := e.resolve(afterID)
		if !ok {
			return ""
		}
		at = idx + 1
	}
	slot := domain.Slot{ID: e.newID(), Type: t}
	e.doc.Slots = append(e.doc.Slots, domain.Slot{})
	copy(e.doc.Slots[at+1:], e.doc.Slots[at:])
	e.doc.Slots[at] = slot
	if e.isSecondary(lang) {
		e.ensureSecondary()
	}
	id := domain.ElementID(lang, slot.ID)
	if sess != nil {
		sess.Editing = id
		sess.setBaseline(id, "")
	}
	e.touch()
	return id
}

// UpdateContent sets the content addressed by id. When the text differs from the session's edit
// baseline (or from the previous content when no baseline is tracked) the slot is flagged as
// edited in that language and its review state is cleared.
func (e *Engine) UpdateContent(sess *Session, id, text string) bool {
	idx, secondary, ok := e.resolve(id)
	if !ok {
		return false
	}
	if secondary {
		e.ensureSecondary()
	}
	s := &e.doc.Slots[idx]
	p := payload(s, secondary)
	before := p.Content
	if b, tracked := sess.baseline(id); tracked {
		before = b
	}
	p.Content = text
	if text != before {
		flagEdited(s, secondary)
	}
	e.touch()
	return true
}

// DeleteElement removes the slot addressed by id from both languages. When the session carries a
// confirmation hook it must approve the deletion. Edit focus and baselines of the slot are dropped.
func (e *Engine) DeleteElement(sess *Session, id string) bool {
	idx, _, ok := e.resolve(id)
	if !ok {
		return false
	}
	if sess != nil && sess.Confirm != nil && !sess.Confirm("Delete this element in both languages?") {
		return false
	}
	base := e.doc.Slots[idx].ID
	e.doc.Slots = append(e.doc.Slots[:idx], e.doc.Slots[idx+1:]...)
	if sess != nil {
		sess.forget(e.doc, base)
	}
	e.touch()
	return true
}

// ChangeType retypes the slot addressed by id. Content and edit flags stay untouched.
func (e *Engine) ChangeType(id string, t domain.ElementType) bool {
	if !t.Valid() {
		return false
	}
	idx, _, ok := e.resolve(id)
	if !ok {
		return false
	}
	e.doc.Slots[idx].Type = t
	e.touch()
	return true
}

// MarkReviewed acknowledges cross-language edits on the slot addressed by id and resets the
// session's edit baselines for both languages to the current content.
func (e *Engine) MarkReviewed(sess *Session, id string) bool {
	idx, _, ok := e.resolve(id)
	if !ok {
		return false
	}
	s := &e.doc.Slots[idx]
	s.Reviewed = true
	s.EditedInPrimary = false
	s.EditedInSecondary = false
	if sess != nil {
		if sess.tracks(domain.ElementID(e.doc.PrimaryLang, s.ID)) {
			sess.setBaseline(domain.ElementID(e.doc.PrimaryLang, s.ID), s.Primary.Content)
		}
		if sess.tracks(domain.ElementID(e.doc.SecondaryLang, s.ID)) {
			sess.setBaseline(domain.ElementID(e.doc.SecondaryLang, s.ID), s.Secondary.Content)
		}
	}
	e.touch()
	return true
}

// BeginEdit snapshots the current content of id as the session baseline and focuses it.
func (e *Engine) BeginEdit(sess *Session, id string) bool {
	if sess == nil {
		return false
	}
	idx, secondary, ok := e.resolve(id)
	if !ok {
		return false
	}
	sess.Editing = id
	sess.setBaseline(id, payload(&e.doc.Slots[idx], secondary).Content)
	return true
}

// EndEdit compares the content of id with its baseline and flags the slot when the net edit is
// non-empty. It reports whether the content changed during the session.
func (e *Engine) EndEdit(sess *Session, id string) bool {
	if sess == nil {
		return false
	}
	if sess.Editing == id {
		sess.Editing = ""
	}
	idx, secondary, ok := e.resolve(id)
	if !ok {
		sess.drop(id)
		return false
	}
	base, tracked := sess.baseline(id)
	sess.drop(id)
	if !tracked {
		return false
	}
	s := &e.doc.Slots[idx]
	if payload(s, secondary).Content == base {
		return false
	}
	flagEdited(s, secondary)
	e.touch()
	return true
}

// IngestEnhancement replaces the content of id with text, stores the enhancement thread and
// flags the slot when the text differs from the pre-enhancement content.
func (e *Engine) IngestEnhancement(sess *Session, id, text string, thread *domain.EnhancementThread) bool {
	idx, secondary, ok := e.resolve(id)
	if !ok {
		return false
	}
	if secondary {
		e.ensureSecondary()
	}
	s := &e.doc.Slots[idx]
	p := payload(s, secondary)
	before := p.Content
	p.Content = text
	p.EnhancementThread = thread.Clone()
	if text != before {
		flagEdited(s, secondary)
	}
	if sess != nil && sess.tracks(id) {
		// the enhancement is a fresh starting point for the running edit session
		sess.setBaseline(id, text)
	}
	e.touch()
	return true
}

// ReplaceAll swaps the whole document body for blocks written in lang. The other language gets
// aligned slots of the same types with empty content. Stable versions are kept.
func (e *Engine) ReplaceAll(sess *Session, lang domain.Lang, blocks []Block) {
	secondary := e.isSecondary(lang)
	slots := make([]domain.Slot, 0, len(blocks))
	for _, b := range blocks {
		t := b.Type
		if !t.Valid() {
			t = domain.General
		}
		s := domain.Slot{ID: e.newID(), Type: t}
		payload(&s, secondary).Content = b.Content
		slots = append(slots, s)
	}
	e.doc.Slots = slots
	if secondary {
		e.doc.HasSecondary = true
	}
	if sess != nil {
		sess.reset()
	}
	e.touch()
}

// Index returns the position of id, or -1.
func (e *Engine) Index(id string) int {
	idx, _, ok := e.resolve(id)
	if !ok {
		return -1
	}
	return idx
}

// Slot returns a copy of the slot addressed by id.
func (e *Engine) Slot(id string) (domain.Slot, bool) {
	idx, _, ok := e.resolve(id)
	if !ok {
		return domain.Slot{}, false
	}
	return e.doc.Slots[idx].Clone(), true
}

// resolve maps a language-tagged (or bare) id to its slot index and reports whether it
// addresses the secondary payload.
func (e *Engine) resolve(id string) (int, bool, bool) {
	if id == "" {
		return -1, false, false
	}
	lang, base, tagged := domain.SplitElementID(id)
	secondary := false
	if tagged {
		switch lang {
		case e.doc.PrimaryLang:
		case e.doc.SecondaryLang:
			secondary = true
		default:
			// not a known language tag, the dash belongs to the id
			base = id
		}
	}
	for i := range e.doc.Slots {
		if e.doc.Slots[i].ID == base {
			return i, secondary, true
		}
	}
	return -1, false, false
}

func (e *Engine) isSecondary(lang domain.Lang) bool {
	return lang == e.doc.SecondaryLang && lang != e.doc.PrimaryLang
}

func (e *Engine) sessionLang(sess *Session) domain.Lang {
	if sess == nil || sess.Lang == "" {
		return e.doc.PrimaryLang
	}
	return sess.Lang
}

func (e *Engine) ensureSecondary() {
	if !e.doc.HasSecondary {
		e.doc.HasSecondary = true
		e.touch()
	}
}

func (e *Engine) touch() { e.doc.Revision++ }

func payload(s *domain.Slot, secondary bool) *domain.Payload {
	if secondary {
		return &s.Secondary
	}
	return &s.Primary
}

func flagEdited(s *domain.Slot, secondary bool) {
	if secondary {
		s.EditedInSecondary = true
	} else {
		s.EditedInPrimary = true
	}
	s.Reviewed = false
}
