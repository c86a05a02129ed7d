/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package screenplay

import "concepto/internal/domain"

// Session is the editing context of one user on one document: the language being viewed, the
// element in edit focus and the content baselines captured when edits began.
// A nil *Session is accepted by all engine operations.
type Session struct {
	Lang    domain.Lang
	Editing string
	// Confirm, when set, is asked before destructive operations. Returning false cancels them.
	Confirm func(prompt string) bool

	baselines map[string]string
}

// NewSession returns a session viewing lang.
func NewSession(lang domain.Lang) *Session {
	return &Session{Lang: lang, baselines: map[string]string{}}
}

// Baseline returns the tracked baseline of id.
func (s *Session) Baseline(id string) (string, bool) { return s.baseline(id) }

func (s *Session) baseline(id string) (string, bool) {
	if s == nil || s.baselines == nil {
		return "", false
	}
	b, ok := s.baselines[id]
	return b, ok
}

func (s *Session) tracks(id string) bool {
	_, ok := s.baseline(id)
	return ok
}

func (s *Session) setBaseline(id, content string) {
	if s.baselines == nil {
		s.baselines = map[string]string{}
	}
	s.baselines[id] = content
}

func (s *Session) drop(id string) {
	if s.baselines != nil {
		delete(s.baselines, id)
	}
}

// forget removes focus and baselines of both language ids of a deleted slot.
func (s *Session) forget(doc *domain.Document, base string) {
	for _, l := range []domain.Lang{doc.PrimaryLang, doc.SecondaryLang} {
		id := domain.ElementID(l, base)
		s.drop(id)
		if s.Editing == id {
			s.Editing = ""
		}
	}
	if s.Editing == base {
		s.Editing = ""
	}
}

func (s *Session) reset() {
	s.Editing = ""
	s.baselines = map[string]string{}
}
