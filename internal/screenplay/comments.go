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
)

// AddComment attaches a comment to the slot behind id, so it shows in both languages.
// It returns the comment id, or "" when id is stale or text is blank.
func (e *Engine) AddComment(id, author, text string, images []string) string {
	idx, _, ok := e.resolve(id)
	if !ok || strings.TrimSpace(text) == "" {
		return ""
	}
	c := domain.Comment{
		ID:        e.newID(),
		CreatedAt: domain.TS(e.now()),
		Author:    author,
		Text:      text,
	}
	if len(images) > 0 {
		c.Images = append([]string(nil), images...)
	}
	s := &e.doc.Slots[idx]
	s.Comments = append(s.Comments, c)
	e.touch()
	return c.ID
}

// DeleteComment removes commentID from the slot behind id.
func (e *Engine) DeleteComment(id, commentID string) bool {
	idx, _, ok := e.resolve(id)
	if !ok {
		return false
	}
	s := &e.doc.Slots[idx]
	for i, c := range s.Comments {
		if c.ID == commentID {
			s.Comments = append(s.Comments[:i], s.Comments[i+1:]...)
			e.touch()
			return true
		}
	}
	return false
}
