/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package screenplay

import (
	"bufio"
	"regexp"
	"strings"

	"concepto/internal/domain"
)

// Block is one typed piece of text, as exchanged with translation services and importers.
type Block struct {
	Type    domain.ElementType `json:"type"`
	Content string             `json:"content"`
}

// IngestReport describes how translated blocks were aligned to the document.
type IngestReport struct {
	Blocks    int `json:"blocks"`
	Matched   int `json:"matched"`
	Fallbacks int `json:"fallbacks"`
	// Missing lists positions left empty because no unused block of the right type remained.
	Missing []int `json:"missing,omitempty"`
	// Unused counts parsed blocks that were not assigned to any element.
	Unused int `json:"unused"`
}

var (
	reOpen  = regexp.MustCompile(`^\[([A-Z-]+)\]$`)
	reClose = regexp.MustCompile(`^\[/([A-Z-]+)\]$`)
)

// Markup serializes the elements of lang as [TYPE]\ncontent\n[/TYPE] blocks.
func (e *Engine) Markup(lang domain.Lang) string {
	return MarkupOf(e.Elements(lang))
}

// MarkupOf serializes elements as translation markup.
func MarkupOf(elems []domain.Element) string {
	var b strings.Builder
	for i, el := range elems {
		if i > 0 {
			b.WriteByte('\n')
		}
		m := el.Type.Marker()
		b.WriteString("[" + m + "]\n")
		b.WriteString(el.Content)
		b.WriteString("\n[/" + m + "]")
	}
	return b.String()
}

// ParseMarkup scans line-delimited [TYPE] ... [/TYPE] blocks. A bare [TYPE] header also works:
// its block runs until the next marker. Text outside any block and code fences are ignored.
// It never fails; malformed input simply yields fewer blocks.
func ParseMarkup(text string) []Block {
	var out []Block
	var cur *Block
	var lines []string
	flush := func() {
		if cur != nil {
			cur.Content = strings.TrimSpace(strings.Join(lines, "\n"))
			out = append(out, *cur)
		}
		cur = nil
		lines = lines[:0]
	}
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trim := strings.TrimSpace(line)
		if strings.HasPrefix(trim, "```") {
			continue
		}
		if m := reOpen.FindStringSubmatch(trim); m != nil {
			flush()
			cur = &Block{Type: domain.TypeFromMarker(m[1])}
			continue
		}
		if reClose.MatchString(trim) {
			flush()
			continue
		}
		if cur != nil {
			lines = append(lines, line)
		}
	}
	flush()
	return out
}

// IngestTranslation parses translated markup and writes it into the target language, walking the
// slots in order. Slot i takes block i when the types agree; otherwise the first unused block of
// the same type. Every block is used at most once and slots without a match are left empty and
// reported. Edit and review flags are not touched.
func (e *Engine) IngestTranslation(sess *Session, target domain.Lang, text string) IngestReport {
	blocks := ParseMarkup(text)
	rep := IngestReport{Blocks: len(blocks)}
	secondary := e.isSecondary(target)
	if secondary {
		e.ensureSecondary()
	}
	used := make([]bool, len(blocks))
	for i := range e.doc.Slots {
		s := &e.doc.Slots[i]
		p := payload(s, secondary)
		j := -1
		if i < len(blocks) && !used[i] && blocks[i].Type == s.Type {
			j = i
			rep.Matched++
		} else {
			for k := range blocks {
				if !used[k] && blocks[k].Type == s.Type {
					j = k
					rep.Fallbacks++
					break
				}
			}
		}
		if j < 0 {
			p.Content = ""
			rep.Missing = append(rep.Missing, i)
			continue
		}
		used[j] = true
		p.Content = blocks[j].Content
		if sess != nil {
			id := domain.ElementID(target, s.ID)
			if sess.tracks(id) {
				sess.setBaseline(id, p.Content)
			}
		}
	}
	for _, u := range used {
		if !u {
			rep.Unused++
		}
	}
	e.touch()
	return rep
}
