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
	"unicode"

	"concepto/internal/domain"
)

// ImportError reports a line the plain-text importer could not read.
type ImportError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

var (
	reHash    = regexp.MustCompile(`^(#+)\s*(.*)$`)
	reSlug    = regexp.MustCompile(`^(?i)(INT\.?/EXT\.?|EXT\.?/INT\.?|INT\.|EXT\.|I/E\.?)\s*(.*)$`)
	reSceneKw = regexp.MustCompile(`^(?i)\s*Scene:\s*(.+)$`)
	reCue     = regexp.MustCompile(`^([\p{Lu}0-9_\-\. ']{1,48})\s*:\s*(.*)$`)
	reParen   = regexp.MustCompile(`^\((.*)\)$`)
)

// ImportPlainText reads a screenplay written as plain text.
//
// Supported syntax:
//   - Scene headings: lines starting with "#", "Scene:", INT. or EXT.
//   - Inline dialogue: NAME: text (NAME in capitals) yields a character and a dialogue element.
//   - Character cues: a line in capitals on its own; following lines are dialogue until a blank line.
//   - Parentheticals: (text) inside a dialogue run or on its own line.
//   - Continuation lines indented by 2+ spaces are appended to the previous dialogue or action.
//   - Lines starting with ';' are notes and skipped.
//
// Everything else becomes action.
func ImportPlainText(input string) ([]Block, []ImportError) {
	var out []Block
	var errs []ImportError
	inDialogue := false
	last := -1

	push := func(t domain.ElementType, content string) {
		out = append(out, Block{Type: t, Content: content})
		last = len(out) - 1
	}

	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r\n")

		if strings.HasPrefix(line, "  ") && last >= 0 && (out[last].Type == domain.Dialogue || out[last].Type == domain.Action) {
			if cont := strings.TrimSpace(line); cont != "" {
				out[last].Content += "\n" + cont
				continue
			}
		}

		trim := strings.TrimSpace(line)
		if trim == "" {
			inDialogue = false
			continue
		}
		if strings.HasPrefix(trim, ";") {
			continue
		}

		if m := reHash.FindStringSubmatch(trim); m != nil {
			title := strings.TrimSpace(m[2])
			if title == "" {
				errs = append(errs, ImportError{Line: lineNo, Message: "empty scene heading"})
				continue
			}
			push(domain.SceneSetting, title)
			inDialogue = false
			continue
		}
		if m := reSceneKw.FindStringSubmatch(trim); m != nil {
			push(domain.SceneSetting, strings.TrimSpace(m[1]))
			inDialogue = false
			continue
		}
		if reSlug.MatchString(trim) {
			push(domain.SceneSetting, trim)
			inDialogue = false
			continue
		}

		if reParen.MatchString(trim) {
			push(domain.Parenthetical, trim)
			continue
		}

		if m := reCue.FindStringSubmatch(trim); m != nil && isCue(m[1]) {
			push(domain.Character, strings.TrimSpace(m[1]))
			if text := strings.TrimSpace(m[2]); text != "" {
				push(domain.Dialogue, text)
			}
			inDialogue = true
			continue
		}

		if inDialogue {
			if last >= 0 && out[last].Type == domain.Dialogue {
				out[last].Content += "\n" + trim
			} else {
				push(domain.Dialogue, trim)
			}
			continue
		}

		if isCue(trim) && !strings.HasSuffix(trim, ".") {
			push(domain.Character, trim)
			inDialogue = true
			continue
		}

		push(domain.Action, trim)
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, ImportError{Line: lineNo, Message: err.Error()})
	}
	return out, errs
}

// isCue reports whether s looks like a character name: capitals, at least one letter, short.
func isCue(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len([]rune(s)) > 48 {
		return false
	}
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 0
}
