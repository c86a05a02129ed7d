/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package avscript

import (
	"strings"

	"concepto/internal/domain"
)

// SceneCoverage compares one screenplay scene with the shots generated for it.
type SceneCoverage struct {
	Scene         int     `json:"scene"`
	Heading       string  `json:"heading,omitempty"`
	Elements      int     `json:"elements"`
	DialogueWords int     `json:"dialogueWords"`
	Shots         int     `json:"shots"`
	AudioWords    int     `json:"audioWords"`
	Runtime       float64 `json:"runtime"`
	Covered       bool    `json:"covered"`
}

// Coverage lists every scene of elements with the shot count and runtime the AV script assigns
// to it. Scenes are numbered like Split numbers them. Shots that point past the last scene get
// their own rows so nothing is hidden.
func Coverage(elements []domain.Element, av domain.AVScript) []SceneCoverage {
	var out []SceneCoverage
	idx := map[int]int{}
	cur := -1
	seenHeading := false
	for _, el := range elements {
		heading := el.Type == domain.SceneSetting
		if cur < 0 || (heading && seenHeading) {
			out = append(out, SceneCoverage{Scene: len(out) + 1})
			cur = len(out) - 1
			idx[out[cur].Scene] = cur
		}
		if heading {
			seenHeading = true
			out[cur].Heading = strings.TrimSpace(el.Content)
		}
		out[cur].Elements++
		if el.Type == domain.Dialogue {
			out[cur].DialogueWords += len(strings.Fields(el.Content))
		}
	}
	for _, sh := range av.Shots() {
		i, ok := idx[sh.Scene]
		if !ok {
			out = append(out, SceneCoverage{Scene: sh.Scene})
			i = len(out) - 1
			idx[sh.Scene] = i
		}
		out[i].Shots++
		out[i].AudioWords += sh.WordCount
		out[i].Runtime += sh.Runtime
	}
	for i := range out {
		out[i].Covered = out[i].Shots > 0
	}
	return out
}
