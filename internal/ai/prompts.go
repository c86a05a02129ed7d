/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ai

import (
	"strings"
	"text/template"

	"concepto/internal/domain"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

var langNames = map[domain.Lang]string{
	"pl": "Polish",
	"en": "English",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
}

func langName(l domain.Lang) string {
	if n, ok := langNames[l]; ok {
		return n
	}
	return string(l)
}

const translateSystem = `You are a professional screenplay translator for animated series.
Keep every block marker exactly as given ([TYPE] on its own line, content, [/TYPE] on its own line).
Do not merge, split, reorder, add or drop blocks. Keep character names in capitals. Return only the marked-up text.`

const enhanceSystem = `You are a script doctor for animated series. Rewrite the given screenplay fragment
following the instruction. Keep the language of the fragment. Return only the revised text, without quotes or commentary.`

const shotsSystem = `You are an assistant director preparing an audio/visual script (AV script) for an animated episode.
Split the given script segment into shots. Answer with one shot per line in the form:
shotNumber | uniqueName | audio | visual | time
shotNumber is scene.shot (e.g. 2.3), uniqueName is SC{scene:02}T{take:02} (e.g. SC02T03),
audio is dialogue or voice-over (may be empty), visual describes the picture, time is MM:SS:FF at 24 fps.
No header, no commentary.`

const screenplaySystem = `You are a screenwriter for animated series. Write a screenplay as blocks of
[SCENE-SETTING], [CHARACTER], [DIALOGUE], [PARENTHETICAL], [ACTION] or [GENERAL], each block closed with [/TYPE].
Return only the blocks.`

var (
	translateTmpl = template.Must(template.New("translate").Parse(
		`Translate the following screenplay from {{.From}} to {{.To}}.

{{.Markup}}`))

	enhanceTmpl = template.Must(template.New("enhance").Parse(
		`Instruction: {{.Instruction}}

Fragment ({{.Type}}):
{{.Content}}`))

	shotsTmpl = template.Must(template.New("shots").Parse(
		`Write the AV script in {{.Lang}}.
This segment starts in scene {{.StartScene}}.{{if .LastShot}} The previous segment ended with shot {{.LastShot}}; continue the numbering after it.{{else}} Start numbering at {{.StartScene}}.1.{{end}}

{{.Text}}`))

	screenplayTmpl = template.Must(template.New("screenplay").Parse(
		`Write the screenplay in {{.Lang}}{{if .Title}} for the episode "{{.Title}}"{{end}}.

Brief:
{{.Brief}}`))
)

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
