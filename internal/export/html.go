/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"concepto/internal/domain"
)

var htmlTemplate = template.Must(template.New("export").Funcs(template.FuncMap{
	"css":     func(t domain.ElementType) string { return strings.ReplaceAll(string(t), "-", "_") },
	"upper":   strings.ToUpper,
	"seconds": func(f float64) string { return fmt.Sprintf("%.1f s", f) },
	"lines":   func(s string) []string { return strings.Split(s, "\n") },
}).Parse(`<!DOCTYPE html>
<html lang="{{.S.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.S.Title}}</title>
<style>
@page { size: A4; margin: 20mm 18mm; }
body { font-family: "Courier New", Courier, monospace; font-size: 12pt; line-height: 1.3; }
h1 { text-align: center; font-size: 14pt; text-transform: uppercase; }
.meta { text-align: center; color: #555; margin-bottom: 2em; }
.el { margin: 0 0 1em 0; white-space: pre-wrap; }
.scene_setting { font-weight: bold; text-transform: uppercase; margin-top: 2em; }
.character { margin: 1em 0 0 38%; text-transform: uppercase; }
.parenthetical { margin: 0 0 0 31%; }
.dialogue { margin: 0 20% 1em 25%; }
.general { font-style: italic; }
.group { break-inside: avoid; margin-top: 1.5em; }
.group h2 { font-size: 12pt; border-bottom: 1px solid #000; }
.frames { display: grid; grid-template-columns: repeat(2, 1fr); gap: 8mm; }
.frame { border: 1px solid #000; padding: 3mm; break-inside: avoid; font-size: 9pt; }
.frame .img { aspect-ratio: 16 / 9; border: 1px solid #999; display: flex; align-items: center; justify-content: center; overflow: hidden; }
.frame img { max-width: 100%; max-height: 100%; }
.frame .head { font-weight: bold; display: flex; justify-content: space-between; margin-top: 2mm; }
</style>
</head>
<body>
<h1>{{.S.Title}}</h1>
<div class="meta">{{if .S.Episode}}Episode {{.S.Episode}} · {{end}}{{upper (printf "%s" .S.Lang)}}{{if eq (printf "%s" .S.View) "vo"}} · VO · {{.S.Words}} words{{end}}{{if .S.Groups}} · {{seconds .S.Runtime}}{{end}}</div>
{{range .S.Lines}}<div class="el {{css .Type}}">{{.Text}}</div>
{{end}}{{range .S.Groups}}<section class="group">
<h2>{{.Title}}</h2>
<div class="frames">
{{range .Frames}}<div class="frame">
<div class="img">{{with $.URL .Image}}<img src="{{.}}" alt="">{{end}}</div>
<div class="head"><span>{{.Number}} {{.Name}}</span><span>{{.Duration}}</span></div>
<div><b>A:</b> {{range $i, $l := lines .Audio}}{{if $i}}<br>{{end}}{{$l}}{{end}}</div>
<div><b>V:</b> {{range $i, $l := lines .Visual}}{{if $i}}<br>{{end}}{{$l}}{{end}}</div>
</div>
{{end}}</div>
</section>
{{end}}</body>
</html>
`))

type htmlData struct {
	S   Script
	opt Options
}

// URL resolves a frame image for the template; empty references stay empty.
func (d htmlData) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return d.opt.mediaURL(ref)
}

// RenderHTML writes a print-ready HTML page.
func RenderHTML(w io.Writer, s Script, opt Options) error {
	if err := htmlTemplate.Execute(w, htmlData{S: s, opt: opt}); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
