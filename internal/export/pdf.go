/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"concepto/internal/domain"

	"github.com/jung-kurt/gofpdf"
)

// Page geometry in millimetres (A4 portrait).
const (
	pdfMarginX  = 20.0
	pdfMarginY  = 18.0
	pdfLineH    = 5.0
	frameCols   = 2
	frameRows   = 3
	frameGap    = 6.0
	frameImageR = 9.0 / 16.0
)

// screenplay indents relative to the left margin, as fractions of the text width
var pdfIndent = map[domain.ElementType][2]float64{
	domain.Character:     {0.38, 0.30},
	domain.Parenthetical: {0.31, 0.35},
	domain.Dialogue:      {0.25, 0.55},
}

// RenderPDF writes s as an A4 PDF. Text uses the built-in Courier and Helvetica fonts so nothing
// is embedded; characters outside cp1252 are approximated by the translator.
func RenderPDF(w io.Writer, s Script, opt Options) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMarginX, pdfMarginY, pdfMarginX)
	pdf.SetAutoPageBreak(true, pdfMarginY)
	pdf.SetTitle(s.Title, true)
	author := opt.Author
	if author == "" {
		author = "Concepto"
	}
	pdf.SetAuthor(author, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s  %d/{nb}", tr(s.Title), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Courier", "B", 14)
	pdf.CellFormat(0, 8, tr(strings.ToUpper(s.Title)), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, tr(pdfMeta(s)), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	if s.View == ViewStoryboard {
		pdfFrames(pdf, s, opt, tr)
	} else {
		pdfLines(pdf, s, tr)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfMeta(s Script) string {
	var parts []string
	if s.Episode > 0 {
		parts = append(parts, fmt.Sprintf("Episode %d", s.Episode))
	}
	parts = append(parts, strings.ToUpper(string(s.Lang)))
	switch s.View {
	case ViewVO:
		parts = append(parts, fmt.Sprintf("VO, %d words", s.Words))
	case ViewStoryboard:
		parts = append(parts, fmt.Sprintf("%.1f s", s.Runtime))
	}
	return strings.Join(parts, " / ")
}

func pdfLines(pdf *gofpdf.Fpdf, s Script, tr func(string) string) {
	pageW, _ := pdf.GetPageSize()
	textW := pageW - 2*pdfMarginX
	for _, l := range s.Lines {
		text := tr(l.Text)
		switch l.Type {
		case domain.SceneSetting:
			pdf.Ln(pdfLineH)
			pdf.SetFont("Courier", "B", 11)
			pdf.MultiCell(textW, pdfLineH, strings.ToUpper(text), "", "L", false)
			pdf.Ln(2)
		case domain.Character, domain.Parenthetical, domain.Dialogue:
			in := pdfIndent[l.Type]
			pdf.SetFont("Courier", "", 11)
			if l.Type == domain.Character {
				text = strings.ToUpper(text)
			}
			pdf.SetX(pdfMarginX + in[0]*textW)
			pdf.MultiCell(in[1]*textW, pdfLineH, text, "", "L", false)
			if l.Type == domain.Dialogue {
				pdf.Ln(2)
			}
		case domain.General:
			pdf.SetFont("Courier", "I", 11)
			pdf.MultiCell(textW, pdfLineH, text, "", "L", false)
			pdf.Ln(2)
		default:
			pdf.SetFont("Courier", "", 11)
			pdf.MultiCell(textW, pdfLineH, text, "", "L", false)
			pdf.Ln(2)
		}
	}
}

func pdfFrames(pdf *gofpdf.Fpdf, s Script, opt Options, tr func(string) string) {
	pageW, pageH := pdf.GetPageSize()
	cellW := (pageW - 2*pdfMarginX - float64(frameCols-1)*frameGap) / frameCols
	imgH := cellW * frameImageR
	cellH := (pageH - 2*pdfMarginY - 20 - float64(frameRows-1)*frameGap) / frameRows
	textH := cellH - imgH - 2
	n := 0
	for _, g := range s.Groups {
		if pdf.GetY()+8+cellH > pageH-pdfMarginY {
			pdf.AddPage()
		}
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, tr(g.Title), "B", 1, "L", false, 0, "")
		pdf.Ln(2)
		col := 0
		rowY := pdf.GetY()
		for _, f := range g.Frames {
			if col == 0 && rowY+cellH > pageH-pdfMarginY {
				pdf.AddPage()
				rowY = pdf.GetY()
			}
			x := pdfMarginX + float64(col)*(cellW+frameGap)
			pdf.SetDrawColor(0, 0, 0)
			pdf.SetLineWidth(0.2)
			pdf.Rect(x, rowY, cellW, imgH, "D")
			if b := opt.media(f.Image); len(b) > 0 {
				name := fmt.Sprintf("frame-%d", n)
				info := pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(b))
				if info != nil && pdf.Ok() {
					iw, ih := fitBox(info.Width(), info.Height(), cellW, imgH)
					pdf.ImageOptions(name, x+(cellW-iw)/2, rowY+(imgH-ih)/2, iw, ih, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
				} else {
					pdf.ClearError()
				}
			}
			n++
			pdf.SetXY(x, rowY+imgH+1)
			pdf.SetFont("Helvetica", "B", 8)
			pdf.CellFormat(cellW*0.7, 4, tr(strings.TrimSpace(f.Number+" "+f.Name)), "", 0, "L", false, 0, "")
			pdf.CellFormat(cellW*0.3, 4, f.Duration, "", 1, "R", false, 0, "")
			pdf.SetFont("Helvetica", "", 7.5)
			body := clipLines(pdf, "A: "+tr(f.Audio)+"\nV: "+tr(f.Visual), cellW, int((textH-4)/3.4))
			pdf.SetX(x)
			pdf.MultiCell(cellW, 3.4, body, "", "L", false)
			col++
			if col == frameCols {
				col = 0
				rowY += cellH + frameGap
			}
		}
		if col != 0 {
			rowY += cellH + frameGap
		}
		pdf.SetXY(pdfMarginX, rowY)
	}
	if n == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 8, "No shots", "", 1, "C", false, 0, "")
	}
}

// clipLines keeps at most maxLines wrapped lines of text so a frame never spills into the next.
func clipLines(pdf *gofpdf.Fpdf, text string, width float64, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		for _, l := range pdf.SplitLines([]byte(para), width) {
			if len(out) == maxLines {
				out[maxLines-1] = strings.TrimRight(out[maxLines-1], " ") + "..."
				return strings.Join(out, "\n")
			}
			out = append(out, string(l))
		}
	}
	return strings.Join(out, "\n")
}

// fitBox scales w x h to fit inside maxW x maxH keeping the aspect ratio.
func fitBox(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	scale := min(maxW/w, maxH/h)
	return w * scale, h * scale
}
