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
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"concepto/internal/textlayout"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Contact sheet geometry in pixels.
const (
	sheetCols    = 3
	sheetCellW   = 320
	sheetImageH  = 180
	sheetCaption = 5 // caption lines below each image: heading, two audio, two visual
	sheetPad     = 12
	sheetLineH   = 15
	sheetTitleH  = 28
)

var (
	sheetBG     = color.RGBA{255, 255, 255, 255}
	sheetBorder = color.RGBA{0, 0, 0, 255}
	sheetMuted  = color.RGBA{235, 235, 235, 255}
)

// RenderStoryboardPNG draws every frame of s on one contact sheet, scene groups stacked
// vertically with sheetCols frames per row.
func RenderStoryboardPNG(w io.Writer, s Script, opt Options) error {
	rows := 0
	for _, g := range s.Groups {
		rows += (len(g.Frames) + sheetCols - 1) / sheetCols
	}
	face := opt.Face
	if face == nil {
		face = textlayout.Default()
	}
	lineH := max(sheetLineH, textlayout.LineHeight(face)+2)
	cellH := sheetImageH + sheetCaption*lineH + sheetPad
	width := sheetPad + sheetCols*(sheetCellW+sheetPad)
	height := sheetTitleH + sheetPad + len(s.Groups)*sheetTitleH + rows*(cellH+sheetPad)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: sheetBG}, image.Point{}, draw.Src)

	text(img, face, sheetPad, 20, s.Title, sheetBorder)
	y := sheetTitleH + sheetPad
	for _, g := range s.Groups {
		text(img, face, sheetPad, y+18, g.Title, sheetBorder)
		y += sheetTitleH
		for i, f := range g.Frames {
			col := i % sheetCols
			if i > 0 && col == 0 {
				y += cellH + sheetPad
			}
			x := sheetPad + col*(sheetCellW+sheetPad)
			box := image.Rect(x, y, x+sheetCellW, y+sheetImageH)
			draw.Draw(img, box, &image.Uniform{C: sheetMuted}, image.Point{}, draw.Src)
			if b := opt.media(f.Image); len(b) > 0 {
				if src, _, err := image.Decode(bytes.NewReader(b)); err == nil {
					draw.ApproxBiLinear.Scale(img, fitRect(src.Bounds(), box), src, src.Bounds(), draw.Over, nil)
				}
			}
			strokeRect(img, box, sheetBorder)
			var captions []string
			captions = append(captions, textlayout.Fit(face, strings.TrimSpace(f.Number+" "+f.Name+"  "+f.Duration), sheetCellW-4, 1)...)
			captions = append(captions, textlayout.Fit(face, "A: "+oneLine(f.Audio), sheetCellW-4, 2)...)
			captions = append(captions, textlayout.Fit(face, "V: "+oneLine(f.Visual), sheetCellW-4, 2)...)
			cy := y + sheetImageH + lineH
			for _, c := range captions[:min(len(captions), sheetCaption)] {
				text(img, face, x+2, cy, c, sheetBorder)
				cy += lineH
			}
		}
		if len(g.Frames) > 0 {
			y += cellH + sheetPad
		}
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func text(img *image.RGBA, face font.Face, x, y int, s string, c color.Color) {
	d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face, Dot: fixed.P(x, y)}
	d.DrawString(strings.ReplaceAll(s, "\n", " "))
}

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }

// fitRect centers src's aspect ratio inside box.
func fitRect(src, box image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	bw, bh := box.Dx(), box.Dy()
	if sw <= 0 || sh <= 0 {
		return box
	}
	w, h := bw, sh*bw/sw
	if h > bh {
		w, h = sw*bh/sh, bh
	}
	x := box.Min.X + (bw-w)/2
	y := box.Min.Y + (bh-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// strokeRect draws a 1px border just inside r.
func strokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}
