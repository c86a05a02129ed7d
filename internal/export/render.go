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

	"golang.org/x/image/font"
)

// Options tune rendering.
type Options struct {
	// MediaURL maps a stored image reference to the URL used in HTML. Defaults to the reference.
	MediaURL func(ref string) string
	// Media loads a stored image as PNG bytes for PDF and PNG output. Frames whose image cannot be
	// loaded are drawn as empty boxes.
	Media func(ref string) ([]byte, error)
	// Author is written into the PDF metadata.
	Author string
	// Face draws storyboard PNG captions. Nil uses the built-in ASCII face.
	Face font.Face
}

// Render writes s in format f to w. PNG output is only available for the storyboard view.
func Render(w io.Writer, s Script, f Format, opt Options) error {
	switch f {
	case FormatHTML:
		return RenderHTML(w, s, opt)
	case FormatPDF:
		return RenderPDF(w, s, opt)
	case FormatPNG:
		if s.View != ViewStoryboard {
			return fmt.Errorf("%w: png needs the storyboard view", ErrUnsupported)
		}
		return RenderStoryboardPNG(w, s, opt)
	}
	return fmt.Errorf("%w: format %q", ErrUnsupported, f)
}

// Bytes renders into memory.
func Bytes(s Script, f Format, opt Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, s, f, opt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o Options) mediaURL(ref string) string {
	if o.MediaURL != nil {
		return o.MediaURL(ref)
	}
	return ref
}

func (o Options) media(ref string) []byte {
	if ref == "" || o.Media == nil {
		return nil
	}
	b, err := o.Media(ref)
	if err != nil {
		return nil
	}
	return b
}
