/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"concepto/internal/domain"
	"concepto/internal/screenplay"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/*.json
var schemaFS embed.FS

// ErrInvalidDocument is returned when imported JSON does not describe a screenplay document.
var ErrInvalidDocument = errors.New("invalid screenplay document")

func validateAgainst(schemaFile string, data []byte) ([]string, error) {
	raw, err := schemaFS.ReadFile("schema/" + schemaFile)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", schemaFile, err)
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(raw), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, err
	}
	var problems []string
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return problems, nil
}

// ValidateManifest checks studio.json bytes against the embedded manifest schema and returns the
// problems found. Unparseable input is reported as a single problem.
func ValidateManifest(data []byte) []string {
	problems, err := validateAgainst("studio.schema.json", data)
	if err != nil {
		return []string{err.Error()}
	}
	return problems
}

// DecodeDocument reads an imported screenplay in either the slot format or the older dual-array
// format (elements / elementsEN) and returns it as a slot document. primary and secondary name
// the languages of a dual-array input.
func DecodeDocument(data []byte, primary, secondary domain.Lang) (domain.Document, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &probe); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	schemaFile := "document.schema.json"
	_, legacy := probe["elements"]
	if _, slots := probe["slots"]; !slots && legacy {
		schemaFile = "legacy.schema.json"
	}
	problems, err := validateAgainst(schemaFile, data)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if len(problems) > 0 {
		return domain.Document{}, fmt.Errorf("%w: %s", ErrInvalidDocument, problems[0])
	}
	if schemaFile == "legacy.schema.json" {
		var ld domain.LegacyDocument
		if err := json.Unmarshal(data, &ld); err != nil {
			return domain.Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return screenplay.FromDualArrays(ld, primary, secondary), nil
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.SecondaryLang == "" {
		doc.SecondaryLang = secondary
	}
	return doc, nil
}
