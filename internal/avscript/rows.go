/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package avscript

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Row is one shot line as returned by the generation service, before repair.
// Scene and Shot are 0 when the shot number could not be read.
type Row struct {
	Scene      int
	Shot       int
	UniqueName string
	Audio      string
	Visual     string
	Duration   string
}

var reShotNumber = regexp.MustCompile(`^(?:SC)?\s*(\d+)\s*[.\-_/]\s*(\d+)$`)

// ParseRows reads newline-delimited "shotNumber | uniqueName | audio | visual | time" rows.
// Markdown table borders, header and separator lines and anything with fewer than four
// columns are skipped.
func ParseRows(text string) []Row {
	var out []Row
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimPrefix(line, "|")
		line = strings.TrimSuffix(line, "|")
		cols := strings.Split(line, "|")
		if len(cols) < 4 {
			continue
		}
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		if isSeparator(cols) || isHeader(cols[0]) {
			continue
		}
		r := Row{UniqueName: cols[1], Audio: cols[2], Visual: cols[3]}
		if len(cols) > 4 {
			r.Duration = cols[4]
		}
		r.Scene, r.Shot = parseShotNumber(cols[0])
		out = append(out, r)
	}
	return out
}

func parseShotNumber(s string) (int, int) {
	m := reShotNumber.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return 0, n
		}
		return 0, 0
	}
	scene, _ := strconv.Atoi(m[1])
	shot, _ := strconv.Atoi(m[2])
	return scene, shot
}

func isSeparator(cols []string) bool {
	for _, c := range cols {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func isHeader(first string) bool {
	f := strings.ToLower(first)
	return f == "shot" || f == "shotnumber" || f == "shot number" || f == "#" || f == "nr"
}
