/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package avscript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"concepto/internal/domain"

	"github.com/google/uuid"
)

// SegmentRows pairs a segment with the rows generated for it.
type SegmentRows struct {
	Segment Segment
	Rows    []Row
}

var reUniqueName = regexp.MustCompile(`^SC(\d+)T(\d+)$`)

// Renumber repairs rows from all segments, in script order, into a consistent shot list:
//   - rows without audio and visual are dropped,
//   - a segment whose numbering restarts below its start scene is shifted up to it,
//   - (scene, shot) pairs strictly increase across the whole output,
//   - unique names follow SC{scene:02d}T{take:02d} and never repeat (take is bumped on collision),
//   - durations are normalized and word count and runtime are derived.
func Renumber(parts []SegmentRows) []domain.AVShot {
	var out []domain.AVShot
	used := map[string]bool{}
	lastScene, lastShot := 0, 0
	for _, part := range parts {
		offset := 0
		if first := firstNumberedScene(part.Rows); first > 0 && part.Segment.StartScene > first {
			offset = part.Segment.StartScene - first
		}
		for _, r := range part.Rows {
			audio, visual := strings.TrimSpace(r.Audio), strings.TrimSpace(r.Visual)
			if audio == "" && visual == "" {
				continue
			}
			scene := r.Scene
			if scene <= 0 {
				scene = max(lastScene, part.Segment.StartScene, 1)
			} else {
				scene += offset
			}
			shot := r.Shot
			if shot <= 0 {
				shot = 1
			}
			if scene < lastScene {
				scene = lastScene
			}
			if scene == lastScene && shot <= lastShot {
				shot = lastShot + 1
			}
			lastScene, lastShot = scene, shot

			name := uniqueName(r.UniqueName, scene, shot, used)
			used[name] = true
			dur := NormalizeDuration(r.Duration)
			out = append(out, domain.AVShot{
				ID:         uuid.NewString(),
				Scene:      scene,
				Shot:       shot,
				ShotNumber: domain.FormatShotNumber(scene, shot),
				UniqueName: name,
				Audio:      audio,
				Visual:     visual,
				Duration:   dur,
				WordCount:  len(strings.Fields(audio)),
				Runtime:    DurationSeconds(dur),
			})
		}
	}
	return out
}

func firstNumberedScene(rows []Row) int {
	for _, r := range rows {
		if r.Scene > 0 && (strings.TrimSpace(r.Audio) != "" || strings.TrimSpace(r.Visual) != "") {
			return r.Scene
		}
	}
	return 0
}

// uniqueName keeps the service's name when it is well formed and names the right scene,
// otherwise derives one from the shot number; collisions bump the take.
func uniqueName(proposed string, scene, shot int, used map[string]bool) string {
	take := shot
	if m := reUniqueName.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(proposed))); m != nil {
		s, _ := strconv.Atoi(m[1])
		t, _ := strconv.Atoi(m[2])
		if s == scene && t > 0 {
			take = t
		}
	}
	name := FormatUniqueName(scene, take)
	for used[name] {
		take++
		name = FormatUniqueName(scene, take)
	}
	return name
}

// FormatUniqueName renders SC{scene:02d}T{take:02d}.
func FormatUniqueName(scene, take int) string {
	return fmt.Sprintf("SC%02dT%02d", scene, take)
}

// GroupByScene collects shots into AV segments, one per scene, titled with the scene heading
// when known.
func GroupByScene(shots []domain.AVShot, titles map[int]string) []domain.AVSegment {
	var out []domain.AVSegment
	for _, sh := range shots {
		if n := len(out); n == 0 || out[n-1].SegmentNumber != sh.Scene {
			title := fmt.Sprintf("SC%02d", sh.Scene)
			if t := strings.TrimSpace(titles[sh.Scene]); t != "" {
				title += " " + t
			}
			out = append(out, domain.AVSegment{ID: uuid.NewString(), SegmentNumber: sh.Scene, Title: title})
		}
		out[len(out)-1].Shots = append(out[len(out)-1].Shots, sh)
	}
	return out
}
