/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "fmt"

// AVShot is one row of the audio/visual script.
type AVShot struct {
	ID            string  `json:"id"`
	Scene         int     `json:"scene"`
	Shot          int     `json:"shot"`
	ShotNumber    string  `json:"shotNumber"`
	UniqueName    string  `json:"uniqueName"`
	Audio         string  `json:"audio"`
	Visual        string  `json:"visual"`
	Duration      string  `json:"duration"`
	WordCount     int     `json:"wordCount"`
	Runtime       float64 `json:"runtime"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	StartFrameURL string  `json:"startFrame,omitempty"`
	EndFrameURL   string  `json:"endFrame,omitempty"`
}

// FormatShotNumber renders the dotted scene.shot notation.
func FormatShotNumber(scene, shot int) string {
	return fmt.Sprintf("%d.%d", scene, shot)
}

// AVSegment groups the shots of one scene.
type AVSegment struct {
	ID            string   `json:"id"`
	SegmentNumber int      `json:"segmentNumber"`
	Title         string   `json:"title"`
	Shots         []AVShot `json:"shots"`
}

// AVScript is the generated shot list of an episode.
type AVScript struct {
	Lang           Lang        `json:"lang,omitempty"`
	Segments       []AVSegment `json:"segments"`
	FailedSegments []int       `json:"failedSegments,omitempty"`
	GeneratedAt    Timestamp   `json:"generatedAt"`
}

// FindShot returns a pointer to the shot with id, or nil.
func (a *AVScript) FindShot(id string) *AVShot {
	for i := range a.Segments {
		for j := range a.Segments[i].Shots {
			if a.Segments[i].Shots[j].ID == id {
				return &a.Segments[i].Shots[j]
			}
		}
	}
	return nil
}

// Shots flattens the segments in order.
func (a *AVScript) Shots() []AVShot {
	var out []AVShot
	for _, s := range a.Segments {
		out = append(out, s.Shots...)
	}
	return out
}

// TotalRuntime sums shot runtimes in seconds.
func (a *AVScript) TotalRuntime() float64 {
	var sum float64
	for _, s := range a.Segments {
		for _, sh := range s.Shots {
			sum += sh.Runtime
		}
	}
	return sum
}
