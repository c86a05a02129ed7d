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
	"math"
	"strconv"
	"strings"
)

const (
	// FPS is the frame rate of the MM:SS:FF notation.
	FPS = 24
	// MinDurationFrames is the shortest allowed shot (2 s).
	MinDurationFrames = 2 * FPS
	// DefaultDurationFrames replaces unreadable durations (3 s).
	DefaultDurationFrames = 3 * FPS
	// MaxDurationFrames is the longest readable shot (99 min); anything longer is unreadable.
	MaxDurationFrames = 99 * 60 * FPS
)

// NormalizeDuration converts MM:SS:FF, MM:SS, HH:MM:SS:FF, plain seconds or "Ns" into MM:SS:FF.
// Frame counts of 24 or more carry into seconds, results below 2 s are raised to 00:02:00 and
// unreadable input, including anything longer than 99 minutes, becomes 00:03:00.
func NormalizeDuration(s string) string {
	frames, ok := parseFrames(s)
	if !ok {
		frames = DefaultDurationFrames
	}
	if frames < MinDurationFrames {
		frames = MinDurationFrames
	}
	return formatFrames(frames)
}

// DurationSeconds returns the length of a normalized MM:SS:FF value in seconds.
func DurationSeconds(mmssff string) float64 {
	frames, ok := parseFrames(mmssff)
	if !ok {
		return 0
	}
	return float64(frames) / FPS
}

func formatFrames(frames int) string {
	sec := frames / FPS
	return fmt.Sprintf("%02d:%02d:%02d", sec/60, sec%60, frames%FPS)
}

func parseFrames(s string) (int, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		nums := make([]int, len(parts))
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 || n > MaxDurationFrames {
				return 0, false
			}
			nums[i] = n
		}
		frames := 0
		switch len(nums) {
		case 2:
			frames = (nums[0]*60 + nums[1]) * FPS
		case 3:
			frames = (nums[0]*60+nums[1])*FPS + nums[2]
		case 4:
			frames = ((nums[0]*60+nums[1])*60+nums[2])*FPS + nums[3]
		default:
			return 0, false
		}
		return frames, frames <= MaxDurationFrames
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, "sec"), "s")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) || f*FPS > MaxDurationFrames {
		return 0, false
	}
	return int(math.Round(f * FPS)), true
}
