/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp wraps time.Time and accepts the timestamp shapes found in stored documents:
// Firestore-style {seconds,nanoseconds} objects, {"$date": ...}, date strings and epoch numbers.
// It always marshals as an RFC3339 string (or null when zero).
type Timestamp struct {
	time.Time
}

// Now returns the current instant in UTC.
func Now() Timestamp { return Timestamp{time.Now().UTC()} }

// TS wraps t.
func TS(t time.Time) Timestamp { return Timestamp{t.UTC()} }

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	v, err := NormalizeInstant(json.RawMessage(b))
	if err != nil {
		return err
	}
	t.Time = v
	return nil
}

// NormalizeInstant converts a raw JSON timestamp value of any supported shape into a UTC time.
// null and empty values yield the zero time.
func NormalizeInstant(raw json.RawMessage) (time.Time, error) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return time.Time{}, nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return time.Time{}, fmt.Errorf("timestamp string: %w", err)
		}
		return parseDateString(s)
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(b, &m); err != nil {
			return time.Time{}, fmt.Errorf("timestamp object: %w", err)
		}
		return fromObject(m)
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp number: %w", err)
		}
		return fromEpoch(f), nil
	}
}

func parseDateString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, l := range dateLayouts {
		if v, err := time.Parse(l, s); err == nil {
			return v.UTC(), nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func fromObject(m map[string]json.RawMessage) (time.Time, error) {
	if d, ok := m["$date"]; ok {
		return NormalizeInstant(d)
	}
	secRaw, ok := m["seconds"]
	if !ok {
		secRaw, ok = m["_seconds"]
	}
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp object without seconds")
	}
	var sec, nsec float64
	if err := json.Unmarshal(secRaw, &sec); err != nil {
		return time.Time{}, fmt.Errorf("timestamp seconds: %w", err)
	}
	nsRaw, ok := m["nanoseconds"]
	if !ok {
		nsRaw, ok = m["_nanoseconds"]
	}
	if ok {
		if err := json.Unmarshal(nsRaw, &nsec); err != nil {
			return time.Time{}, fmt.Errorf("timestamp nanoseconds: %w", err)
		}
	}
	return time.Unix(int64(sec), int64(nsec)).UTC(), nil
}

// Values above 1e12 are taken as milliseconds, everything else as seconds.
func fromEpoch(f float64) time.Time {
	if math.Abs(f) > 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
