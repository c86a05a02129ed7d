/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// LegacyDocument is the older stored screenplay shape with two parallel element arrays
// correlated by index. It is only read at import time.
type LegacyDocument struct {
	PrimaryTitle      string          `json:"title"`
	SecondaryTitle    string          `json:"titleEN,omitempty"`
	PrimaryElements   []Element       `json:"elements"`
	SecondaryElements []Element       `json:"elementsEN,omitempty"`
	StableVersions    []LegacyVersion `json:"stableVersions,omitempty"`
}

// LegacyVersion is a stable version in the dual-array shape.
type LegacyVersion struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt Timestamp      `json:"createdAt"`
	Data      LegacyDocument `json:"data"`
}
