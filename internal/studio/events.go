/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package studio

// Event types published to episode subscribers.
const (
	EventChanged     = "changed"
	EventSaved       = "saved"
	EventSaveFailed  = "save-failed"
	EventAVGenerated = "av-generated"
	EventAVProgress  = "av-progress"
	EventShotUpdated = "shot-updated"
	EventRemoved     = "removed"
)

// Event is a change notification for one episode.
type Event struct {
	Type      string `json:"type"`
	EpisodeID string `json:"episodeId"`
	Revision  int64  `json:"revision,omitempty"`
	Op        string `json:"op,omitempty"`
	ShotID    string `json:"shotId,omitempty"`
	Done      int    `json:"done,omitempty"`
	Total     int    `json:"total,omitempty"`
	Error     string `json:"error,omitempty"`
}

const subscriberBuffer = 32

// Subscribe returns a channel receiving the events of one episode and a function that ends
// the subscription. Slow subscribers miss events rather than blocking editors.
func (w *Workspace) Subscribe(episodeID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	w.subMu.Lock()
	set := w.subs[episodeID]
	if set == nil {
		set = map[chan Event]struct{}{}
		w.subs[episodeID] = set
	}
	set[ch] = struct{}{}
	w.subMu.Unlock()
	var once bool
	return ch, func() {
		w.subMu.Lock()
		defer w.subMu.Unlock()
		if once {
			return
		}
		once = true
		delete(w.subs[episodeID], ch)
		if len(w.subs[episodeID]) == 0 {
			delete(w.subs, episodeID)
		}
		close(ch)
	}
}

func (w *Workspace) publish(ev Event) {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	for ch := range w.subs[ev.EpisodeID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
