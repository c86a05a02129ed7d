/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package studio

import (
	"context"
	"encoding/json"
	"fmt"

	"concepto/internal/domain"
	"concepto/internal/screenplay"
	"concepto/internal/storage"
	"concepto/internal/undo"
)

// HistoryState tells whether undo and redo are available for an episode.
type HistoryState struct {
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// Undo restores the document state before the latest change.
func (w *Workspace) Undo(episodeID string) (Change, error) { return w.step(episodeID, true) }

// Redo reapplies the change most recently undone.
func (w *Workspace) Redo(episodeID string) (Change, error) { return w.step(episodeID, false) }

// History reports undo and redo availability.
func (w *Workspace) History(episodeID string) HistoryState {
	return HistoryState{CanUndo: w.undo.CanUndo(episodeID), CanRedo: w.undo.CanRedo(episodeID)}
}

func (w *Workspace) step(episodeID string, back bool) (Change, error) {
	oe, err := w.episode(episodeID)
	if err != nil {
		return Change{}, err
	}
	oe.mu.Lock()
	cur, err := json.Marshal(oe.ep.Screenplay)
	if err != nil {
		oe.mu.Unlock()
		return Change{}, fmt.Errorf("snapshot episode %s: %w", episodeID, err)
	}
	var snap undo.Snapshot
	var ok bool
	op := "undo"
	if back {
		snap, ok = w.undo.Undo(episodeID, cur)
	} else {
		snap, ok = w.undo.Redo(episodeID, cur)
		op = "redo"
	}
	if !ok {
		rev := oe.eng.Revision()
		oe.mu.Unlock()
		return Change{Revision: rev}, nil
	}
	var doc domain.Document
	if err := json.Unmarshal(snap.Blob, &doc); err != nil {
		oe.mu.Unlock()
		return Change{}, fmt.Errorf("decode %s state of episode %s: %w", op, episodeID, err)
	}
	rev := w.replaceDocumentLocked(oe, doc)
	oe.mu.Unlock()
	w.changed(oe, op, rev)
	return Change{Applied: true, Revision: rev}, nil
}

// replaceDocumentLocked swaps the live document and resets sessions, whose edit baselines
// refer to the replaced content. The revision keeps counting upward.
func (w *Workspace) replaceDocumentLocked(oe *openEpisode, doc domain.Document) int64 {
	doc.Revision = oe.ep.Screenplay.Revision + 1
	oe.ep.Screenplay = doc
	oe.eng = screenplay.New(&oe.ep.Screenplay)
	for id, s := range oe.sessions {
		oe.sessions[id] = screenplay.NewSession(s.Lang)
	}
	oe.ep.UpdatedAt = domain.TS(w.opts.Now())
	return doc.Revision
}

// Backups lists the stored autosave copies of an episode, newest first.
func (w *Workspace) Backups(ctx context.Context, episodeID string, limit int) ([]storage.DocumentBackup, error) {
	if _, err := w.episode(episodeID); err != nil {
		return nil, err
	}
	return storage.ListDocumentBackups(ctx, w.h, episodeID, limit)
}

// RestoreBackup replaces the live document with a stored backup. The replaced state stays
// reachable through Undo.
func (w *Workspace) RestoreBackup(ctx context.Context, episodeID string, backupID int64) (Change, error) {
	b, err := storage.GetDocumentBackup(ctx, w.h, episodeID, backupID)
	if err != nil {
		return Change{}, err
	}
	var doc domain.Document
	if err := json.Unmarshal(b.Data, &doc); err != nil {
		return Change{}, fmt.Errorf("decode backup %d: %w", backupID, err)
	}
	return w.replace(episodeID, "restore-backup", doc)
}

// ReplaceDocument swaps the whole screenplay of an episode, e.g. after an import.
func (w *Workspace) ReplaceDocument(episodeID string, doc domain.Document) (Change, error) {
	return w.replace(episodeID, "replace", doc)
}

func (w *Workspace) replace(episodeID, op string, doc domain.Document) (Change, error) {
	oe, err := w.episode(episodeID)
	if err != nil {
		return Change{}, err
	}
	oe.mu.Lock()
	before, err := json.Marshal(oe.ep.Screenplay)
	if err != nil {
		oe.mu.Unlock()
		return Change{}, fmt.Errorf("snapshot episode %s: %w", episodeID, err)
	}
	w.undo.Push(undo.Snapshot{Key: episodeID, Blob: before, TS: w.opts.Now()})
	rev := w.replaceDocumentLocked(oe, doc)
	oe.mu.Unlock()
	w.changed(oe, op, rev)
	return Change{Applied: true, Revision: rev}, nil
}
