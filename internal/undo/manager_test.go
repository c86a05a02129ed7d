/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestUndoRedoRoundTrip(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerKey: 10, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Key: "ep", Blob: []byte("a"), TS: t0})
	m.Push(Snapshot{Key: "ep", Blob: []byte("b"), TS: t0.Add(20 * time.Millisecond)})
	if _, keys, total := m.Stats(); keys != 1 || total != 2 {
		t.Fatalf("expected 1 key and 2 snapshots, got keys=%d total=%d", keys, total)
	}
	s, ok := m.Undo("ep", []byte("c"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, s.Blob)
	}
	s, ok = m.Redo("ep", []byte("b"))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, s.Blob)
	}
	if m.CanRedo("ep") {
		t.Fatalf("redo stack should be empty")
	}
	s, ok = m.Undo("ep", []byte("c"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo after redo expected 'b', got %q", s.Blob)
	}
}

func TestCoalesceKeepsStateBeforeBurst(t *testing.T) {
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Key: "ep", Blob: []byte("1"), TS: t0})
	m.Push(Snapshot{Key: "ep", Blob: []byte("2"), TS: t0.Add(10 * time.Millisecond)})
	m.Push(Snapshot{Key: "ep", Blob: []byte("3"), TS: t0.Add(40 * time.Millisecond)})
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", total)
	}
	s, ok := m.Undo("ep", []byte("4"))
	if !ok || string(s.Blob) != "1" {
		t.Fatalf("expected state before the burst, got ok=%v blob=%q", ok, s.Blob)
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	m.Push(Snapshot{Key: "ep", Blob: []byte("a"), TS: time.Now()})
	m.Undo("ep", []byte("b"))
	if !m.CanRedo("ep") {
		t.Fatalf("expected redo after undo")
	}
	m.Push(Snapshot{Key: "ep", Blob: []byte("a"), TS: time.Now()})
	if m.CanRedo("ep") {
		t.Fatalf("new change must clear redo")
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxPerKey: 2, MinInterval: time.Millisecond})
	for i := 0; i < 10; i++ {
		m.Push(Snapshot{Key: "ep", Blob: []byte("xxxxx"), TS: time.Now().Add(time.Duration(i) * time.Second)})
	}
	if _, _, total := m.Stats(); total > 2 {
		t.Fatalf("expected MaxPerKey cap to limit to 2, got %d", total)
	}
}

func TestClearAndStats(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024, MinInterval: time.Millisecond})
	m.Push(Snapshot{Key: "ep7", Blob: []byte("abcdef"), TS: time.Now()})
	m.Undo("ep7", []byte("ghi"))
	m.Clear("ep7")
	if tb, keys, total := m.Stats(); tb != 0 || keys != 0 || total != 0 {
		t.Fatalf("expected cleared stats to be zero, got tb=%d keys=%d total=%d", tb, keys, total)
	}
	if m.CanUndo("ep7") || m.CanRedo("ep7") {
		t.Fatalf("history should be gone")
	}
}

func TestGlobalPruneAcrossKeys(t *testing.T) {
	m := NewManager(Config{MaxBytes: 8, MinInterval: time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Key: "a", Blob: []byte("xxxx"), TS: t0})
	m.Push(Snapshot{Key: "b", Blob: []byte("yyyy"), TS: t0.Add(time.Second)})
	m.Push(Snapshot{Key: "b", Blob: []byte("zzzz"), TS: t0.Add(2 * time.Second)})
	if m.CanUndo("a") {
		t.Fatalf("expected key a to have been pruned")
	}
	if s, ok := m.Undo("b", nil); !ok || string(s.Blob) != "zzzz" {
		t.Fatalf("expected newest step of b to survive, got %q", s.Blob)
	}
}
