/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"strings"
	"testing"
	"time"

	"cardcanvas/internal/domain"
)

func TestClearAndStats(t *testing.T) {
	m := NewManager(Config{})
	m.Push(Entry{Kind: KindMove, NodeID: "b", From: Position{"root", 1}, To: Position{"root", 0}})
	tb, depth, _, _ := m.Stats()
	if tb == 0 || depth != 1 {
		t.Fatalf("unexpected stats before clear: tb=%d depth=%d", tb, depth)
	}
	m.Clear()
	tb2, depth2, redo2, _ := m.Stats()
	if tb2 != 0 || depth2 != 0 || redo2 != 0 {
		t.Fatalf("expected cleared stats to be zero, got tb=%d depth=%d redo=%d", tb2, depth2, redo2)
	}
	if m.CanUndo() || m.CanRedo() {
		t.Fatalf("nothing to undo or redo after clear")
	}
}

func TestMemoryCapKeepsNewest(t *testing.T) {
	// Very small MaxBytes so pruning triggers on every push
	m := NewManager(Config{MaxBytes: 10})
	big := &domain.Block{ID: "big", Kind: "Text", Props: domain.NewProps("text", strings.Repeat("x", 200))}
	m.Push(Entry{Kind: KindInsert, NodeID: "big", Subtree: big, TS: time.Now()})
	m.Push(Entry{Kind: KindRemove, NodeID: "big", Subtree: big, TS: time.Now()})
	_, depth, _, evicted := m.Stats()
	if depth != 1 || evicted != 1 {
		t.Fatalf("expected newest entry only, got depth=%d evicted=%d", depth, evicted)
	}
	if e, ok := m.PeekUndo(); !ok || e.Kind != KindRemove {
		t.Fatalf("expected remove entry on top, got %+v", e)
	}
}

func TestEmptyStacks(t *testing.T) {
	m := NewManager(Config{})
	if _, ok := m.Undo(); ok {
		t.Fatalf("undo on empty stack")
	}
	if _, ok := m.Redo(); ok {
		t.Fatalf("redo on empty stack")
	}
	if _, ok := m.PeekRedo(); ok {
		t.Fatalf("peek redo on empty stack")
	}
}

func TestLocateAndRemoveBySeq(t *testing.T) {
	m := NewManager(Config{})
	m.Push(Entry{Kind: KindInsert, NodeID: "p", Seq: 7})
	m.Push(Entry{Kind: KindMove, NodeID: "b"})
	if got := m.Locate(7); got != StackUndo {
		t.Fatalf("expected seq 7 below the top, got %v", got)
	}
	if got := m.Locate(0); got != StackNone {
		t.Fatalf("seq 0 must never match, got %v", got)
	}
	m.Undo()
	if got := m.Locate(7); got != StackUndoTop {
		t.Fatalf("expected seq 7 on top, got %v", got)
	}
	if e, ok := m.Remove(7); !ok || e.NodeID != "p" {
		t.Fatalf("remove from undo stack: %+v %v", e, ok)
	}
	if m.CanUndo() || !m.CanRedo() {
		t.Fatalf("remove must leave the redo stack alone")
	}

	m.Push(Entry{Kind: KindInsert, NodeID: "q", Seq: 8})
	m.Undo()
	if got := m.Locate(8); got != StackRedo {
		t.Fatalf("expected seq 8 on redo, got %v", got)
	}
	if _, ok := m.Remove(8); !ok || m.CanRedo() {
		t.Fatalf("remove from redo stack failed")
	}
	if _, ok := m.Remove(8); ok {
		t.Fatalf("second remove must report false")
	}
	if tb, _, _, _ := m.Stats(); tb != 0 {
		t.Fatalf("byte accounting off after removals: %d", tb)
	}
}
