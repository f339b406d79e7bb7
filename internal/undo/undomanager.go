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
	"sync"
	"time"
)

// Config controls depth and memory caps and coalescing behavior.
type Config struct {
	// MaxEntries bounds the undo stack; the oldest entry is evicted beyond it.
	MaxEntries int
	// MaxBytes is a soft cap on the estimated size of the undo stack.
	MaxBytes int
	// CoalesceWindow folds consecutive property writes to the same node and keys
	// that arrive within the window into one entry. Zero disables coalescing.
	CoalesceWindow time.Duration
}

// Manager is a bounded undo/redo stack of Entry diffs shared by every command
// of one editing session. It is safe for concurrent use.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	undo []record
	redo []record
	// accounting
	totalBytes int
	evicted    int
}

// record pairs an entry with its size at push time; subtrees referenced by an
// entry may change afterwards, so the size is not recomputed on pop.
type record struct {
	e    Entry
	size int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 8 * 1024 * 1024 // 8 MiB
	}
	return &Manager{cfg: cfg}
}

// Push records an entry and clears the redo stack. A zero TS is stamped with now.
func (m *Manager) Push(e Entry) {
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redo = nil
	if n := len(m.undo); n > 0 && m.cfg.CoalesceWindow > 0 {
		last := m.undo[n-1]
		if e.TS.Sub(last.e.TS) < m.cfg.CoalesceWindow && last.e.mergeable(e) {
			merged := record{e: last.e.merge(e)}
			merged.size = merged.e.Size()
			m.totalBytes += merged.size - last.size
			m.undo[n-1] = merged
			m.enforceCapsLocked()
			return
		}
	}
	r := record{e: e, size: e.Size()}
	m.undo = append(m.undo, r)
	m.totalBytes += r.size
	m.enforceCapsLocked()
}

// Undo pops the most recent entry and moves it to the redo stack.
func (m *Manager) Undo() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.undo)
	if n == 0 {
		return Entry{}, false
	}
	r := m.undo[n-1]
	m.undo = m.undo[:n-1]
	m.totalBytes -= r.size
	m.redo = append(m.redo, r)
	return r.e, true
}

// Redo pops from redo and pushes back to undo.
func (m *Manager) Redo() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.redo)
	if n == 0 {
		return Entry{}, false
	}
	r := m.redo[n-1]
	m.redo = m.redo[:n-1]
	m.undo = append(m.undo, r)
	m.totalBytes += r.size
	m.enforceCapsLocked()
	return r.e, true
}

// PeekUndo returns the entry Undo would pop, without popping it.
func (m *Manager) PeekUndo() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return Entry{}, false
	}
	return m.undo[len(m.undo)-1].e, true
}

// PeekRedo returns the entry Redo would pop, without popping it.
func (m *Manager) PeekRedo() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return Entry{}, false
	}
	return m.redo[len(m.redo)-1].e, true
}

// Stack tells where Locate found an entry.
type Stack int

const (
	StackNone Stack = iota
	// StackUndoTop is the entry Undo would pop next.
	StackUndoTop
	StackUndo
	StackRedo
)

// Locate finds the entry with the given non-zero Seq.
func (m *Manager) Locate(seq uint64) Stack {
	if seq == 0 {
		return StackNone
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.undo) - 1; i >= 0; i-- {
		if m.undo[i].e.Seq == seq {
			if i == len(m.undo)-1 {
				return StackUndoTop
			}
			return StackUndo
		}
	}
	for _, r := range m.redo {
		if r.e.Seq == seq {
			return StackRedo
		}
	}
	return StackNone
}

// Remove drops the entry with the given non-zero Seq from whichever stack
// holds it, without applying or reverting anything.
func (m *Manager) Remove(seq uint64) (Entry, bool) {
	if seq == 0 {
		return Entry{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.undo {
		if r.e.Seq == seq {
			m.undo = append(m.undo[:i:i], m.undo[i+1:]...)
			m.totalBytes -= r.size
			return r.e, true
		}
	}
	for i, r := range m.redo {
		if r.e.Seq == seq {
			m.redo = append(m.redo[:i:i], m.redo[i+1:]...)
			return r.e, true
		}
	}
	return Entry{}, false
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Clear drops both stacks to free memory.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = nil
	m.redo = nil
	m.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, undoDepth int, redoDepth int, evicted int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes, len(m.undo), len(m.redo), m.evicted
}

func (m *Manager) enforceCapsLocked() {
	// depth cap: drop the oldest extras
	if extra := len(m.undo) - m.cfg.MaxEntries; extra > 0 {
		for i := 0; i < extra; i++ {
			m.totalBytes -= m.undo[i].size
		}
		m.undo = append([]record{}, m.undo[extra:]...)
		m.evicted += extra
	}
	// memory cap: prune oldest, but always keep the newest entry
	for m.totalBytes > m.cfg.MaxBytes && len(m.undo) > 1 {
		m.totalBytes -= m.undo[0].size
		m.undo = m.undo[1:]
		m.evicted++
	}
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}
