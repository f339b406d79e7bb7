/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package clipboard

import (
	"time"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/edit"
	"cardcanvas/internal/undo"
)

// Op names a clipboard operation.
type Op string

const (
	OpCopy      Op = "copy"
	OpCut       Op = "cut"
	OpPaste     Op = "paste"
	OpDuplicate Op = "duplicate"
)

// Record is one entry of the clipboard history.
type Record struct {
	Op  Op        `json:"op"`
	At  time.Time `json:"at"`
	Ref string    `json:"ref,omitempty"` // source for copy/cut, target for paste
	IDs []string  `json:"ids"`
	// Entry is the tree change made by paste/duplicate.
	Entry *undo.Entry `json:"entry,omitempty"`
	// TreeUndone is set while Entry is reverted by another history; Undo then
	// restores the clipboard contents only.
	TreeUndone bool `json:"treeUndone,omitempty"`

	before contents
}

func (m *Manager) push(op Op, before contents, ref string, ids []string, e *undo.Entry) {
	m.history = append(m.history, Record{Op: op, At: m.now(), Ref: ref, IDs: ids, Entry: e, before: before})
	if extra := len(m.history) - m.limit; extra > 0 {
		m.history = append([]Record(nil), m.history[extra:]...)
	}
}

// History returns the clipboard operations, oldest first.
func (m *Manager) History() []Record { return append([]Record(nil), m.history...) }

// Peek returns the record Undo would reverse next.
func (m *Manager) Peek() (Record, bool) {
	if len(m.history) == 0 {
		return Record{}, false
	}
	return m.history[len(m.history)-1], true
}

// MarkTreeApplied records that the tree change with the given Seq was reverted
// (applied=false) or reapplied elsewhere. It reports whether a record matched.
func (m *Manager) MarkTreeApplied(seq uint64, applied bool) bool {
	if seq == 0 {
		return false
	}
	for i := range m.history {
		if e := m.history[i].Entry; e != nil && e.Seq == seq {
			m.history[i].TreeUndone = !applied
			return true
		}
	}
	return false
}

// Undo reverses the most recent clipboard operation. Copy and cut restore the
// previous contents; paste and duplicate remove the inserted nodes (restoring
// cut originals) and then restore the contents; when the tree change is
// already undone elsewhere only the contents are restored. It returns false
// when the history is empty. On error nothing changes.
func (m *Manager) Undo(root *domain.Block) (Record, bool, error) {
	n := len(m.history)
	if n == 0 {
		return Record{}, false, nil
	}
	rec := m.history[n-1]
	if rec.Entry != nil && !rec.TreeUndone {
		if err := edit.Revert(root, *rec.Entry); err != nil {
			return Record{}, false, err
		}
	}
	m.history = m.history[:n-1]
	m.contents = rec.before
	return rec, true, nil
}
