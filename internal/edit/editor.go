/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package edit mutates a block tree through property writes and structural
// moves. Every mutation is all-or-nothing and is recorded as a plain-data
// undo.Entry on one history shared by all commands of an editing session.
package edit

import (
	"errors"
	"log/slog"

	"cardcanvas/internal/domain"
	applog "cardcanvas/internal/log"
	"cardcanvas/internal/tree"
	"cardcanvas/internal/undo"
)

// Validator accepts or rejects a property value before it is written.
type Validator func(key string, value any) bool

// Editor applies edits to a tree and records them on a history.
type Editor struct {
	hist *undo.Manager
	log  *slog.Logger
}

// New returns an editor recording onto hist. A nil logger uses the component
// logger "edit".
func New(hist *undo.Manager, logger *slog.Logger) *Editor {
	if hist == nil {
		hist = undo.NewManager(undo.Config{})
	}
	if logger == nil {
		logger = applog.WithComponent("edit")
	}
	return &Editor{hist: hist, log: logger}
}

// History exposes the underlying history stack.
func (ed *Editor) History() *undo.Manager { return ed.hist }

func (ed *Editor) CanUndo() bool { return ed.hist.CanUndo() }
func (ed *Editor) CanRedo() bool { return ed.hist.CanRedo() }

// Record pushes an entry whose change has already been applied to the tree.
func (ed *Editor) Record(e undo.Entry) { ed.hist.Push(e) }

// Do applies e to root and records it. Nothing is recorded on error.
func (ed *Editor) Do(root *domain.Block, e undo.Entry) error {
	if err := Apply(root, e); err != nil {
		return err
	}
	ed.hist.Push(e)
	return nil
}

// Undo reverts the most recent entry and returns it. It returns nil, nil when
// there is nothing to undo. A stale entry stays on the undo stack.
func (ed *Editor) Undo(root *domain.Block) (*undo.Entry, error) {
	e, ok := ed.hist.PeekUndo()
	if !ok {
		return nil, nil
	}
	if err := Revert(root, e); err != nil {
		ed.log.Warn("undo failed", slog.String("kind", string(e.Kind)), slog.String("node", e.NodeID), slog.Any("err", err))
		return nil, err
	}
	ed.hist.Undo()
	return &e, nil
}

// Redo reapplies the most recently undone entry.
func (ed *Editor) Redo(root *domain.Block) (*undo.Entry, error) {
	e, ok := ed.hist.PeekRedo()
	if !ok {
		return nil, nil
	}
	if err := Apply(root, e); err != nil {
		ed.log.Warn("redo failed", slog.String("kind", string(e.Kind)), slog.String("node", e.NodeID), slog.Any("err", err))
		return nil, err
	}
	ed.hist.Redo()
	return &e, nil
}

// commit applies and records a structural entry, returning nil when the tree
// rejected it.
func (ed *Editor) commit(root *domain.Block, e undo.Entry) (*undo.Entry, error) {
	if err := ed.Do(root, e); err != nil {
		ed.log.Debug("edit rejected", slog.String("op", e.Label), slog.String("node", e.NodeID), slog.Any("err", err))
		return nil, err
	}
	ed.log.Debug("edit applied", slog.String("op", e.Label), slog.String("node", e.NodeID))
	return &e, nil
}

// Insert adds a copy of b under parentID at index (out of range appends).
// Every id in b must be non-empty and absent from the tree.
func (ed *Editor) Insert(root *domain.Block, parentID string, index int, b *domain.Block) (*undo.Entry, error) {
	if b == nil {
		return nil, domain.ErrEmptyID
	}
	var bad error
	tree.Walk(b, func(n, _ *domain.Block, _ int) bool {
		if bad == nil {
			bad = domain.ValidateNew(n)
		}
		return bad == nil
	})
	if bad != nil {
		return nil, bad
	}
	if err := tree.Check(b); err != nil {
		return nil, err
	}
	parent := tree.Find(root, parentID)
	if parent == nil {
		return nil, ErrNotFound
	}
	if index < 0 || index > len(parent.Children) {
		index = len(parent.Children)
	}
	return ed.commit(root, undo.Entry{
		Kind:    undo.KindInsert,
		Label:   "insert",
		NodeID:  b.ID,
		To:      undo.Position{ParentID: parentID, Index: index},
		Subtree: b.Clone(),
	})
}

// Delete removes the subtree rooted at id.
func (ed *Editor) Delete(root *domain.Block, id string) (*undo.Entry, error) {
	e, err := RemoveEntry(root, id)
	if err != nil {
		return nil, err
	}
	return ed.commit(root, e)
}

// DeleteMany removes several subtrees as one history step. Ids nested under
// another listed id are skipped.
func (ed *Editor) DeleteMany(root *domain.Block, ids []string) (*undo.Entry, error) {
	steps, err := RemoveEntries(root, ids)
	if err != nil {
		return nil, err
	}
	if len(steps) == 1 {
		return ed.commit(root, steps[0])
	}
	return ed.commit(root, undo.Group("delete", steps...))
}

// RemoveEntry describes the removal of id without applying it.
func RemoveEntry(root *domain.Block, id string) (undo.Entry, error) {
	n, parent, idx := tree.Locate(root, id)
	if n == nil {
		return undo.Entry{}, ErrNotFound
	}
	if parent == nil {
		return undo.Entry{}, ErrRootMove
	}
	return undo.Entry{
		Kind:    undo.KindRemove,
		Label:   "delete",
		NodeID:  id,
		From:    undo.Position{ParentID: parent.ID, Index: idx},
		Subtree: n.Clone(),
	}, nil
}

// RemoveEntries describes the removal of the top-most of ids. Steps are
// ordered so each recorded index is valid when the steps run in sequence:
// siblings are removed back to front.
func RemoveEntries(root *domain.Block, ids []string) ([]undo.Entry, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var steps []undo.Entry
	var walkErr error
	tree.Walk(root, func(n, parent *domain.Block, _ int) bool {
		if !want[n.ID] {
			return true
		}
		if parent == nil {
			walkErr = ErrRootMove
			return false
		}
		steps = append(steps, undo.Entry{
			Kind:    undo.KindRemove,
			Label:   "delete",
			NodeID:  n.ID,
			From:    undo.Position{ParentID: parent.ID, Index: parent.ChildIndex(n.ID)},
			Subtree: n.Clone(),
		})
		// descendants leave with n
		return false
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if len(steps) == 0 {
		return nil, ErrNotFound
	}
	// pre-order puts earlier siblings first; removing in reverse keeps the
	// recorded indexes of the remaining steps valid
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps, nil
}

// IsRejection reports whether err is one of the guard errors that leave the
// tree untouched.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCycle) || errors.Is(err, ErrRootMove) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateID) || errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrStale)
}
