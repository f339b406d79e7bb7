/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package edit

import (
	"errors"
	"fmt"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/tree"
	"cardcanvas/internal/undo"
)

var (
	ErrNotFound     = errors.New("node not found")
	ErrStale        = errors.New("history entry no longer matches the tree")
	ErrCycle        = errors.New("move would make a node its own ancestor")
	ErrRootMove     = errors.New("root cannot be moved or removed")
	ErrDuplicateID  = errors.New("id already present in tree")
	ErrSlotTaken    = errors.New("slot already occupied in target parent")
	ErrUnknownEntry = errors.New("unknown history entry kind")
)

// Apply replays an entry's forward change on root. The tree is untouched when
// an error is returned.
func Apply(root *domain.Block, e undo.Entry) error {
	switch e.Kind {
	case undo.KindProps:
		return applyProps(root, e.NodeID, e.Changes, false)
	case undo.KindMove:
		return relocate(root, e.NodeID, e.From, e.To, e.MadeContainer, false)
	case undo.KindInsert:
		return attach(root, e.Subtree, e.To)
	case undo.KindRemove:
		return detach(root, e.NodeID, e.From)
	case undo.KindGroup:
		for i, st := range e.Steps {
			if err := Apply(root, st); err != nil {
				rollback(root, e.Steps[:i], Revert)
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownEntry, e.Kind)
}

// Revert applies the inverse of an entry on root. The tree is untouched when
// an error is returned.
func Revert(root *domain.Block, e undo.Entry) error {
	switch e.Kind {
	case undo.KindProps:
		return applyProps(root, e.NodeID, e.Changes, true)
	case undo.KindMove:
		return relocate(root, e.NodeID, e.To, e.From, e.MadeContainer, true)
	case undo.KindInsert:
		return detach(root, e.NodeID, e.To)
	case undo.KindRemove:
		return attach(root, e.Subtree, e.From)
	case undo.KindGroup:
		for i := len(e.Steps) - 1; i >= 0; i-- {
			if err := Revert(root, e.Steps[i]); err != nil {
				rollback(root, reversed(e.Steps[i+1:]), Apply)
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownEntry, e.Kind)
}

// rollback undoes already-applied group steps, newest first.
func rollback(root *domain.Block, done []undo.Entry, undoFn func(*domain.Block, undo.Entry) error) {
	for i := len(done) - 1; i >= 0; i-- {
		_ = undoFn(root, done[i])
	}
}

func reversed(es []undo.Entry) []undo.Entry {
	out := make([]undo.Entry, len(es))
	for i, e := range es {
		out[len(es)-1-i] = e
	}
	return out
}

func slotTaken(parent, n *domain.Block) bool {
	if n.Slot == "" {
		return false
	}
	for _, c := range parent.Children {
		if c != n && c.Slot == n.Slot {
			return true
		}
	}
	return false
}

func applyProps(root *domain.Block, id string, changes []undo.PropChange, inverse bool) error {
	n := tree.Find(root, id)
	if n == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if inverse {
		for i := len(changes) - 1; i >= 0; i-- {
			c := changes[i]
			writeProp(n, c.Key, c.Old, c.HadOld, c.Pos)
		}
		return nil
	}
	for _, c := range changes {
		writeProp(n, c.Key, c.New, c.HasNew, -1)
	}
	return nil
}

func writeProp(n *domain.Block, key string, v any, present bool, pos int) {
	if present {
		n.Props.SetAt(pos, key, domain.CloneValue(v))
		return
	}
	n.Props.Delete(key)
}

// relocate moves id from position from to position to. On the inverse of a
// move that created a container, the emptied container is returned to a leaf.
func relocate(root *domain.Block, id string, from, to undo.Position, madeContainer, inverse bool) error {
	n, parent, idx := tree.Locate(root, id)
	if n == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if parent == nil {
		return ErrRootMove
	}
	if parent.ID != from.ParentID || idx != from.Index {
		return fmt.Errorf("%w: %s is at %s[%d], expected %s[%d]", ErrStale, id, parent.ID, idx, from.ParentID, from.Index)
	}
	dst := tree.Find(root, to.ParentID)
	if dst == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, to.ParentID)
	}
	if tree.Contains(n, dst.ID) {
		return ErrCycle
	}
	if slotTaken(dst, n) {
		return fmt.Errorf("%w: %q", ErrSlotTaken, n.Slot)
	}
	parent.RemoveChildAt(idx)
	dst.InsertChild(to.Index, n)
	if madeContainer && inverse && len(parent.Children) == 0 {
		parent.Children = nil
	}
	return nil
}

func attach(root *domain.Block, sub *domain.Block, at undo.Position) error {
	if sub == nil {
		return fmt.Errorf("%w: empty subtree", ErrNotFound)
	}
	parent := tree.Find(root, at.ParentID)
	if parent == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, at.ParentID)
	}
	live := tree.IDSet(root)
	for _, id := range tree.IDs(sub) {
		if _, dup := live[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
	}
	if slotTaken(parent, sub) {
		return fmt.Errorf("%w: %q", ErrSlotTaken, sub.Slot)
	}
	// history keeps its own copy
	parent.InsertChild(at.Index, sub.Clone())
	return nil
}

func detach(root *domain.Block, id string, at undo.Position) error {
	n, parent, idx := tree.Locate(root, id)
	if n == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if parent == nil {
		return ErrRootMove
	}
	if parent.ID != at.ParentID || idx != at.Index {
		return fmt.Errorf("%w: %s is at %s[%d], expected %s[%d]", ErrStale, id, parent.ID, idx, at.ParentID, at.Index)
	}
	parent.RemoveChildAt(idx)
	return nil
}
