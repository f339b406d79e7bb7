/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package edit

import (
	"fmt"
	"log/slog"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/tree"
	"cardcanvas/internal/undo"
)

// Ops lists which structural edits are legal for a node.
type Ops struct {
	Found    bool `json:"found"`
	MoveUp   bool `json:"moveUp"`
	MoveDown bool `json:"moveDown"`
	Indent   bool `json:"indent"`
	Outdent  bool `json:"outdent"`
	Move     bool `json:"move"`
	Delete   bool `json:"delete"`
}

// AvailableOps reports the legal structural edits for id without mutating.
func AvailableOps(root *domain.Block, id string) Ops {
	n, parent, idx := tree.Locate(root, id)
	if n == nil {
		return Ops{}
	}
	ops := Ops{Found: true}
	if parent == nil {
		return ops
	}
	ops.Move = true
	ops.Delete = true
	ops.MoveUp = idx > 0
	ops.MoveDown = idx < len(parent.Children)-1
	ops.Indent = idx > 0 && !slotTaken(parent.Children[idx-1], n)
	if parent != root {
		if gp := tree.ParentOf(root, parent.ID); gp != nil {
			ops.Outdent = !slotTaken(gp, n)
		}
	}
	return ops
}

// MoveUp swaps the node with its previous sibling. It returns nil at the first
// position or when the node is absent.
func (ed *Editor) MoveUp(root *domain.Block, id string) *undo.Entry {
	n, parent, idx := tree.Locate(root, id)
	if n == nil || parent == nil || idx == 0 {
		return nil
	}
	e, _ := ed.commit(root, moveEntry("moveUp", id, parent.ID, idx, parent.ID, idx-1))
	return e
}

// MoveDown swaps the node with its next sibling. It returns nil at the last
// position or when the node is absent.
func (ed *Editor) MoveDown(root *domain.Block, id string) *undo.Entry {
	n, parent, idx := tree.Locate(root, id)
	if n == nil || parent == nil || idx >= len(parent.Children)-1 {
		return nil
	}
	e, _ := ed.commit(root, moveEntry("moveDown", id, parent.ID, idx, parent.ID, idx+1))
	return e
}

// Indent makes the node the last child of its previous sibling, turning a leaf
// sibling into a container.
func (ed *Editor) Indent(root *domain.Block, id string) *undo.Entry {
	n, parent, idx := tree.Locate(root, id)
	if n == nil || parent == nil || idx == 0 {
		return nil
	}
	prev := parent.Children[idx-1]
	e := moveEntry("indent", id, parent.ID, idx, prev.ID, len(prev.Children))
	e.MadeContainer = prev.IsLeaf()
	out, _ := ed.commit(root, e)
	return out
}

// Outdent makes the node the next sibling of its parent.
func (ed *Editor) Outdent(root *domain.Block, id string) *undo.Entry {
	n, parent, idx := tree.Locate(root, id)
	if n == nil || parent == nil || parent == root {
		return nil
	}
	_, gp, pidx := tree.Locate(root, parent.ID)
	if gp == nil {
		return nil
	}
	e, _ := ed.commit(root, moveEntry("outdent", id, parent.ID, idx, gp.ID, pidx+1))
	return e
}

// MoveNode appends the subtree at id to newParentID. It returns nil when the
// move is rejected, including a move under the node's own descendant.
func (ed *Editor) MoveNode(root *domain.Block, id, newParentID string) *undo.Entry {
	e, _ := ed.MoveNodeAt(root, id, newParentID, -1)
	return e
}

// MoveNodeAt moves the subtree at id under newParentID so that it ends up at
// index among the new siblings; an out of range index appends. It reports why
// a move was rejected. Moving a node to its current position returns nil, nil.
func (ed *Editor) MoveNodeAt(root *domain.Block, id, newParentID string, index int) (*undo.Entry, error) {
	n, parent, idx := tree.Locate(root, id)
	if n == nil {
		return nil, ErrNotFound
	}
	if parent == nil {
		return nil, ErrRootMove
	}
	dst := tree.Find(root, newParentID)
	if dst == nil {
		return nil, ErrNotFound
	}
	if tree.Contains(n, dst.ID) {
		ed.log.Debug("move rejected", slog.String("node", id), slog.String("target", newParentID), slog.Any("err", ErrCycle))
		return nil, ErrCycle
	}
	limit := len(dst.Children)
	if dst == parent {
		limit--
	}
	if index < 0 || index > limit {
		index = limit
	}
	if dst == parent && index == idx {
		return nil, nil
	}
	e := moveEntry("move", id, parent.ID, idx, dst.ID, index)
	e.MadeContainer = dst.IsLeaf()
	return ed.commit(root, e)
}

// MoveManyAt moves several subtrees under newParentID as one history step.
// They end up adjacent, in the given order, at index among the new parent's
// children that are not being moved; an out of range index appends. Nothing
// moves if any single move is rejected.
func (ed *Editor) MoveManyAt(root *domain.Block, ids []string, newParentID string, index int) (*undo.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	dst := tree.Find(root, newParentID)
	if dst == nil {
		return nil, ErrNotFound
	}
	moving := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		moving[id] = struct{}{}
	}
	var rest []string
	for _, c := range dst.Children {
		if _, ok := moving[c.ID]; !ok {
			rest = append(rest, c.ID)
		}
	}
	before := ""
	if index >= 0 && index < len(rest) {
		before = rest[index]
	}

	// plan on a copy so a late rejection leaves root untouched
	work := root.Clone()
	var steps []undo.Entry
	for _, id := range ids {
		n, parent, idx := tree.Locate(work, id)
		if n == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if parent == nil {
			return nil, ErrRootMove
		}
		to := tree.Find(work, newParentID)
		pos := len(to.Children)
		if before != "" {
			pos = to.ChildIndex(before)
		}
		if to == parent && idx < pos {
			pos--
		}
		if to == parent && idx == pos {
			continue
		}
		e := moveEntry("move", id, parent.ID, idx, to.ID, pos)
		e.MadeContainer = to.IsLeaf()
		if err := Apply(work, e); err != nil {
			ed.log.Debug("move rejected", slog.String("node", id), slog.String("target", newParentID), slog.Any("err", err))
			return nil, err
		}
		steps = append(steps, e)
	}
	if len(steps) == 0 || domain.Equal(work, root) {
		return nil, nil
	}
	if len(steps) == 1 {
		return ed.commit(root, steps[0])
	}
	return ed.commit(root, undo.Group("move", steps...))
}

func moveEntry(label, id, fromParent string, fromIdx int, toParent string, toIdx int) undo.Entry {
	return undo.Entry{
		Kind:   undo.KindMove,
		Label:  label,
		NodeID: id,
		From:   undo.Position{ParentID: fromParent, Index: fromIdx},
		To:     undo.Position{ParentID: toParent, Index: toIdx},
	}
}
