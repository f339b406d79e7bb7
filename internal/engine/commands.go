/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"cardcanvas/internal/batch"
	"cardcanvas/internal/clipboard"
	"cardcanvas/internal/domain"
	"cardcanvas/internal/edit"
	"cardcanvas/internal/selection"
	"cardcanvas/internal/tree"
	"cardcanvas/internal/undo"
)

// Select replaces the selection with id. It returns false when id is not in
// the tree.
func (s *Session) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !tree.Contains(s.root, id) {
		return false
	}
	s.sel.Select(id)
	return true
}

// AddToSelection extends the selection with id.
func (s *Session) AddToSelection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !tree.Contains(s.root, id) {
		return false
	}
	s.sel.AddToSelection(id)
	return true
}

// ToggleSelection adds or removes id.
func (s *Session) ToggleSelection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !tree.Contains(s.root, id) {
		return false
	}
	s.sel.Toggle(id)
	return true
}

func (s *Session) Deselect() {
	s.mu.Lock()
	s.sel.Deselect()
	s.mu.Unlock()
}

func (s *Session) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.AllSelectedIDs()
}

// Context reports which edits the selection allows. CanPaste also requires
// clipboard content and a primary outside the held subtrees.
func (s *Session) Context() selection.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.sel.Context(s.root)
	if c.CanPaste {
		c.CanPaste = s.clip.CanPasteInto(s.root, c.Primary)
	}
	return c
}

// AvailableOps reports the structural edits legal for the primary selection.
func (s *Session) AvailableOps() edit.Ops {
	s.mu.Lock()
	defer s.mu.Unlock()
	return edit.AvailableOps(s.root, s.sel.Primary())
}

// SetProperty writes key=value on id immediately as one history step.
func (s *Session) SetProperty(id, key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ed.UpdateProperty(s.root, id, key, value, s.opts.Validator)
}

// SetProperties writes patch on id as one history step.
func (s *Session) SetProperties(id string, patch domain.Props) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ed.UpdateProperties(s.root, id, patch, s.opts.Validator)
}

func (s *Session) RemoveProperty(id, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ed.RemoveProperty(s.root, id, key)
}

// SetMetadata writes untracked metadata such as the last drop position.
func (s *Session) SetMetadata(id, key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return edit.SetMetadata(s.root, id, key, value)
}

// QueueProperty schedules a write for the next batch flush. Writes to the
// same node and key collapse to the last value.
func (s *Session) QueueProperty(id, key string, value any) bool {
	return s.sched.Enqueue(id, key, value)
}

// FlushPending applies queued writes now and returns them.
func (s *Session) FlushPending() []batch.Update {
	return s.sched.Flush()
}

func (s *Session) PendingWrites() int { return s.sched.Pending() }

// dispatch applies a flushed batch: one history step per node, in first-write
// order. Writes to vanished nodes or rejected by the validator are dropped.
func (s *Session) dispatch(updates []batch.Update) {
	var order []string
	patches := map[string]*domain.Props{}
	for _, u := range updates {
		p := patches[u.NodeID]
		if p == nil {
			p = &domain.Props{}
			patches[u.NodeID] = p
			order = append(order, u.NodeID)
		}
		p.Set(u.Key, u.Value)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := 0
	for _, id := range order {
		if s.ed.UpdateProperties(s.root, id, *patches[id], s.opts.Validator) {
			applied++
		}
	}
	s.log.Debug("batch applied", slog.Int("writes", len(updates)), slog.Int("nodes", len(order)), slog.Int("applied", applied))
}

// MoveSelectedUp moves the primary selection one position up.
func (s *Session) MoveSelectedUp() *undo.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ed.MoveUp(s.root, s.sel.Primary())
}

func (s *Session) MoveSelectedDown() *undo.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ed.MoveDown(s.root, s.sel.Primary())
}

// IndentSelected makes the primary the last child of its previous sibling.
func (s *Session) IndentSelected() *undo.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ed.Indent(s.root, s.sel.Primary())
}

func (s *Session) OutdentSelected() *undo.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ed.Outdent(s.root, s.sel.Primary())
}

// MoveSelected moves the selected subtrees under newParentID at index as one
// history step. Moving under a selected node's own descendant is rejected.
func (s *Session) MoveSelected(newParentID string, index int) (*undo.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := s.sel.SelectedNodes(s.root)
	if len(nodes) == 0 {
		return nil, ErrNoSelection
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	e, err := s.ed.MoveManyAt(s.root, ids, newParentID, index)
	if err != nil {
		s.log.Warn("move rejected", slog.String("target", newParentID), slog.Any("err", err))
	}
	return e, err
}

// DeleteSelected removes the selected subtrees as one history step.
func (s *Session) DeleteSelected() (*undo.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.sel.AllSelectedIDs()
	if len(ids) == 0 {
		return nil, ErrNoSelection
	}
	e, err := s.ed.DeleteMany(s.root, ids)
	if err != nil {
		s.log.Warn("delete rejected", slog.Any("err", err))
		return nil, err
	}
	s.afterStructural()
	return e, nil
}

// Insert adds b under parentID at index (out of range appends) and selects it.
func (s *Session) Insert(parentID string, index int, b *domain.Block) (*undo.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.ed.Insert(s.root, parentID, index, b)
	if err != nil {
		return nil, err
	}
	s.sel.Select(b.ID)
	return e, nil
}

// CopySelected puts the selected subtrees on the clipboard.
func (s *Session) CopySelected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := s.sel.SelectedNodes(s.root)
	return s.clipErr("copy", s.clip.Copy(nodes, s.sel.Primary()))
}

// CutSelected marks the selected subtrees for removal on the next paste. The
// root cannot be cut.
func (s *Session) CutSelected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := s.sel.SelectedNodes(s.root)
	for _, n := range nodes {
		if n == s.root {
			return s.clipErr("cut", edit.ErrRootMove)
		}
	}
	var parent *domain.Block
	if len(nodes) > 0 {
		parent = tree.ParentOf(s.root, nodes[0].ID)
	}
	return s.clipErr("cut", s.clip.Cut(nodes, parent))
}

// PasteIntoSelected pastes the clipboard under the primary selection at index
// and selects the pasted nodes. The paste is recorded in the shared history
// too, so Undo reverts it like any other edit.
func (s *Session) PasteIntoSelected(index int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.sel.Primary()
	if target == "" {
		return nil, ErrNoSelection
	}
	res, err := s.clip.Paste(s.root, target, index)
	if err != nil {
		return nil, s.clipErr("paste", err)
	}
	s.ed.Record(res.Entry)
	s.afterStructural()
	s.selectAll(res.IDs)
	return res.IDs, nil
}

// DuplicateSelected inserts copies of the selected subtrees next to them and
// selects the copies.
func (s *Session) DuplicateSelected() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := s.sel.SelectedNodes(s.root)
	for _, n := range nodes {
		if n == s.root {
			return nil, s.clipErr("duplicate", edit.ErrRootMove)
		}
	}
	res, err := s.clip.Duplicate(s.root, nodes, nil)
	if err != nil {
		return nil, s.clipErr("duplicate", err)
	}
	s.ed.Record(res.Entry)
	s.selectAll(res.IDs)
	return res.IDs, nil
}

// CancelCut keeps the clipboard content but leaves the cut originals alone.
func (s *Session) CancelCut() {
	s.mu.Lock()
	s.clip.CancelCut()
	s.mu.Unlock()
}

func (s *Session) ClipboardState() clipboard.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clip.State()
}

// WasNodeCut reports whether id is a pending cut original.
func (s *Session) WasNodeCut(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clip.WasNodeCut(id)
}

// ClipboardExport returns the clipboard content as text for other sessions.
func (s *Session) ClipboardExport() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clip.ExportText()
}

// ClipboardImport loads text produced by ClipboardExport.
func (s *Session) ClipboardImport(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clip.ImportText(text)
}

// ClipboardUndo reverses the latest clipboard operation. A paste or duplicate
// is reverted in the tree only while it is the newest shared history entry;
// with later edits on top it is rejected with ErrPasteNotNewest. When the
// shared history already undid it, or evicted it, only the clipboard contents
// are restored. Either way its shared history entry is dropped.
func (s *Session) ClipboardUndo() (clipboard.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	top, ok := s.clip.Peek()
	if !ok {
		return clipboard.Record{}, false, nil
	}
	var seq uint64
	if top.Entry != nil {
		seq = top.Entry.Seq
		switch s.ed.History().Locate(seq) {
		case undo.StackUndo:
			return clipboard.Record{}, false, s.clipErr("clipboard undo", fmt.Errorf("%w: %s", ErrPasteNotNewest, top.Op))
		case undo.StackRedo, undo.StackNone:
			s.clip.MarkTreeApplied(seq, false)
		}
	}
	rec, ok, err := s.clip.Undo(s.root)
	if err != nil || !ok {
		return rec, ok, err
	}
	if seq != 0 {
		s.ed.History().Remove(seq)
		s.afterStructural()
	}
	return rec, true, nil
}

// Undo reverts the newest shared history entry.
func (s *Session) Undo() (*undo.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.ed.Undo(s.root)
	if e != nil {
		s.clip.MarkTreeApplied(e.Seq, false)
		s.afterStructural()
	}
	return e, err
}

func (s *Session) Redo() (*undo.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.ed.Redo(s.root)
	if e != nil {
		s.clip.MarkTreeApplied(e.Seq, true)
		s.afterStructural()
	}
	return e, err
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ed.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ed.CanRedo()
}

func (s *Session) selectAll(ids []string) {
	s.sel.Deselect()
	for _, id := range ids {
		s.sel.AddToSelection(id)
	}
}

// clipErr logs invariant rejections at warn level and passes err through.
func (s *Session) clipErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if edit.IsRejection(err) || errors.Is(err, clipboard.ErrEmpty) || errors.Is(err, clipboard.ErrSelfPaste) || errors.Is(err, clipboard.ErrNothingToCopy) || errors.Is(err, ErrPasteNotNewest) {
		s.log.Warn(op+" rejected", slog.Any("err", err))
	}
	return err
}
