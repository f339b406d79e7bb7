/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package clipboard implements copy, cut, paste and duplicate over block
// subtrees. Pasted and duplicated subtrees always get fresh ids, and a paste
// target inside the held subtrees is rejected.
package clipboard

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/edit"
	applog "cardcanvas/internal/log"
	"cardcanvas/internal/tree"
	"cardcanvas/internal/undo"
)

var (
	ErrNothingToCopy  = errors.New("nothing to copy")
	ErrEmpty          = errors.New("clipboard is empty")
	ErrSelfPaste      = errors.New("paste target is one of the held nodes")
	ErrTargetNotFound = errors.New("paste target not found")
)

// State is the clipboard's holding state.
type State int

const (
	Empty State = iota
	HoldingCopy
	HoldingCut
)

func (s State) String() string {
	switch s {
	case HoldingCopy:
		return "holding-copy"
	case HoldingCut:
		return "holding-cut"
	default:
		return "empty"
	}
}

// Options configures a Manager.
type Options struct {
	// HistoryLimit bounds the clipboard's own operation history (default 50).
	HistoryLimit int
	// NewID generates ids for pasted nodes (default domain.NewID).
	NewID domain.IDGenerator
	// System, when set, mirrors copied content to the OS clipboard.
	System SystemClipboard
	Logger *slog.Logger
	Now    func() time.Time
}

// Result describes a successful paste or duplicate.
type Result struct {
	// IDs are the fresh ids of the inserted top-level nodes, in order.
	IDs []string
	// Entry is the tree change, suitable for the shared edit history. Its Seq
	// matches the clipboard history record.
	Entry undo.Entry
}

// contents is everything Undo needs to restore the clipboard itself.
type contents struct {
	state    State
	held     []*domain.Block
	sourceID string
	cutFrom  string
	marked   map[string]struct{}
}

// Manager holds clipboard contents and the clipboard's own history.
type Manager struct {
	contents
	history []Record
	limit   int
	seq     uint64
	newID   domain.IDGenerator
	sys     SystemClipboard
	log     *slog.Logger
	now     func() time.Time
}

func New(opts Options) *Manager {
	m := &Manager{limit: opts.HistoryLimit, newID: opts.NewID, sys: opts.System, log: opts.Logger, now: opts.Now}
	if m.limit <= 0 {
		m.limit = 50
	}
	if m.newID == nil {
		m.newID = domain.NewID
	}
	if m.log == nil {
		m.log = applog.WithComponent("clipboard")
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func (m *Manager) State() State { return m.state }
func (m *Manager) HasContent() bool { return len(m.held) > 0 }
func (m *Manager) SourceID() string { return m.sourceID }
func (m *Manager) WasNodeCut(id string) bool {
	_, ok := m.marked[id]
	return ok
}

// Content returns copies of the held subtrees, with their original ids.
func (m *Manager) Content() []*domain.Block { return cloneAll(m.held) }

// GetCutNodes returns the ids of the cut originals awaiting removal.
func (m *Manager) GetCutNodes() []string {
	if m.state != HoldingCut {
		return nil
	}
	out := make([]string, 0, len(m.held))
	for _, h := range m.held {
		out = append(out, h.ID)
	}
	return out
}

// Copy snapshots the given subtrees. Nodes nested inside another given node
// are dropped. A pending cut is abandoned: its originals are unmarked and left
// in place.
func (m *Manager) Copy(nodes []*domain.Block, sourceID string) error {
	top := topMost(nodes)
	if len(top) == 0 {
		return ErrNothingToCopy
	}
	before := m.snapshot()
	m.abandonCut()
	m.held = cloneAll(top)
	m.state = HoldingCopy
	m.sourceID = sourceID
	m.cutFrom = ""
	m.push(OpCopy, before, sourceID, heldIDs(m.held), nil)
	m.mirror()
	m.log.Debug("copied", slog.Int("nodes", len(m.held)), slog.String("source", sourceID))
	return nil
}

// Cut is Copy plus marking the originals for removal on the next paste.
func (m *Manager) Cut(nodes []*domain.Block, parent *domain.Block) error {
	top := topMost(nodes)
	if len(top) == 0 {
		return ErrNothingToCopy
	}
	before := m.snapshot()
	m.abandonCut()
	m.held = cloneAll(top)
	m.state = HoldingCut
	m.sourceID = ""
	m.cutFrom = ""
	if parent != nil {
		m.sourceID = parent.ID
		m.cutFrom = parent.ID
	}
	m.marked = map[string]struct{}{}
	for _, h := range m.held {
		m.marked[h.ID] = struct{}{}
	}
	m.push(OpCut, before, m.sourceID, heldIDs(m.held), nil)
	m.mirror()
	m.log.Debug("cut", slog.Int("nodes", len(m.held)), slog.String("parent", m.cutFrom))
	return nil
}

// CancelCut unmarks the cut originals; the held content stays as a copy.
func (m *Manager) CancelCut() {
	if m.state != HoldingCut {
		return
	}
	m.abandonCut()
	m.state = HoldingCopy
}

// Clear empties the clipboard and unmarks any cut originals. History is kept.
func (m *Manager) Clear() {
	m.abandonCut()
	m.contents = contents{}
}

func (m *Manager) abandonCut() {
	if len(m.marked) > 0 {
		m.log.Debug("cut abandoned", slog.Int("nodes", len(m.marked)))
	}
	m.marked = nil
}

// ValidatePasteTarget rejects a target that is one of the excluded ids.
func ValidatePasteTarget(target *domain.Block, excluded map[string]struct{}) error {
	if target == nil {
		return ErrTargetNotFound
	}
	if _, bad := excluded[target.ID]; bad {
		return fmt.Errorf("%w: %s", ErrSelfPaste, target.ID)
	}
	return nil
}

// CanPasteInto reports whether Paste into targetID would be accepted.
func (m *Manager) CanPasteInto(root *domain.Block, targetID string) bool {
	if !m.HasContent() {
		return false
	}
	return ValidatePasteTarget(tree.Find(root, targetID), m.excluded()) == nil
}

// Paste inserts fresh-id copies of the held subtrees under targetID at index
// (out of range appends). Pasting a cut also removes the originals in the same
// step and turns the clipboard into a copy. The tree is unchanged on error.
func (m *Manager) Paste(root *domain.Block, targetID string, index int) (Result, error) {
	if !m.HasContent() {
		return Result{}, ErrEmpty
	}
	target := tree.Find(root, targetID)
	if err := ValidatePasteTarget(target, m.excluded()); err != nil {
		return Result{}, err
	}
	if index < 0 || index > len(target.Children) {
		index = len(target.Children)
	}

	var steps []undo.Entry
	if m.state == HoldingCut {
		ids := m.liveCutIDs(root)
		if len(ids) > 0 {
			removals, err := edit.RemoveEntries(root, ids)
			if err != nil {
				return Result{}, err
			}
			for _, r := range removals {
				if r.From.ParentID == target.ID && r.From.Index < index {
					index--
				}
			}
			steps = append(steps, removals...)
		}
	}
	inserts, ids := m.insertSteps(target.ID, index, m.held)
	steps = append(steps, inserts...)

	e := undo.Group("paste", steps...)
	if err := edit.Apply(root, e); err != nil {
		return Result{}, err
	}
	e.Seq = m.nextSeq()
	before := m.snapshot()
	if m.state == HoldingCut {
		m.marked = nil
		m.state = HoldingCopy
		m.cutFrom = ""
	}
	m.push(OpPaste, before, targetID, ids, &e)
	m.log.Debug("pasted", slog.Int("nodes", len(ids)), slog.String("target", targetID))
	return Result{IDs: ids, Entry: e}, nil
}

// Duplicate inserts fresh-id copies of nodes next to the originals without
// touching the clipboard contents. With a parent, copies go after the last of
// the nodes that are its children (or at its end); without one, each group of
// siblings is followed by its copies.
func (m *Manager) Duplicate(root *domain.Block, nodes []*domain.Block, parent *domain.Block) (Result, error) {
	top := topMost(nodes)
	if len(top) == 0 {
		return Result{}, ErrNothingToCopy
	}
	type group struct {
		parentID string
		after    int
		nodes    []*domain.Block
	}
	var groups []*group
	byParent := map[string]*group{}
	for _, n := range top {
		p, idx := parent, -1
		if p == nil {
			_, p, idx = tree.Locate(root, n.ID)
		} else {
			idx = p.ChildIndex(n.ID)
		}
		if p == nil {
			if tree.Contains(root, n.ID) {
				return Result{}, edit.ErrRootMove
			}
			return Result{}, fmt.Errorf("%w: %s", edit.ErrNotFound, n.ID)
		}
		g := byParent[p.ID]
		if g == nil {
			g = &group{parentID: p.ID, after: -1}
			byParent[p.ID] = g
			groups = append(groups, g)
		}
		if idx > g.after {
			g.after = idx
		}
		g.nodes = append(g.nodes, n)
	}

	var steps []undo.Entry
	var ids []string
	for _, g := range groups {
		at := g.after + 1
		if g.after < 0 {
			at = -1
			if p := tree.Find(root, g.parentID); p != nil {
				at = len(p.Children)
			}
		}
		s, gi := m.insertSteps(g.parentID, at, g.nodes)
		steps = append(steps, s...)
		ids = append(ids, gi...)
	}
	e := undo.Group("duplicate", steps...)
	if err := edit.Apply(root, e); err != nil {
		return Result{}, err
	}
	e.Seq = m.nextSeq()
	m.push(OpDuplicate, m.snapshot(), "", ids, &e)
	m.log.Debug("duplicated", slog.Int("nodes", len(ids)))
	return Result{IDs: ids, Entry: e}, nil
}

func (m *Manager) nextSeq() uint64 {
	m.seq++
	return m.seq
}

// insertSteps clones src with fresh ids into consecutive positions from index.
func (m *Manager) insertSteps(parentID string, index int, src []*domain.Block) ([]undo.Entry, []string) {
	steps := make([]undo.Entry, 0, len(src))
	ids := make([]string, 0, len(src))
	for i, h := range src {
		c := h.CloneWithNewIDs(m.newID)
		c.Slot = ""
		steps = append(steps, undo.Entry{
			Kind:    undo.KindInsert,
			Label:   "paste",
			NodeID:  c.ID,
			To:      undo.Position{ParentID: parentID, Index: index + i},
			Subtree: c,
		})
		ids = append(ids, c.ID)
	}
	return steps, ids
}

// excluded returns every id inside the held subtrees.
func (m *Manager) excluded() map[string]struct{} {
	out := map[string]struct{}{}
	for _, h := range m.held {
		for id := range tree.IDSet(h) {
			out[id] = struct{}{}
		}
	}
	return out
}

// liveCutIDs returns the cut originals still present in root.
func (m *Manager) liveCutIDs(root *domain.Block) []string {
	var out []string
	for _, h := range m.held {
		if tree.Contains(root, h.ID) {
			out = append(out, h.ID)
		}
	}
	return out
}

func (m *Manager) snapshot() contents {
	c := m.contents
	c.held = cloneAll(m.held)
	if m.marked != nil {
		c.marked = make(map[string]struct{}, len(m.marked))
		for k := range m.marked {
			c.marked[k] = struct{}{}
		}
	}
	return c
}

// topMost drops nil nodes, repeats and nodes nested inside another given node.
func topMost(nodes []*domain.Block) []*domain.Block {
	inside := map[string]bool{}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			for id := range tree.IDSet(c) {
				inside[id] = true
			}
		}
	}
	seen := map[string]bool{}
	var out []*domain.Block
	for _, n := range nodes {
		if n == nil || inside[n.ID] || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out
}

func cloneAll(in []*domain.Block) []*domain.Block {
	if in == nil {
		return nil
	}
	out := make([]*domain.Block, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}

func heldIDs(in []*domain.Block) []string {
	out := make([]string, len(in))
	for i, b := range in {
		out[i] = b.ID
	}
	return out
}
