/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package selection tracks which nodes of a tree the user has targeted and
// derives which edits are currently legal. It never mutates the tree.
package selection

import (
	"cardcanvas/internal/domain"
	"cardcanvas/internal/tree"
)

// Manager holds an ordered set of selected ids plus a primary id used by
// single-target operations.
type Manager struct {
	ids     []string
	set     map[string]struct{}
	primary string
}

func New() *Manager { return &Manager{set: map[string]struct{}{}} }

// Select replaces the selection with id.
func (m *Manager) Select(id string) {
	m.Deselect()
	if id == "" {
		return
	}
	m.add(id)
	m.primary = id
}

// Deselect clears the selection.
func (m *Manager) Deselect() {
	m.ids = nil
	m.set = map[string]struct{}{}
	m.primary = ""
}

// AddToSelection adds id and makes it primary.
func (m *Manager) AddToSelection(id string) {
	if id == "" {
		return
	}
	m.add(id)
	m.primary = id
}

// Toggle adds id when absent and removes it otherwise.
func (m *Manager) Toggle(id string) {
	if m.IsSelected(id) {
		m.Remove(id)
		return
	}
	m.AddToSelection(id)
}

// Remove drops id. If it was primary, the most recently added remaining id
// becomes primary.
func (m *Manager) Remove(id string) {
	if _, ok := m.set[id]; !ok {
		return
	}
	delete(m.set, id)
	for i, s := range m.ids {
		if s == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	if m.primary == id {
		m.primary = ""
		if n := len(m.ids); n > 0 {
			m.primary = m.ids[n-1]
		}
	}
}

func (m *Manager) add(id string) {
	if m.set == nil {
		m.set = map[string]struct{}{}
	}
	if _, ok := m.set[id]; ok {
		return
	}
	m.set[id] = struct{}{}
	m.ids = append(m.ids, id)
}

func (m *Manager) IsSelected(id string) bool {
	_, ok := m.set[id]
	return ok
}

func (m *Manager) Len() int { return len(m.ids) }
func (m *Manager) Primary() string { return m.primary }

// AllSelectedIDs returns the selection in the order ids were added.
func (m *Manager) AllSelectedIDs() []string { return append([]string(nil), m.ids...) }

// Prune drops ids no longer present in root and returns how many were dropped.
func (m *Manager) Prune(root *domain.Block) int {
	live := tree.IDSet(root)
	dropped := 0
	for _, id := range m.AllSelectedIDs() {
		if _, ok := live[id]; !ok {
			m.Remove(id)
			dropped++
		}
	}
	return dropped
}

// SelectedNodes returns the selected nodes present in root in document order,
// leaving out nodes nested under another selected node.
func (m *Manager) SelectedNodes(root *domain.Block) []*domain.Block {
	var out []*domain.Block
	tree.Walk(root, func(n, _ *domain.Block, _ int) bool {
		if m.IsSelected(n.ID) {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// Context describes which edits the current selection allows.
type Context struct {
	Count        int    `json:"count"`
	Primary      string `json:"primary,omitempty"`
	IncludesRoot bool   `json:"includesRoot"`
	Missing      int    `json:"missing"`
	CanDelete    bool   `json:"canDelete"`
	CanDuplicate bool   `json:"canDuplicate"`
	CanMove      bool   `json:"canMove"`
	CanCopy      bool   `json:"canCopy"`
	CanCut       bool   `json:"canCut"`
	// CanPaste reports whether the primary node can receive pasted children;
	// the clipboard must also hold content.
	CanPaste bool `json:"canPaste"`
}

// Context derives the editing context for root without mutating anything.
// Ids that vanished from the tree count as Missing and block every edit.
func (m *Manager) Context(root *domain.Block) Context {
	c := Context{Count: len(m.ids), Primary: m.primary}
	live := tree.IDSet(root)
	for _, id := range m.ids {
		if _, ok := live[id]; !ok {
			c.Missing++
		}
		if root != nil && id == root.ID {
			c.IncludesRoot = true
		}
	}
	if c.Count == 0 || c.Missing > 0 {
		return c
	}
	c.CanCopy = true
	c.CanPaste = m.primary != ""
	if c.IncludesRoot {
		return c
	}
	c.CanDelete = true
	c.CanDuplicate = true
	c.CanMove = true
	c.CanCut = true
	return c
}
