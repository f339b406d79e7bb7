/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render converts the block tree into the flat, id-addressed node graph
// consumed by the rendering surface, and back. The graph is a derived
// projection: it is regenerated after structural changes and never edited by hand.
package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/tree"
)

var (
	ErrNilRoot        = errors.New("render: nil root")
	ErrEmptyID        = errors.New("render: empty id")
	ErrDuplicateID    = errors.New("render: duplicate id")
	ErrDuplicateSlot  = errors.New("render: duplicate slot")
	ErrMissingNode    = errors.New("render: referenced node missing")
	ErrParentMismatch = errors.New("render: parent mismatch")
	ErrCycle          = errors.New("render: cycle")
)

// RenderNode is one display node. Parent is an id, never a pointer.
type RenderNode struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	DisplayName string         `json:"displayName"`
	IsCanvas    bool           `json:"isCanvas"`
	Props       domain.Props   `json:"props"`
	Custom      map[string]any `json:"custom,omitempty"`
	// Nodes lists every child id in document order.
	Nodes []string `json:"nodes"`
	// LinkedNodes indexes slotted children by slot name; each id also appears in Nodes.
	LinkedNodes map[string]string `json:"linkedNodes,omitempty"`
	Parent      string            `json:"parent,omitempty"`
	Depth       int               `json:"depth"`
}

// Graph is the id-addressed render graph.
type Graph struct {
	Root  string                 `json:"root"`
	Nodes map[string]*RenderNode `json:"nodes"`
}

// Node returns the render node with id, or nil.
func (g *Graph) Node(id string) *RenderNode {
	if g == nil {
		return nil
	}
	return g.Nodes[id]
}

// Children returns the ordered child nodes of id; unknown ids yield nil.
func (g *Graph) Children(id string) []*RenderNode {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	out := make([]*RenderNode, 0, len(n.Nodes))
	for _, cid := range n.Nodes {
		if c := g.Nodes[cid]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Nodes)
}

// ToGraph derives the render graph from a block tree. A nil catalog is treated
// as an empty StaticCatalog. A node is a canvas when the catalog says so or when
// it already has children.
func ToGraph(root *domain.Block, cat Catalog) (*Graph, error) {
	if root == nil {
		return nil, ErrNilRoot
	}
	if cat == nil {
		cat = StaticCatalog{}
	}
	g := &Graph{Root: root.ID, Nodes: make(map[string]*RenderNode)}
	var add func(b *domain.Block, parent string, depth int) error
	add = func(b *domain.Block, parent string, depth int) error {
		if b == nil {
			return fmt.Errorf("%w: nil child under %s", ErrMissingNode, parent)
		}
		if strings.TrimSpace(b.ID) == "" {
			return fmt.Errorf("%w (kind %s)", ErrEmptyID, b.Kind)
		}
		if _, dup := g.Nodes[b.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
		}
		n := &RenderNode{
			ID:          b.ID,
			Type:        b.Kind,
			DisplayName: cat.DisplayName(b.Kind),
			IsCanvas:    cat.IsCanvas(b.Kind) || len(b.Children) > 0,
			Props:       b.Props.Clone(),
			Nodes:       make([]string, 0, len(b.Children)),
			Parent:      parent,
			Depth:       depth,
		}
		if b.Metadata != nil {
			n.Custom = make(map[string]any, len(b.Metadata))
			for k, v := range b.Metadata {
				n.Custom[k] = domain.CloneValue(v)
			}
		}
		g.Nodes[b.ID] = n
		for _, c := range b.Children {
			if err := add(c, b.ID, depth+1); err != nil {
				return err
			}
			n.Nodes = append(n.Nodes, c.ID)
			if c.Slot != "" {
				if n.LinkedNodes == nil {
					n.LinkedNodes = make(map[string]string)
				}
				if _, taken := n.LinkedNodes[c.Slot]; taken {
					return fmt.Errorf("%w: %s.%s", ErrDuplicateSlot, b.ID, c.Slot)
				}
				n.LinkedNodes[c.Slot] = c.ID
			}
		}
		return nil
	}
	if err := add(root, "", 0); err != nil {
		return nil, err
	}
	return g, nil
}

// ToBlock rebuilds the block tree from a render graph. Linked nodes that are
// missing from the ordered child list are appended after it, in slot-name order.
func ToBlock(g *Graph) (*domain.Block, error) {
	if g == nil || g.Nodes[g.Root] == nil {
		return nil, ErrNilRoot
	}
	seen := make(map[string]bool, len(g.Nodes))
	var build func(id, parent string) (*domain.Block, error)
	build = func(id, parent string) (*domain.Block, error) {
		n := g.Nodes[id]
		if n == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingNode, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w at %s", ErrCycle, id)
		}
		seen[id] = true
		if n.Parent != parent {
			return nil, fmt.Errorf("%w: %s claims parent %q, listed under %q", ErrParentMismatch, id, n.Parent, parent)
		}
		b := &domain.Block{ID: n.ID, Kind: n.Type, Props: n.Props.Clone()}
		if n.Custom != nil {
			b.Metadata = make(map[string]any, len(n.Custom))
			for k, v := range n.Custom {
				b.Metadata[k] = domain.CloneValue(v)
			}
		}
		order := childOrder(n)
		if len(order) > 0 {
			b.Children = make([]*domain.Block, 0, len(order))
		}
		slotOf := make(map[string]string, len(n.LinkedNodes))
		for slot, cid := range n.LinkedNodes {
			slotOf[cid] = slot
		}
		for _, cid := range order {
			c, err := build(cid, id)
			if err != nil {
				return nil, err
			}
			c.Slot = slotOf[cid]
			b.Children = append(b.Children, c)
		}
		return b, nil
	}
	return build(g.Root, "")
}

// childOrder reconciles the two addressing schemes into one ordered child list.
func childOrder(n *RenderNode) []string {
	order := append([]string(nil), n.Nodes...)
	if len(n.LinkedNodes) == 0 {
		return order
	}
	listed := make(map[string]bool, len(order))
	for _, id := range order {
		listed[id] = true
	}
	slots := make([]string, 0, len(n.LinkedNodes))
	for s := range n.LinkedNodes {
		slots = append(slots, s)
	}
	sort.Strings(slots)
	for _, s := range slots {
		if id := n.LinkedNodes[s]; !listed[id] {
			order = append(order, id)
			listed[id] = true
		}
	}
	return order
}

// Validate checks the graph invariants: one root, consistent parent links,
// no dangling references, acyclicity, reachability and cached depths.
func (g *Graph) Validate() []tree.Violation {
	if g == nil || g.Nodes[g.Root] == nil {
		return []tree.Violation{{Code: tree.CodeNilRoot, Message: "graph root missing"}}
	}
	var out []tree.Violation
	for id, n := range g.Nodes {
		if n.ID != id {
			out = append(out, tree.Violation{Code: tree.CodeParentLink, NodeID: id, Message: "map key differs from node id " + n.ID})
		}
		if n.Parent == "" && id != g.Root {
			out = append(out, tree.Violation{Code: tree.CodeMultipleRoots, NodeID: id, Message: "second parentless node"})
		}
	}
	seen := map[string]bool{}
	var visit func(id string, depth int, path map[string]bool)
	visit = func(id string, depth int, path map[string]bool) {
		n := g.Nodes[id]
		if path[id] {
			out = append(out, tree.Violation{Code: tree.CodeCycle, NodeID: id, Message: "node is its own ancestor"})
			return
		}
		if seen[id] {
			out = append(out, tree.Violation{Code: tree.CodeParentLink, NodeID: id, Message: "node listed under more than one parent"})
			return
		}
		seen[id] = true
		if n.Depth != depth {
			out = append(out, tree.Violation{Code: tree.CodeDepth, NodeID: id, Message: fmt.Sprintf("cached depth %d, actual %d", n.Depth, depth)})
		}
		path[id] = true
		defer delete(path, id)
		for _, cid := range childOrder(n) {
			c := g.Nodes[cid]
			if c == nil {
				out = append(out, tree.Violation{Code: tree.CodeDangling, NodeID: id, Message: "child " + cid + " missing"})
				continue
			}
			if c.Parent != id {
				out = append(out, tree.Violation{Code: tree.CodeParentLink, NodeID: cid, Message: "parent is " + c.Parent + ", listed under " + id})
			}
			visit(cid, depth+1, path)
		}
	}
	visit(g.Root, 0, map[string]bool{})
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, tree.Violation{Code: tree.CodeDangling, NodeID: id, Message: "unreachable from root"})
	}
	return out
}
