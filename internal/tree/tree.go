/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tree provides lookup, traversal, statistics and structural
// validation over a block tree. Absence is a normal outcome: lookups return
// nil or -1 rather than errors.
package tree

import (
	"cardcanvas/internal/domain"
)

// WalkFunc is called for every node in pre-order. parent is nil for the root.
// Returning false skips the node's children.
type WalkFunc func(node, parent *domain.Block, depth int) bool

// Walk visits the subtree rooted at root in depth-first pre-order.
func Walk(root *domain.Block, fn WalkFunc) {
	if root == nil {
		return
	}
	walk(root, nil, 0, fn)
}

func walk(n, parent *domain.Block, depth int, fn WalkFunc) {
	if !fn(n, parent, depth) {
		return
	}
	for _, c := range n.Children {
		if c != nil {
			walk(c, n, depth+1, fn)
		}
	}
}

// locate returns the node with id together with its parent and index in the parent.
func locate(root *domain.Block, id string) (node, parent *domain.Block, idx int) {
	if root == nil {
		return nil, nil, -1
	}
	if root.ID == id {
		return root, nil, -1
	}
	for i, c := range root.Children {
		if c == nil {
			continue
		}
		if c.ID == id {
			return c, root, i
		}
		if n, p, j := locate(c, id); n != nil {
			return n, p, j
		}
	}
	return nil, nil, -1
}

// Find returns the node with id, or nil.
func Find(root *domain.Block, id string) *domain.Block {
	n, _, _ := locate(root, id)
	return n
}

// ParentOf returns the parent of the node with id, or nil for the root and unknown ids.
func ParentOf(root *domain.Block, id string) *domain.Block {
	_, p, _ := locate(root, id)
	return p
}

// Locate returns the node, its parent and its index among the parent's children.
// For the root, parent is nil and idx is -1. For unknown ids node is nil.
func Locate(root *domain.Block, id string) (node, parent *domain.Block, idx int) {
	return locate(root, id)
}

// IndexInParent returns the node's position among its parent's children, or -1
// for the root and for absent ids.
func IndexInParent(root *domain.Block, id string) int {
	n, parent, idx := locate(root, id)
	if n == nil || parent == nil {
		return -1
	}
	return idx
}

// Path returns the chain of nodes from root to the node with id (inclusive), or nil.
func Path(root *domain.Block, id string) []*domain.Block {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return []*domain.Block{root}
	}
	for _, c := range root.Children {
		if c == nil {
			continue
		}
		if p := Path(c, id); p != nil {
			return append([]*domain.Block{root}, p...)
		}
	}
	return nil
}

// Depth returns the distance from root to the node with id, or -1.
func Depth(root *domain.Block, id string) int {
	return len(Path(root, id)) - 1
}

// Contains reports whether a node with id exists in the subtree.
func Contains(root *domain.Block, id string) bool { return Find(root, id) != nil }

// IsAncestor reports whether ancestorID is a strict ancestor of id.
func IsAncestor(root *domain.Block, ancestorID, id string) bool {
	anc := Find(root, ancestorID)
	if anc == nil || ancestorID == id {
		return false
	}
	for _, c := range anc.Children {
		if c != nil && Contains(c, id) {
			return true
		}
	}
	return false
}

// IDs returns every id in the subtree in pre-order.
func IDs(root *domain.Block) []string {
	var out []string
	Walk(root, func(n, _ *domain.Block, _ int) bool {
		out = append(out, n.ID)
		return true
	})
	return out
}

// IDSet returns every id in the subtree as a set.
func IDSet(root *domain.Block) map[string]struct{} {
	out := map[string]struct{}{}
	Walk(root, func(n, _ *domain.Block, _ int) bool {
		out[n.ID] = struct{}{}
		return true
	})
	return out
}

// Stats summarizes a tree.
type Stats struct {
	Total    int
	Leaves   int
	MaxDepth int
	ByKind   map[string]int
}

// TreeStats computes node count, leaf count, max depth and a per-kind histogram
// in a single traversal.
func TreeStats(root *domain.Block) Stats {
	s := Stats{ByKind: map[string]int{}}
	Walk(root, func(n, _ *domain.Block, depth int) bool {
		s.Total++
		if n.IsLeaf() {
			s.Leaves++
		}
		if depth > s.MaxDepth {
			s.MaxDepth = depth
		}
		s.ByKind[n.Kind]++
		return true
	})
	return s
}
