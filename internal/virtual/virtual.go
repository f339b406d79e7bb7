/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package virtual linearizes a block tree into rows so a scrolled viewport can
// be resolved with index arithmetic instead of tree walks.
package virtual

import (
	"cardcanvas/internal/domain"
)

// Row is one visited node of a flattened tree.
type Row struct {
	Node     *domain.Block
	ParentID string
	Depth    int
	// Collapsed is set when the node has children that were not visited.
	Collapsed bool
}

// Range is an inclusive index range of rows. An empty range has Count 0 and
// End -1.
type Range struct {
	Start int `json:"startIndex"`
	End   int `json:"endIndex"`
	Count int `json:"visibleCount"`
}

// Option tunes Flatten.
type Option func(*flattenOpts)

type flattenOpts struct {
	collapsed map[string]bool
}

// WithCollapsed skips the children of the given ids.
func WithCollapsed(ids ...string) Option {
	return func(o *flattenOpts) {
		for _, id := range ids {
			o.collapsed[id] = true
		}
	}
}

// List is a flattened tree in depth-first pre-order.
type List struct {
	rows  []Row
	index map[string]int
}

// Flatten visits root once in depth-first pre-order.
func Flatten(root *domain.Block, opts ...Option) *List {
	o := flattenOpts{collapsed: map[string]bool{}}
	for _, fn := range opts {
		fn(&o)
	}
	l := &List{index: map[string]int{}}
	if root == nil {
		return l
	}
	var visit func(n *domain.Block, parentID string, depth int)
	visit = func(n *domain.Block, parentID string, depth int) {
		folded := o.collapsed[n.ID] && len(n.Children) > 0
		l.index[n.ID] = len(l.rows)
		l.rows = append(l.rows, Row{Node: n, ParentID: parentID, Depth: depth, Collapsed: folded})
		if folded {
			return
		}
		for _, c := range n.Children {
			if c != nil {
				visit(c, n.ID, depth+1)
			}
		}
	}
	visit(root, "", 0)
	return l
}

func (l *List) Len() int { return len(l.rows) }

// Rows returns the rows; callers must not modify the slice.
func (l *List) Rows() []Row { return l.rows }

// NodeAt returns the node at index, or nil when out of range.
func (l *List) NodeAt(i int) *domain.Block {
	if i < 0 || i >= len(l.rows) {
		return nil
	}
	return l.rows[i].Node
}

// RowAt returns the row at index.
func (l *List) RowAt(i int) (Row, bool) {
	if i < 0 || i >= len(l.rows) {
		return Row{}, false
	}
	return l.rows[i], true
}

// IndexOf returns the row index of id, or -1 when it is absent or hidden.
func (l *List) IndexOf(id string) int {
	if i, ok := l.index[id]; ok {
		return i
	}
	return -1
}

// VisibleRange returns the rows intersecting the viewport
// [scrollOffset, scrollOffset+viewportHeight).
func (l *List) VisibleRange(scrollOffset, viewportHeight, rowHeight int) Range {
	return VisibleRange(len(l.rows), scrollOffset, viewportHeight, rowHeight)
}

// VisibleRangeWithOverscan widens the visible range by overscan rows on each
// side, clamped to the list.
func (l *List) VisibleRangeWithOverscan(scrollOffset, viewportHeight, rowHeight, overscan int) Range {
	r := l.VisibleRange(scrollOffset, viewportHeight, rowHeight)
	if r.Count == 0 || overscan <= 0 {
		return r
	}
	r.Start = max(0, r.Start-overscan)
	r.End = min(len(l.rows)-1, r.End+overscan)
	r.Count = r.End - r.Start + 1
	return r
}

// Slice returns the rows of r.
func (l *List) Slice(r Range) []Row {
	if r.Count == 0 {
		return nil
	}
	return l.rows[r.Start : r.End+1]
}

// TotalHeight is the scrollable content height.
func (l *List) TotalHeight(rowHeight int) int {
	return len(l.rows) * normRow(rowHeight)
}

// ScrollOffsetFor returns the offset that puts id at the top of the viewport,
// or -1 when id is not a row.
func (l *List) ScrollOffsetFor(id string, rowHeight int) int {
	i := l.IndexOf(id)
	if i < 0 {
		return -1
	}
	return i * normRow(rowHeight)
}

// VisibleRange computes the inclusive row range for n rows of rowHeight seen
// through a viewport. It guarantees 0 <= Start <= End < n and
// Count == End-Start+1, or an empty range when n is 0. Non-positive row heights
// count as 1; negative offsets and heights count as 0.
func VisibleRange(n, scrollOffset, viewportHeight, rowHeight int) Range {
	if n <= 0 {
		return Range{Start: 0, End: -1, Count: 0}
	}
	rh := normRow(rowHeight)
	scrollOffset = max(0, scrollOffset)
	viewportHeight = max(0, viewportHeight)

	start := min(scrollOffset/rh, n-1)
	end := start
	if viewportHeight > 0 {
		end = (scrollOffset + viewportHeight - 1) / rh
	}
	end = min(max(end, start), n-1)
	return Range{Start: start, End: end, Count: end - start + 1}
}

func normRow(h int) int {
	if h <= 0 {
		return 1
	}
	return h
}
