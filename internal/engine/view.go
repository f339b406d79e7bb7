/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"log/slog"
	"time"

	"cardcanvas/internal/perf"
	"cardcanvas/internal/rendercache"
	"cardcanvas/internal/tree"
	"cardcanvas/internal/virtual"
)

// RenderFunc draws one row. Its result is cached per node until the node's
// props or child list change, or the row's parent, depth or collapsed state.
type RenderFunc func(row virtual.Row) any

// rowOutput is a cached render with the row placement it was drawn for.
type rowOutput struct {
	parentID  string
	depth     int
	collapsed bool
	out       any
}

func (o rowOutput) matches(r virtual.Row) bool {
	return o.parentID == r.ParentID && o.depth == r.Depth && o.collapsed == r.Collapsed
}

// Rendered is one drawn row of a Frame.
type Rendered struct {
	Row    virtual.Row
	Output any
	Cached bool
}

// Frame is the outcome of one Visible call.
type Frame struct {
	Range       virtual.Range
	Rows        []Rendered
	Hits        int
	Misses      int
	TotalHeight int
	Elapsed     time.Duration
}

// Rows flattens the tree, skipping the children of collapsed nodes.
func (s *Session) Rows() *virtual.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flatten()
}

func (s *Session) flatten() *virtual.List {
	ids := make([]string, 0, len(s.collapsed))
	for id := range s.collapsed {
		ids = append(ids, id)
	}
	return virtual.Flatten(s.root, virtual.WithCollapsed(ids...))
}

// SetCollapsed hides or shows the children of id in Rows and Visible.
func (s *Session) SetCollapsed(id string, collapsed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !tree.Contains(s.root, id) {
		return false
	}
	if collapsed {
		s.collapsed[id] = struct{}{}
	} else {
		delete(s.collapsed, id)
	}
	return true
}

// ScrollOffsetFor returns the scroll offset that brings id to the top of the
// viewport, or -1 when it is not a visible row.
func (s *Session) ScrollOffsetFor(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flatten().ScrollOffsetFor(id, s.opts.RowHeight)
}

// Visible renders the rows in the viewport plus overscan. Unchanged nodes come
// from the cache; the frame's duration is recorded in the monitor. fn must not
// call back into the session.
func (s *Session) Visible(scrollOffset, viewportHeight int, fn RenderFunc) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	stop := s.mon.StartFrame()
	list := s.flatten()
	r := list.VisibleRangeWithOverscan(scrollOffset, viewportHeight, s.opts.RowHeight, s.overscan)
	f := Frame{Range: r, TotalHeight: list.TotalHeight(s.opts.RowHeight)}
	rows := list.Slice(r)
	f.Rows = make([]Rendered, 0, len(rows))
	for _, row := range rows {
		if c, ok := s.cache.Get(row.Node); ok && c.matches(row) {
			f.Rows = append(f.Rows, Rendered{Row: row, Output: c.out, Cached: true})
			f.Hits++
			continue
		}
		var out any
		if fn != nil {
			out = fn(row)
		}
		s.cache.Put(row.Node, rowOutput{parentID: row.ParentID, depth: row.Depth, collapsed: row.Collapsed, out: out})
		f.Rows = append(f.Rows, Rendered{Row: row, Output: out})
		f.Misses++
	}
	f.Elapsed = stop()
	return f
}

// Health evaluates recorded frames and cache occupancy.
func (s *Session) Health() perf.Health {
	return s.mon.Health(s.cache.Stats())
}

func (s *Session) CacheStats() rendercache.Stats { return s.cache.Stats() }

func (s *Session) Monitor() *perf.Monitor { return s.mon }

// Tune applies the monitor's advice: slow frames widen the overscan and batch
// window, a full cache is bypassed. Once bypassed the cache stays off until
// frames recorded since then are healthy. Healthy frames restore the
// configured values.
func (s *Session) Tune() perf.Advice {
	s.mu.Lock()
	stats := s.cache.Stats()
	if s.bypassed != nil {
		stats = *s.bypassed
	}
	h := s.mon.Health(stats)
	if s.bypassed != nil && h.Samples > 0 && !h.SlowFrames {
		h = s.mon.Health(s.cache.Stats())
	}
	a := perf.Advise(h, s.opts.Overscan, s.opts.BatchWindow)
	switch {
	case !a.UseCache && s.bypassed == nil:
		s.bypassed = &stats
		s.mon.Reset()
	case a.UseCache:
		s.bypassed = nil
	}
	s.overscan = a.Overscan
	s.mu.Unlock()
	s.cache.SetEnabled(a.UseCache)
	if a.BatchWindow > 0 {
		s.sched.SetWindow(a.BatchWindow)
	}
	if !h.OK {
		s.log.Info("render degraded", slog.Bool("cache", a.UseCache), slog.Int("overscan", a.Overscan), slog.Duration("window", a.BatchWindow))
	}
	return a
}
