/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package rendercache keeps the last rendered output per node, valid only
// while the node's content hash is unchanged.
package rendercache

import (
	"container/list"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"cardcanvas/internal/domain"
)

// ContentHash hashes a node's kind, its props in order and the ids of its
// children in order. Grandchildren do not contribute.
func ContentHash(n *domain.Block) uint64 {
	if n == nil {
		return 0
	}
	d := xxhash.New()
	writeField(d, []byte(n.Kind))
	props, err := json.Marshal(n.Props)
	if err != nil {
		// unencodable values still hash by key order
		props = []byte(fmt.Sprint(n.Props.Keys()))
	}
	writeField(d, props)
	for _, c := range n.Children {
		if c != nil {
			writeField(d, []byte(c.ID))
		}
	}
	return d.Sum64()
}

// writeField length-prefixes b so adjacent fields cannot run together.
func writeField(d *xxhash.Digest, b []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = d.Write(n[:])
	_, _ = d.Write(b)
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Size          int     `json:"size"`
	Capacity      int     `json:"capacity"`
	Occupancy     float64 `json:"occupancy"`
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Evictions     uint64  `json:"evictions"`
	Invalidations uint64  `json:"invalidations"`
	HitRate       float64 `json:"hitRate"`
}

type entry[T any] struct {
	id   string
	hash uint64
	out  T
}

// Cache is an LRU of rendered output keyed by node id and bounded by entry
// count.
type Cache[T any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
	disabled bool

	hits, misses, evictions, invalidations uint64
}

// New returns a cache holding at most capacity entries (minimum 1).
func New[T any](capacity int) *Cache[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[T]{capacity: capacity, order: list.New(), items: make(map[string]*list.Element)}
}

// Get returns the cached output for node when its current content hash
// matches the one stored at Put time. A stale entry is dropped.
func (c *Cache[T]) Get(node *domain.Block) (T, bool) {
	var zero T
	if node == nil {
		return zero, false
	}
	h := ContentHash(node)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		c.misses++
		return zero, false
	}
	el, ok := c.items[node.ID]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*entry[T])
	if e.hash != h {
		c.removeElement(el)
		c.invalidations++
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return e.out, true
}

// Put stores out for node under its current content hash.
func (c *Cache[T]) Put(node *domain.Block, out T) {
	if node == nil {
		return
	}
	h := ContentHash(node)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}
	if el, ok := c.items[node.ID]; ok {
		e := el.Value.(*entry[T])
		e.hash, e.out = h, out
		c.order.MoveToFront(el)
		return
	}
	c.items[node.ID] = c.order.PushFront(&entry[T]{id: node.ID, hash: h, out: out})
	for c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
		c.evictions++
	}
}

// Invalidate drops the entry for id.
func (c *Cache[T]) Invalidate(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		return false
	}
	c.removeElement(el)
	c.invalidations++
	return true
}

// Prune drops entries whose ids are not in live and returns how many.
func (c *Cache[T]) Prune(live map[string]struct{}) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, el := range c.items {
		if _, ok := live[id]; !ok {
			c.removeElement(el)
			n++
		}
	}
	c.invalidations += uint64(n)
	return n
}

// Clear empties the cache and keeps the counters.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// SetEnabled turns the cache on or off. Disabling clears it; while disabled
// every Get misses and Put is ignored.
func (c *Cache[T]) SetEnabled(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = !on
	if !on {
		c.order.Init()
		c.items = make(map[string]*list.Element)
	}
}

func (c *Cache[T]) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disabled
}

func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Size:          c.order.Len(),
		Capacity:      c.capacity,
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Invalidations: c.invalidations,
	}
	s.Occupancy = float64(s.Size) / float64(s.Capacity)
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *Cache[T]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[T]).id)
}
