/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package batch coalesces rapid property writes. Writes to the same node and
// key within one batch collapse to the last value.
package batch

import (
	"sync"
	"time"
)

// Update is one queued property write.
type Update struct {
	NodeID string
	Key    string
	Value  any
}

// Config configures a Scheduler.
type Config struct {
	// MaxBatch flushes as soon as this many distinct writes are queued
	// (default 50).
	MaxBatch int
	// Window is the idle time after the last enqueue before a flush
	// (default 16ms).
	Window time.Duration
	// Dispatch receives each flushed batch in first-enqueue order.
	Dispatch func([]Update)
}

type key struct{ node, prop string }

// Scheduler queues writes and flushes them on size or idle timeout. The idle
// timer is a single deferred callback that each enqueue resets.
type Scheduler struct {
	mu      sync.Mutex
	cfg     Config
	order   []key
	pending map[key]any
	timer   *time.Timer
	stopped bool
	flushes int
}

func New(cfg Config) *Scheduler {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 50
	}
	if cfg.Window <= 0 {
		cfg.Window = 16 * time.Millisecond
	}
	return &Scheduler{cfg: cfg, pending: map[key]any{}}
}

// Enqueue queues a write and restarts the idle window. It returns false after
// Stop.
func (s *Scheduler) Enqueue(nodeID, prop string, value any) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	k := key{nodeID, prop}
	if _, ok := s.pending[k]; !ok {
		s.order = append(s.order, k)
	}
	s.pending[k] = value
	if len(s.order) >= s.cfg.MaxBatch {
		batch := s.takeLocked()
		s.mu.Unlock()
		s.dispatch(batch)
		return true
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Window, s.onIdle)
	s.mu.Unlock()
	return true
}

// Flush cancels the idle timer and dispatches the queued writes now. It
// returns them as well.
func (s *Scheduler) Flush() []Update {
	s.mu.Lock()
	batch := s.takeLocked()
	s.mu.Unlock()
	s.dispatch(batch)
	return batch
}

// Pending returns the number of distinct queued writes.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Flushes counts dispatched non-empty batches.
func (s *Scheduler) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// SetWindow changes the idle window for subsequent enqueues.
func (s *Scheduler) SetWindow(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.cfg.Window = d
	s.mu.Unlock()
}

func (s *Scheduler) Window() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Window
}

// Stop flushes what is queued and rejects further writes.
func (s *Scheduler) Stop() []Update {
	s.mu.Lock()
	s.stopped = true
	batch := s.takeLocked()
	s.mu.Unlock()
	s.dispatch(batch)
	return batch
}

func (s *Scheduler) onIdle() {
	s.mu.Lock()
	batch := s.takeLocked()
	s.mu.Unlock()
	s.dispatch(batch)
}

func (s *Scheduler) takeLocked() []Update {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.order) == 0 {
		return nil
	}
	out := make([]Update, len(s.order))
	for i, k := range s.order {
		out[i] = Update{NodeID: k.node, Key: k.prop, Value: s.pending[k]}
	}
	s.order = nil
	s.pending = map[key]any{}
	s.flushes++
	return out
}

func (s *Scheduler) dispatch(batch []Update) {
	if len(batch) == 0 || s.cfg.Dispatch == nil {
		return
	}
	s.cfg.Dispatch(batch)
}
