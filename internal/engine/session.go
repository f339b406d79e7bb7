/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine composes the canvas document engine into one editing
// session: selection, property and structural edits with shared history,
// clipboard, and the virtualized render path with its cache, batch scheduler
// and frame monitor. A Session owns all of its state; nothing is global.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cardcanvas/internal/batch"
	"cardcanvas/internal/clipboard"
	"cardcanvas/internal/domain"
	"cardcanvas/internal/edit"
	applog "cardcanvas/internal/log"
	"cardcanvas/internal/perf"
	"cardcanvas/internal/render"
	"cardcanvas/internal/rendercache"
	"cardcanvas/internal/selection"
	"cardcanvas/internal/snapshot"
	"cardcanvas/internal/tree"
	"cardcanvas/internal/undo"
)

var (
	ErrNoSelection = errors.New("nothing selected")
	ErrNoJournal   = errors.New("session has no journal")
	// ErrPasteNotNewest rejects a clipboard undo of a paste that later edits
	// were made on top of.
	ErrPasteNotNewest = errors.New("paste is not the newest edit; undo later edits first")
)

// Session is one editing session over a template tree. Commands run on the
// caller's goroutine; the mutex only serializes them with the batch
// scheduler's idle flush.
type Session struct {
	mu sync.Mutex

	id   string
	path string
	root *domain.Block
	good *domain.Block

	opts     Options
	ed       *edit.Editor
	sel      *selection.Manager
	clip     *clipboard.Manager
	cache    *rendercache.Cache[rowOutput]
	sched    *batch.Scheduler
	mon      *perf.Monitor
	overscan int
	// bypassed holds the cache stats that made Tune switch the cache off.
	bypassed *rendercache.Stats

	collapsed map[string]struct{}
	log       *slog.Logger
}

// New starts a session on root, which must pass tree.Check. The session takes
// ownership of root.
func New(root *domain.Block, opts Options) (*Session, error) {
	if err := tree.Check(root); err != nil {
		return nil, err
	}
	opts.fill()
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("engine")
	}
	l = l.With(slog.String("session", opts.ID))
	s := &Session{
		id:        opts.ID,
		path:      opts.DocumentPath,
		root:      root,
		good:      root.Clone(),
		opts:      opts,
		ed:        edit.New(undo.NewManager(opts.History), l),
		sel:       selection.New(),
		clip:      clipboard.New(clipboard.Options{HistoryLimit: opts.ClipboardHistory, NewID: opts.NewID, System: opts.System, Logger: l}),
		cache:     rendercache.New[rowOutput](opts.CacheCapacity),
		mon:       perf.NewMonitor(opts.FrameSamples, opts.Thresholds),
		overscan:  opts.Overscan,
		collapsed: map[string]struct{}{},
		log:       l,
	}
	s.sched = batch.New(batch.Config{MaxBatch: opts.BatchMax, Window: opts.BatchWindow, Dispatch: s.dispatch})
	l.Debug("session started", slog.Int("nodes", tree.TreeStats(root).Total))
	return s, nil
}

func (s *Session) ID() string { return s.id }

// DocumentPath returns the document file; "" when unsaved.
func (s *Session) DocumentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *Session) SetDocumentPath(p string) {
	s.mu.Lock()
	s.path = p
	s.mu.Unlock()
}

// LastGood returns a copy of the last tree that passed validation.
func (s *Session) LastGood() *domain.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.good.Clone()
}

// Root returns a copy of the current tree.
func (s *Session) Root() *domain.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.Clone()
}

// Close flushes queued property writes and stops the scheduler.
func (s *Session) Close() {
	s.sched.Stop()
}

// Validate checks the tree. A valid tree becomes the last known-good copy; a
// corrupt one is logged and reported with an error wrapping tree.ErrCorrupt.
func (s *Session) Validate() []tree.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs := tree.Validate(s.root)
	if len(vs) == 0 {
		s.good = s.root.Clone()
		return nil
	}
	s.log.Error("tree corrupt", slog.Int("violations", len(vs)), slog.String("first", vs[0].String()))
	return vs
}

// Snapshot serializes the current tree for export.
func (s *Session) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.Encode(s.root)
}

// Reload replaces the tree, e.g. with the last known-good snapshot after
// corruption. History, selection, clipboard marks and cache are reset.
func (s *Session) Reload(root *domain.Block) error {
	if err := tree.Check(root); err != nil {
		return err
	}
	s.sched.Flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	s.good = root.Clone()
	s.ed.History().Clear()
	s.sel.Deselect()
	s.clip.CancelCut()
	s.cache.Clear()
	s.collapsed = map[string]struct{}{}
	s.log.Info("session reloaded", slog.Int("nodes", tree.TreeStats(root).Total))
	return nil
}

// Graph derives the render graph of the current tree.
func (s *Session) Graph() (*render.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return render.ToGraph(s.root, s.opts.Catalog)
}

// Stats summarizes the current tree.
func (s *Session) Stats() tree.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tree.TreeStats(s.root)
}

// Checkpoint stores the current tree in the journal.
func (s *Session) Checkpoint(ctx context.Context, label string) (int64, error) {
	if s.opts.Journal == nil {
		return 0, ErrNoJournal
	}
	s.mu.Lock()
	data, err := snapshot.Encode(s.root)
	nodes := tree.TreeStats(s.root).Total
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	ctx = applog.WithSession(ctx, s.id)
	id, err := s.opts.Journal.Checkpoint(ctx, s.id, label, nodes, data, time.Now())
	if err != nil {
		s.log.ErrorContext(ctx, "checkpoint failed", slog.Any("err", err))
		return 0, err
	}
	s.log.DebugContext(ctx, "checkpoint stored", slog.Int64("id", id), slog.String("label", label))
	return id, nil
}

// RestoreCheckpoint reloads the newest journal checkpoint of session (this
// session when empty). It reports false when there is none.
func (s *Session) RestoreCheckpoint(ctx context.Context, session string) (bool, error) {
	if s.opts.Journal == nil {
		return false, ErrNoJournal
	}
	if session == "" {
		session = s.id
	}
	c, ok, err := s.opts.Journal.Latest(ctx, session)
	if err != nil || !ok {
		return false, err
	}
	root, err := snapshot.DecodeRoot(c.Blob)
	if err != nil {
		return false, fmt.Errorf("checkpoint %d: %w", c.ID, err)
	}
	return true, s.Reload(root)
}

// afterStructural drops selection entries and cache entries for nodes that no
// longer exist. Callers hold mu.
func (s *Session) afterStructural() {
	live := tree.IDSet(s.root)
	s.sel.Prune(s.root)
	s.cache.Prune(live)
	for id := range s.collapsed {
		if _, ok := live[id]; !ok {
			delete(s.collapsed, id)
		}
	}
}
