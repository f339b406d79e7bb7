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

	"cardcanvas/internal/clipboard"
	"cardcanvas/internal/config"
	"cardcanvas/internal/domain"
	"cardcanvas/internal/edit"
	"cardcanvas/internal/perf"
	"cardcanvas/internal/render"
	"cardcanvas/internal/storage"
	"cardcanvas/internal/undo"
)

// Options configures a Session. Zero values fall back to the defaults of the
// owning component.
type Options struct {
	// ID names the session in logs and journal checkpoints (default: a UUID).
	ID string
	// DocumentPath is where the document lives; "" for an unsaved document.
	DocumentPath string
	Catalog      render.Catalog
	History      undo.Config

	ClipboardHistory int
	// System mirrors copies to the OS clipboard when set.
	System clipboard.SystemClipboard
	NewID  domain.IDGenerator

	CacheCapacity int
	BatchMax      int
	BatchWindow   time.Duration
	FrameSamples  int
	Thresholds    perf.Thresholds
	RowHeight     int
	Overscan      int

	// Validator vets every property write; nil accepts everything.
	Validator edit.Validator
	// Journal receives checkpoints; optional.
	Journal *storage.Journal
	Logger  *slog.Logger
}

// DefaultOptions mirrors config.Defaults().
func DefaultOptions() Options {
	return FromConfig(config.Defaults().Engine)
}

// FromConfig converts the engine section of the user config.
func FromConfig(c config.EngineConfig) Options {
	o := Options{
		History: undo.Config{
			MaxEntries:     c.HistoryLimit,
			MaxBytes:       c.HistoryMaxBytes,
			CoalesceWindow: c.CoalesceWindow(),
		},
		ClipboardHistory: c.ClipboardHistory,
		CacheCapacity:    c.CacheCapacity,
		BatchMax:         c.BatchMax,
		BatchWindow:      c.BatchWindow(),
		FrameSamples:     c.FrameSamples,
		Thresholds: perf.Thresholds{
			MaxFrameTime:      c.MaxFrameTime(),
			MinFPS:            c.MinFPS,
			MaxCacheOccupancy: c.MaxCacheOccupancy,
		},
		RowHeight: c.RowHeight,
		Overscan:  c.Overscan,
	}
	if c.SystemClipboard {
		o.System = clipboard.OSClipboard{}
	}
	return o
}

func (o *Options) fill() {
	if o.ID == "" {
		o.ID = domain.NewID()
	}
	if o.Catalog == nil {
		o.Catalog = render.StaticCatalog{}
	}
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = 500
	}
	if o.FrameSamples <= 0 {
		o.FrameSamples = 120
	}
	if o.Thresholds == (perf.Thresholds{}) {
		o.Thresholds = perf.DefaultThresholds()
	}
	if o.RowHeight <= 0 {
		o.RowHeight = 32
	}
	if o.Overscan < 0 {
		o.Overscan = 0
	}
}
