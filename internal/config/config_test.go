/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the config file at a temp dir so the user's file never leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigFile, p)
	return p
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.HistoryLimit != 100 || cfg.Engine.CacheCapacity != 500 || cfg.Engine.RowHeight != 32 {
		t.Fatalf("unexpected defaults: %#v", cfg.Engine)
	}
	if cfg.Engine.HistoryCoalesceMs != 0 {
		t.Fatalf("coalescing must default to off")
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	p := isolate(t)
	cfg := Defaults()
	cfg.Engine.HistoryLimit = 7
	cfg.Engine.SystemClipboard = true
	cfg.Storage.KeepBackups = 3
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Engine.HistoryLimit != 7 || !got.Engine.SystemClipboard || got.Storage.KeepBackups != 3 {
		t.Fatalf("saved values not loaded: %#v", got)
	}
}

func TestLoadIgnoresMalformedFile(t *testing.T) {
	p := isolate(t)
	if err := os.WriteFile(p, []byte("engine: [not a map"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.HistoryLimit != Defaults().Engine.HistoryLimit {
		t.Fatalf("malformed file should leave defaults")
	}
}

func TestPartialFileKeepsOtherDefaults(t *testing.T) {
	p := isolate(t)
	if err := os.WriteFile(p, []byte("engine:\n  overscan: 9\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, _ := Load()
	if cfg.Engine.Overscan != 9 || cfg.Engine.BatchMax != 50 || cfg.Engine.MaxCacheOccupancy != 0.9 {
		t.Fatalf("partial merge wrong: %#v", cfg.Engine)
	}
}

func TestEnvOverridesEngine(t *testing.T) {
	isolate(t)
	t.Setenv(EnvHistoryLimit, "12")
	t.Setenv(EnvBatchWindowMs, "40")
	t.Setenv(EnvSystemClipboard, "yes")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.HistoryLimit != 12 || cfg.Engine.BatchWindow() != 40*time.Millisecond || !cfg.Engine.SystemClipboard {
		t.Fatalf("engine env overrides not applied: %#v", cfg.Engine)
	}
	if name, ok := EnvOverrideFor("engine.history_limit"); !ok || name != EnvHistoryLimit {
		t.Fatalf("EnvOverrideFor = %q %v", name, ok)
	}
	if _, ok := EnvOverrideFor("engine.overscan"); ok {
		t.Fatalf("overscan has no env override")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/ccv.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/ccv.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
	o := dst.Logging.LogOptions()
	if o.Level != "debug" || o.Format != "json" || !o.AddSource || o.File != "C:/tmp/ccv.log" {
		t.Fatalf("LogOptions mismatch: %#v", o)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/ccv.log")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/ccv.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestDurations(t *testing.T) {
	e := Defaults().Engine
	if e.MaxFrameTime() != 16700*time.Microsecond {
		t.Fatalf("MaxFrameTime = %v", e.MaxFrameTime())
	}
	if e.CoalesceWindow() != 0 {
		t.Fatalf("CoalesceWindow = %v", e.CoalesceWindow())
	}
	e.BatchWindowMs = 0
	if e.BatchWindow() != 16*time.Millisecond {
		t.Fatalf("BatchWindow fallback = %v", e.BatchWindow())
	}
}
