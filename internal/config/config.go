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
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "cardcanvas/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

// EngineConfig sizes the editing session's history, clipboard, cache, batching
// and diagnostics.
type EngineConfig struct {
	HistoryLimit      int     `yaml:"history_limit"`
	HistoryMaxBytes   int     `yaml:"history_max_bytes"`
	HistoryCoalesceMs int     `yaml:"history_coalesce_ms"` // 0 = off
	ClipboardHistory  int     `yaml:"clipboard_history"`
	SystemClipboard   bool    `yaml:"system_clipboard"`
	CacheCapacity     int     `yaml:"cache_capacity"`
	BatchWindowMs     int     `yaml:"batch_window_ms"`
	BatchMax          int     `yaml:"batch_max"`
	FrameSamples      int     `yaml:"frame_samples"`
	MaxFrameMs        float64 `yaml:"max_frame_ms"`
	MinFPS            float64 `yaml:"min_fps"`
	MaxCacheOccupancy float64 `yaml:"max_cache_occupancy"`
	RowHeight         int     `yaml:"row_height"`
	Overscan          int     `yaml:"overscan"`
}

type StorageConfig struct {
	KeepBackups     int `yaml:"keep_backups"`
	KeepCheckpoints int `yaml:"keep_checkpoints"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Engine        EngineConfig  `yaml:"engine"`
	Storage       StorageConfig `yaml:"storage"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Engine: EngineConfig{
			HistoryLimit:      100,
			HistoryMaxBytes:   8 * 1024 * 1024,
			ClipboardHistory:  50,
			CacheCapacity:     500,
			BatchWindowMs:     16,
			BatchMax:          50,
			FrameSamples:      120,
			MaxFrameMs:        16.7,
			MinFPS:            55,
			MaxCacheOccupancy: 0.9,
			RowHeight:         32,
			Overscan:          5,
		},
		Storage: StorageConfig{KeepBackups: 10, KeepCheckpoints: 20},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile      = "CCV_CONFIG_FILE"
	EnvHistoryLimit    = "CCV_HISTORY_LIMIT"
	EnvCacheCapacity   = "CCV_CACHE_CAPACITY"
	EnvBatchWindowMs   = "CCV_BATCH_WINDOW_MS"
	EnvSystemClipboard = "CCV_SYSTEM_CLIPBOARD"
	EnvKeepCheckpoints = "CCV_KEEP_CHECKPOINTS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "CCV_LOG_LEVEL"
	EnvLogFormat = "CCV_LOG_FORMAT"
	EnvLogSource = "CCV_LOG_SOURCE"
	EnvLogFile   = "CCV_LOG_FILE"
)

// ConfigPath returns the per-user config file path. CCV_CONFIG_FILE wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "CardCanvas")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "CardCanvas")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "cardcanvas")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and merges
// environment overrides. A malformed file is ignored.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	e, s := &dst.Engine, src.Engine
	setInt(&e.HistoryLimit, s.HistoryLimit)
	setInt(&e.HistoryMaxBytes, s.HistoryMaxBytes)
	setInt(&e.HistoryCoalesceMs, s.HistoryCoalesceMs)
	setInt(&e.ClipboardHistory, s.ClipboardHistory)
	setInt(&e.CacheCapacity, s.CacheCapacity)
	setInt(&e.BatchWindowMs, s.BatchWindowMs)
	setInt(&e.BatchMax, s.BatchMax)
	setInt(&e.FrameSamples, s.FrameSamples)
	setInt(&e.RowHeight, s.RowHeight)
	setInt(&e.Overscan, s.Overscan)
	if s.MaxFrameMs > 0 {
		e.MaxFrameMs = s.MaxFrameMs
	}
	if s.MinFPS > 0 {
		e.MinFPS = s.MinFPS
	}
	if s.MaxCacheOccupancy > 0 {
		e.MaxCacheOccupancy = s.MaxCacheOccupancy
	}
	// booleans: copy directly from src (file) so user preferences persist
	e.SystemClipboard = s.SystemClipboard
	setInt(&dst.Storage.KeepBackups, src.Storage.KeepBackups)
	setInt(&dst.Storage.KeepCheckpoints, src.Storage.KeepCheckpoints)
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	envInt(EnvHistoryLimit, &cfg.Engine.HistoryLimit)
	envInt(EnvCacheCapacity, &cfg.Engine.CacheCapacity)
	envInt(EnvBatchWindowMs, &cfg.Engine.BatchWindowMs)
	envInt(EnvKeepCheckpoints, &cfg.Storage.KeepCheckpoints)
	if v := strings.TrimSpace(os.Getenv(EnvSystemClipboard)); v != "" {
		cfg.Engine.SystemClipboard = envBool(v)
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	var name string
	switch key {
	case "engine.history_limit":
		name = EnvHistoryLimit
	case "engine.cache_capacity":
		name = EnvCacheCapacity
	case "engine.batch_window_ms":
		name = EnvBatchWindowMs
	case "engine.system_clipboard":
		name = EnvSystemClipboard
	case "storage.keep_checkpoints":
		name = EnvKeepCheckpoints
	case "logging.level":
		name = EnvLogLevel
	case "logging.format":
		name = EnvLogFormat
	case "logging.source":
		name = EnvLogSource
	case "logging.file":
		name = EnvLogFile
	default:
		return "", false
	}
	if os.Getenv(name) != "" {
		return name, true
	}
	return "", false
}

// LogOptions converts the logging section into logger options.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}

// BatchWindow returns the idle flush window as a duration.
func (e EngineConfig) BatchWindow() time.Duration {
	if e.BatchWindowMs <= 0 {
		return time.Duration(Defaults().Engine.BatchWindowMs) * time.Millisecond
	}
	return time.Duration(e.BatchWindowMs) * time.Millisecond
}

// CoalesceWindow returns the history coalescing window; zero disables it.
func (e EngineConfig) CoalesceWindow() time.Duration {
	return time.Duration(e.HistoryCoalesceMs) * time.Millisecond
}

// MaxFrameTime returns the frame budget as a duration.
func (e EngineConfig) MaxFrameTime() time.Duration {
	ms := e.MaxFrameMs
	if ms <= 0 {
		ms = Defaults().Engine.MaxFrameMs
	}
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}
