/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package perf samples frame times and derives a health verdict. It only
// reports; callers decide whether to degrade.
package perf

import (
	"math"
	"sort"
	"sync"
	"time"

	"cardcanvas/internal/rendercache"
)

// Thresholds are the pass/fail limits for Health.
type Thresholds struct {
	MaxFrameTime      time.Duration
	MinFPS            float64
	MaxCacheOccupancy float64
}

// DefaultThresholds targets 60 FPS with a 90% full cache.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxFrameTime: 16700 * time.Microsecond, MinFPS: 55, MaxCacheOccupancy: 0.9}
}

// Health is a verdict over the current samples.
type Health struct {
	OK             bool          `json:"ok"`
	Samples        int           `json:"samples"`
	FPS            float64       `json:"fps"`
	AvgFrame       time.Duration `json:"avgFrame"`
	P95Frame       time.Duration `json:"p95Frame"`
	CacheOccupancy float64       `json:"cacheOccupancy"`
	SlowFrames     bool          `json:"slowFrames"`
	CacheFull      bool          `json:"cacheFull"`
}

// Advice is a suggested rendering mode derived from Health.
type Advice struct {
	UseCache    bool          `json:"useCache"`
	Overscan    int           `json:"overscan"`
	BatchWindow time.Duration `json:"batchWindow"`
}

// Monitor keeps the most recent frame times in a ring buffer.
type Monitor struct {
	mu    sync.Mutex
	th    Thresholds
	ring  []time.Duration
	next  int
	count int
	now   func() time.Time
}

// NewMonitor keeps up to size samples (default 120).
func NewMonitor(size int, th Thresholds) *Monitor {
	if size <= 0 {
		size = 120
	}
	return &Monitor{th: th, ring: make([]time.Duration, size), now: time.Now}
}

func (m *Monitor) Thresholds() Thresholds { return m.th }

// RecordFrame adds one frame time sample; negative durations are ignored.
func (m *Monitor) RecordFrame(d time.Duration) {
	if d < 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ring[m.next] = d
	m.next = (m.next + 1) % len(m.ring)
	if m.count < len(m.ring) {
		m.count++
	}
}

// StartFrame starts timing a frame; the returned func records it.
func (m *Monitor) StartFrame() func() time.Duration {
	start := m.now()
	return func() time.Duration {
		d := m.now().Sub(start)
		m.RecordFrame(d)
		return d
	}
}

// Samples returns the retained samples, oldest first.
func (m *Monitor) Samples() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samplesLocked()
}

func (m *Monitor) samplesLocked() []time.Duration {
	out := make([]time.Duration, 0, m.count)
	start := (m.next - m.count + len(m.ring)) % len(m.ring)
	for i := 0; i < m.count; i++ {
		out = append(out, m.ring[(start+i)%len(m.ring)])
	}
	return out
}

// AverageFrameTime is the mean of the retained samples.
func (m *Monitor) AverageFrameTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return average(m.samplesLocked())
}

// FPS derives frames per second from the average frame time. It is 0 without
// samples and capped at 1000 for zero-length frames.
func (m *Monitor) FPS() float64 {
	return fps(m.AverageFrameTime(), m.Samples())
}

// Percentile returns the nearest-rank p-th percentile (0..100) frame time.
func (m *Monitor) Percentile(p float64) time.Duration {
	return percentile(m.Samples(), p)
}

// Health checks the samples and cache stats against the thresholds. With no
// samples only the cache check applies.
func (m *Monitor) Health(cache rendercache.Stats) Health {
	s := m.Samples()
	avg := average(s)
	h := Health{
		Samples:        len(s),
		FPS:            fps(avg, s),
		AvgFrame:       avg,
		P95Frame:       percentile(s, 95),
		CacheOccupancy: cache.Occupancy,
	}
	if len(s) > 0 {
		h.SlowFrames = (m.th.MaxFrameTime > 0 && h.P95Frame > m.th.MaxFrameTime) ||
			(m.th.MinFPS > 0 && h.FPS < m.th.MinFPS)
	}
	h.CacheFull = m.th.MaxCacheOccupancy > 0 && cache.Occupancy > m.th.MaxCacheOccupancy
	h.OK = !h.SlowFrames && !h.CacheFull
	return h
}

// Advise maps a verdict to a rendering mode given the normal overscan and
// batch window. Slow frames widen both; a full cache is bypassed.
func Advise(h Health, overscan int, window time.Duration) Advice {
	a := Advice{UseCache: !h.CacheFull, Overscan: overscan, BatchWindow: window}
	if h.SlowFrames {
		a.Overscan = overscan * 2
		a.BatchWindow = window * 2
	}
	return a
}

// Reset drops all samples.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next, m.count = 0, 0
}

func average(s []time.Duration) time.Duration {
	if len(s) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range s {
		sum += d
	}
	return sum / time.Duration(len(s))
}

func fps(avg time.Duration, s []time.Duration) float64 {
	if len(s) == 0 {
		return 0
	}
	if avg <= time.Millisecond {
		return 1000
	}
	return float64(time.Second) / float64(avg)
}

func percentile(s []time.Duration, p float64) time.Duration {
	if len(s) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), s...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(rank, len(sorted)-1))]
}
