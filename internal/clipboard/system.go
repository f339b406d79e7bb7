/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package clipboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	osclip "github.com/atotto/clipboard"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/tree"
)

// SystemClipboard is the OS text clipboard.
type SystemClipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// OSClipboard talks to the desktop clipboard.
type OSClipboard struct{}

func (OSClipboard) ReadAll() (string, error) { return osclip.ReadAll() }
func (OSClipboard) WriteAll(text string) error {
	if osclip.Unsupported {
		return errors.New("system clipboard unsupported")
	}
	return osclip.WriteAll(text)
}

const textFormat = "cardcanvas/blocks"

var ErrForeignText = errors.New("text is not a block clipboard payload")

type payload struct {
	Format  string          `json:"format"`
	Version int             `json:"version"`
	Source  string          `json:"source,omitempty"`
	Nodes   []*domain.Block `json:"nodes"`
}

// ExportText serializes the held subtrees for the system clipboard.
func (m *Manager) ExportText() (string, error) {
	if !m.HasContent() {
		return "", ErrEmpty
	}
	b, err := json.Marshal(payload{Format: textFormat, Version: 1, Source: m.sourceID, Nodes: m.held})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ImportText replaces the contents with subtrees from ExportText output. The
// result is held as a copy.
func (m *Manager) ImportText(text string) error {
	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil || p.Format != textFormat {
		return ErrForeignText
	}
	if len(p.Nodes) == 0 {
		return ErrNothingToCopy
	}
	for _, n := range p.Nodes {
		if err := tree.Check(n); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	before := m.snapshot()
	m.abandonCut()
	m.held = p.Nodes
	m.state = HoldingCopy
	m.sourceID = p.Source
	m.cutFrom = ""
	m.push(OpCopy, before, p.Source, heldIDs(m.held), nil)
	return nil
}

// SyncFromSystem imports the OS clipboard when it holds a block payload and
// reports whether it did.
func (m *Manager) SyncFromSystem() (bool, error) {
	if m.sys == nil {
		return false, nil
	}
	text, err := m.sys.ReadAll()
	if err != nil {
		return false, err
	}
	if err := m.ImportText(text); err != nil {
		if errors.Is(err, ErrForeignText) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// mirror writes the contents to the OS clipboard. Failures are logged only.
func (m *Manager) mirror() {
	if m.sys == nil {
		return
	}
	text, err := m.ExportText()
	if err == nil {
		err = m.sys.WriteAll(text)
	}
	if err != nil {
		m.log.Warn("system clipboard write failed", slog.Any("err", err))
	}
}
