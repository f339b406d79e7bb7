/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardcanvas/internal/domain"
)

func sampleDoc(label string) *domain.Block {
	return &domain.Block{ID: "root", Kind: "Card", Props: domain.NewProps("title", label),
		Children: []*domain.Block{
			{ID: "t", Kind: "Text", Props: domain.NewProps("text", "front")},
			{ID: "s", Kind: "Stack", Children: []*domain.Block{{ID: "b", Kind: "Button"}}},
		}}
}

func TestSaveAndOpen_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.card.json")
	if err := SaveFile(path, sampleDoc("v1")); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.FromBackup != "" {
		t.Fatalf("unexpected backup fallback: %s", h.FromBackup)
	}
	if !domain.Equal(sampleDoc("v1"), h.Root) {
		t.Fatalf("round trip mismatch")
	}
	// first save has nothing to back up
	if bs, _ := ListBackups(path); len(bs) != 0 {
		t.Fatalf("expected no backups after first save, got %v", bs)
	}
}

func TestSave_CreatesBackupOfPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.card.json")
	if err := SaveFile(path, sampleDoc("v1")); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if err := SaveFile(path, sampleDoc("v2")); err != nil {
		t.Fatalf("save v2: %v", err)
	}
	bs, err := ListBackups(path)
	if err != nil || len(bs) != 1 {
		t.Fatalf("ListBackups got %v err %v", bs, err)
	}
	data, err := os.ReadFile(bs[0])
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !strings.Contains(string(data), `"v1"`) {
		t.Fatalf("backup should hold the previous version")
	}
	// no temp files left behind
	ents, _ := os.ReadDir(dir)
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}

func TestOpen_FallsBackToLatestValidBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.card.json")
	if err := SaveFile(path, sampleDoc("v1")); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if err := SaveFile(path, sampleDoc("v2")); err != nil {
		t.Fatalf("save v2: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.FromBackup == "" {
		t.Fatalf("expected backup fallback")
	}
	if v, _ := h.Root.Props.Get("title"); v != "v1" {
		t.Fatalf("expected v1 from backup, got %v", v)
	}
}

func TestOpen_SkipsInvalidBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.card.json")
	if err := SaveFile(path, sampleDoc("good")); err != nil {
		t.Fatalf("save: %v", err)
	}
	good, _ := os.ReadFile(path)
	bdir := BackupsDir(path)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	older := filepath.Join(bdir, "deck.card.json.20250101-000000.bak")
	newer := filepath.Join(bdir, "deck.card.json.20250102-000000.bak")
	_ = os.WriteFile(older, good, 0o644)
	// duplicate ids: parses but fails validation
	_ = os.WriteFile(newer, []byte(`{"format":"cardcanvas/document","version":1,"root":{"id":"r","kind":"Card","children":[{"id":"x","kind":"T"},{"id":"x","kind":"T"}]}}`), 0o644)
	_ = os.Remove(path)

	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.FromBackup != older {
		t.Fatalf("expected fallback to %s, got %s", older, h.FromBackup)
	}
}

func TestOpen_NoDocumentNoBackups(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatalf("expected error for missing document without backups")
	}
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for blank path")
	}
}

func TestSave_RejectsInvalidTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	bad := &domain.Block{ID: "r", Kind: "Card", Children: []*domain.Block{{ID: "x", Kind: "T"}, {ID: "x", Kind: "T"}}}
	if err := SaveFile(path, bad); err == nil {
		t.Fatalf("expected encode error for duplicate ids")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("invalid tree must not be written")
	}
	if err := Save(nil); err == nil {
		t.Fatalf("expected error for nil handle")
	}
}

func TestSaveAs_UpdatesHandle(t *testing.T) {
	dir := t.TempDir()
	h := &DocumentHandle{Path: filepath.Join(dir, "a.json"), Root: sampleDoc("a"), FromBackup: "x"}
	target := filepath.Join(dir, "sub", "b.json")
	if err := SaveAs(h, target); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if h.Path != target || h.FromBackup != "" {
		t.Fatalf("handle not updated: %+v", h)
	}
	if _, err := LoadFile(target); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
}

func TestPruneBackups_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.json")
	bdir := BackupsDir(path)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stamps := []string{"20250101-000000", "20250102-000000", "20250103-000000", "20250104-000000"}
	for _, s := range stamps {
		_ = os.WriteFile(filepath.Join(bdir, "deck.json."+s+".bak"), []byte("x"), 0o644)
	}
	// unrelated files are ignored
	_ = os.WriteFile(filepath.Join(bdir, "other.json.20250101-000000.bak"), []byte("x"), 0o644)

	n, err := PruneBackups(path, 2)
	if err != nil || n != 2 {
		t.Fatalf("PruneBackups removed %d err %v", n, err)
	}
	left, _ := ListBackups(path)
	if len(left) != 2 || !strings.Contains(left[0], stamps[2]) || !strings.Contains(left[1], stamps[3]) {
		t.Fatalf("unexpected remaining backups: %v", left)
	}
}

func TestAutosaveCrashSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.json")
	out, err := AutosaveCrashSnapshot(path, sampleDoc("crash"))
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot: %v", err)
	}
	if filepath.Dir(out) != BackupsDir(path) || !strings.HasSuffix(out, crashSuffix) {
		t.Fatalf("unexpected crash snapshot path %s", out)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("document itself must not be written")
	}
	data, _ := os.ReadFile(out)
	if !strings.Contains(string(data), `"crash"`) {
		t.Fatalf("crash snapshot content missing")
	}
	// crash snapshots are not regular backups
	if bs, _ := ListBackups(path); len(bs) != 0 {
		t.Fatalf("crash snapshot listed as backup: %v", bs)
	}
}
