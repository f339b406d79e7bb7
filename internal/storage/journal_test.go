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
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestJournal_CheckpointCRUD(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	j, err := OpenJournal(dir)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	defer j.Close()

	if _, ok, err := j.Latest(ctx, "s1"); err != nil || ok {
		t.Fatalf("Latest on empty journal ok=%v err=%v", ok, err)
	}
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	if _, err := j.Checkpoint(ctx, "s1", "first", 3, []byte("hello"), base); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	c, ok, err := j.Latest(ctx, "s1")
	if err != nil || !ok || string(c.Blob) != "hello" || c.Label != "first" || c.Nodes != 3 {
		t.Fatalf("Latest got %+v ok=%v err=%v", c, ok, err)
	}
	if !c.TS.Equal(base) {
		t.Fatalf("timestamp mismatch: %v", c.TS)
	}
	for i := 0; i < 5; i++ {
		b := []byte{byte('a' + i)}
		if _, err := j.Checkpoint(ctx, "s1", "", 1, b, base.Add(time.Duration(i+1)*time.Millisecond)); err != nil {
			t.Fatalf("Checkpoint %d: %v", i, err)
		}
	}
	if _, err := j.Checkpoint(ctx, "s2", "", 1, []byte("other"), base); err != nil {
		t.Fatalf("Checkpoint s2: %v", err)
	}
	list, err := j.List(ctx, "s1", 10)
	if err != nil || len(list) != 6 {
		t.Fatalf("List got %d err %v", len(list), err)
	}
	if string(list[0].Blob) != "e" {
		t.Fatalf("expected newest first, got %q", list[0].Blob)
	}
	n, err := j.Prune(ctx, "s1", 3)
	if err != nil || n != 3 {
		t.Fatalf("Prune removed %d err %v", n, err)
	}
	list, _ = j.List(ctx, "s1", 10)
	if len(list) != 3 {
		t.Fatalf("expected 3 after prune, got %d", len(list))
	}
	counts, order, err := j.Sessions(ctx)
	if err != nil || counts["s1"] != 3 || counts["s2"] != 1 || len(order) != 2 {
		t.Fatalf("Sessions got %v %v err %v", counts, order, err)
	}
	if _, err := j.Checkpoint(ctx, "", "", 0, nil, base); err == nil {
		t.Fatalf("expected error for empty session")
	}
}

func TestJournal_UpgradeV1ToV2(t *testing.T) {
	dir := t.TempDir()
	path := JournalPath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mk .ccv: %v", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
		`CREATE TABLE IF NOT EXISTS checkpoints (id INTEGER PRIMARY KEY AUTOINCREMENT, session TEXT NOT NULL, ts TEXT NOT NULL, label TEXT, nodes INTEGER NOT NULL DEFAULT 0, blob BLOB NOT NULL);`,
		`INSERT INTO checkpoints(session, ts, label, nodes, blob) VALUES('old', '2020-01-01T00:00:00Z', NULL, 1, x'6869');`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	_ = db.Close()

	j, err := OpenJournal(dir)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	defer j.Close()
	v, err := j.SchemaVersion(ctx)
	if err != nil || v < 2 {
		t.Fatalf("expected schema >= 2 after migration, got %d err %v", v, err)
	}
	var cnt int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_checkpoints_session_ts'`).Scan(&cnt); err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected checkpoint index after migration, got %d", cnt)
	}
	// existing rows survive, NULL label reads as empty
	c, ok, err := j.Latest(ctx, "old")
	if err != nil || !ok || string(c.Blob) != "hi" || c.Label != "" {
		t.Fatalf("Latest after migration got %+v ok=%v err=%v", c, ok, err)
	}
}

func TestJournal_FreshStartsAtCurrentSchema(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	defer j.Close()
	v, err := j.SchemaVersion(context.Background())
	if err != nil || v != schemaVersion {
		t.Fatalf("schema got %d err %v", v, err)
	}
	if _, err := OpenJournal(" "); err == nil {
		t.Fatalf("expected error for blank dir")
	}
}

func TestOpenOrResetJournal_OnCorruption(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(dir)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	_ = j.Close()
	path := JournalPath(dir)
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	if err := os.WriteFile(path, []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	j, reset, err := OpenOrResetJournal(ctx, dir)
	if err != nil {
		t.Fatalf("OpenOrResetJournal: %v", err)
	}
	defer j.Close()
	if !reset {
		t.Fatalf("expected reset to occur")
	}
	if _, err := j.Checkpoint(ctx, "s", "", 0, []byte("ok"), time.Now()); err != nil {
		t.Fatalf("journal not usable after reset: %v", err)
	}
	bdir := filepath.Join(dir, JournalDirName, BackupsDirName)
	entries, _ := os.ReadDir(bdir)
	if len(entries) == 0 {
		t.Fatalf("expected backup file in %s", bdir)
	}
}

func TestOpenOrResetJournal_HealthyIsKept(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	j, reset, err := OpenOrResetJournal(ctx, dir)
	if err != nil || reset {
		t.Fatalf("fresh open reset=%v err=%v", reset, err)
	}
	if _, err := j.Checkpoint(ctx, "s", "", 0, []byte("keep"), time.Now()); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	_ = j.Close()
	j, reset, err = OpenOrResetJournal(ctx, dir)
	if err != nil || reset {
		t.Fatalf("reopen reset=%v err=%v", reset, err)
	}
	defer j.Close()
	if c, ok, _ := j.Latest(ctx, "s"); !ok || string(c.Blob) != "keep" {
		t.Fatalf("checkpoint lost on healthy reopen")
	}
}
