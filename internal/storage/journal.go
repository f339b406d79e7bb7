/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "cardcanvas/internal/log"
	"cardcanvas/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// JournalDirName holds disposable per-workspace data next to documents.
	JournalDirName  = ".ccv"
	JournalFileName = "journal.sqlite"

	// schemaVersion tracks the journal's SQLite schema. Bump it together with
	// a migration step.
	schemaVersion = 2
)

// language=SQL
// dialect=SQLite
const insertCheckpointSQL = `INSERT INTO checkpoints(session, ts, label, nodes, blob) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestCheckpointSQL = `SELECT id, session, ts, label, nodes, blob FROM checkpoints WHERE session = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listCheckpointsSQL = `SELECT id, session, ts, label, nodes, blob FROM checkpoints WHERE session = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneCheckpointsSQL = `DELETE FROM checkpoints WHERE session = ? AND id NOT IN (
	SELECT id FROM checkpoints WHERE session = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// language=SQL
// dialect=SQLite
const listSessionsSQL = `SELECT session, COUNT(*) FROM checkpoints GROUP BY session ORDER BY MAX(ts) DESC`

// Checkpoint is one stored document snapshot.
type Checkpoint struct {
	ID      int64
	Session string
	TS      time.Time
	Label   string
	Nodes   int
	Blob    []byte
}

// Journal is an embedded SQLite store of document checkpoints, used to
// restore a last known-good tree after corruption or a crash. It is
// rebuildable and disposable.
type Journal struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// JournalPath returns the journal database file under dir.
func JournalPath(dir string) string {
	return filepath.Join(dir, JournalDirName, JournalFileName)
}

// OpenJournal ensures the journal exists under dir/.ccv, opens it, enables WAL
// mode and brings the schema up to date.
func OpenJournal(dir string) (*Journal, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "journal_open").With(
		slog.String("dir", dir),
	)
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("journal dir is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, JournalDirName), 0o755); err != nil {
		l.Error("create journal dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", JournalDirName, err)
	}

	path := JournalPath(dir)
	// forward slashes for the SQLite URI
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureJournalSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure journal schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Debug("journal ready", slog.String("path", path))
	return &Journal{db: db, path: path, log: applog.WithComponent("storage")}, nil
}

func (j *Journal) Path() string { return j.path }

func (j *Journal) Close() error { return j.db.Close() }

// SchemaVersion reports the schema version recorded in the database.
func (j *Journal) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := j.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

// Checkpoint stores a document blob for session and returns its row id.
func (j *Journal) Checkpoint(ctx context.Context, session, label string, nodes int, blob []byte, ts time.Time) (int64, error) {
	if session == "" {
		return 0, errors.New("session is required")
	}
	res, err := j.db.ExecContext(ctx, insertCheckpointSQL, session, ts.UTC().Format(time.RFC3339Nano), label, nodes, blob)
	if err != nil {
		return 0, fmt.Errorf("insert checkpoint: %w", err)
	}
	id, _ := res.LastInsertId()
	j.log.Debug("checkpoint stored", slog.String("session", session), slog.Int64("id", id), slog.Int("bytes", len(blob)))
	return id, nil
}

// Latest returns the newest checkpoint of session; ok is false when there is none.
func (j *Journal) Latest(ctx context.Context, session string) (Checkpoint, bool, error) {
	c, err := scanCheckpoint(j.db.QueryRowContext(ctx, selectLatestCheckpointSQL, session))
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	return c, true, nil
}

// List returns up to limit checkpoints of session, newest first.
func (j *Journal) List(ctx context.Context, session string, limit int) ([]Checkpoint, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, listCheckpointsSQL, session, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Checkpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Sessions returns every session with checkpoints and its checkpoint count,
// most recently written first.
func (j *Journal) Sessions(ctx context.Context) (map[string]int, []string, error) {
	rows, err := j.db.QueryContext(ctx, listSessionsSQL)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()
	counts := map[string]int{}
	var order []string
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, nil, err
		}
		counts[s] = n
		order = append(order, s)
	}
	return counts, order, rows.Err()
}

// Prune keeps at most keepLast checkpoints for session and deletes older ones.
func (j *Journal) Prune(ctx context.Context, session string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := j.db.ExecContext(ctx, pruneCheckpointsSQL, session, session, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(r rowScanner) (Checkpoint, error) {
	var c Checkpoint
	var tsStr string
	var label sql.NullString
	if err := r.Scan(&c.ID, &c.Session, &tsStr, &label, &c.Nodes, &c.Blob); err != nil {
		return Checkpoint{}, err
	}
	c.Label = label.String
	// keep the blob even if the timestamp is unreadable
	c.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
	return c, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// a fresh database starts at schema 1 and migrates forward
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the schema number for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureJournalSchema(ctx context.Context, db *sql.DB) error {
	q := `CREATE TABLE IF NOT EXISTS checkpoints (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		ts      TEXT NOT NULL,
		label   TEXT,
		nodes   INTEGER NOT NULL DEFAULT 0,
		blob    BLOB NOT NULL
	);`
	if _, err := db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create checkpoints: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	// never downgrade
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_checkpoints_session_ts ON checkpoints(session, ts);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// OpenOrResetJournal opens the journal under dir. A journal that cannot be
// opened or fails SQLite's quick_check is copied to .ccv/backups and replaced
// by an empty one; reset reports that.
func OpenOrResetJournal(ctx context.Context, dir string) (j *Journal, reset bool, err error) {
	path := JournalPath(dir)
	j, err = OpenJournal(dir)
	if err == nil {
		var chk string
		qerr := j.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk)
		if qerr == nil && strings.Contains(strings.ToLower(chk), "ok") {
			if _, perr := j.db.ExecContext(ctx, `SELECT 1 FROM checkpoints LIMIT 1;`); perr == nil {
				return j, false, nil
			}
		}
		_ = j.Close()
	}
	applog.WithComponent("storage").Warn("journal unusable, resetting", slog.String("path", path), slog.Any("err", err))
	backupJournalFile(path)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
	j, err = OpenJournal(dir)
	if err != nil {
		return nil, false, fmt.Errorf("reopen after reset: %w", err)
	}
	return j, true, nil
}

// backupJournalFile copies the journal file into a timestamped backup in .ccv/backups.
func backupJournalFile(path string) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s%s", filepath.Base(path), stamp, backupSuffix))
	if data, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}
