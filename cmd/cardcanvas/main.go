/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"cardcanvas/internal/config"
	"cardcanvas/internal/crash"
	"cardcanvas/internal/domain"
	"cardcanvas/internal/engine"
	applog "cardcanvas/internal/log"
	"cardcanvas/internal/snapshot"
	"cardcanvas/internal/storage"
	"cardcanvas/internal/version"
	"cardcanvas/internal/virtual"
)

func usage() {
	fmt.Println("Card Canvas: template document engine")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cardcanvas version|-v|--version                 Show version")
	fmt.Println("  cardcanvas init <file> [kind]                   Create a document with an empty root block")
	fmt.Println("  cardcanvas validate <file>                      Check schema and tree invariants")
	fmt.Println("  cardcanvas stats <file>                         Print node, leaf, depth and kind counts")
	fmt.Println("  cardcanvas graph <file>                         Print the render graph as JSON")
	fmt.Println("  cardcanvas flatten <file> [scroll viewport]     Print the visible rows")
	fmt.Println("  cardcanvas move <file> <id> <parent> [index]    Move a block under another block")
	fmt.Println("  cardcanvas paste <file> <sourceId> <targetId>   Copy a block and paste it into another")
	fmt.Println("  cardcanvas checkpoint <file> [label]            Store the document in the journal")
	fmt.Println("  cardcanvas restore <file>                       Restore the newest journal checkpoint")
}

// crashSource lets the deferred crash handler see the session once it exists.
type crashSource struct {
	path string
	sess *engine.Session
}

func (c *crashSource) DocumentPath() string { return c.path }

func (c *crashSource) LastGood() *domain.Block {
	if c.sess == nil {
		return nil
	}
	return c.sess.LastGood()
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func need(args []string, n int, what string) {
	if len(args) < n {
		fmt.Printf("%s requires %s\n", args[1], what)
		usage()
		os.Exit(2)
	}
}

func main() {
	cfg, err := config.Load()
	applog.Init(cfg.Logging.LogOptions())
	l := applog.WithComponent("cli")
	if err != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", err))
	}
	src := &crashSource{}
	defer crash.Recover(src)

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
		return
	case "init":
		need(args, 3, "<file>")
		kind := "Card"
		if len(args) > 3 {
			kind = args[3]
		}
		root, err := domain.NewBlock(kind, domain.Props{})
		if err != nil {
			fail(l, "init failed", err)
		}
		path := absPath(args[2])
		if err := storage.SaveFile(path, root); err != nil {
			fail(l, "init failed", err)
		}
		fmt.Println("Created document at", path)
	case "validate":
		need(args, 3, "<file>")
		data, err := os.ReadFile(args[2])
		if err != nil {
			fail(l, "read failed", err)
		}
		problems, err := snapshot.Validate(data)
		if err != nil {
			fail(l, "validate failed", err)
		}
		if len(problems) == 0 {
			_, err = snapshot.Decode(data)
			if err != nil {
				problems = append(problems, err.Error())
			}
		}
		if len(problems) > 0 {
			for _, p := range problems {
				fmt.Println("-", p)
			}
			os.Exit(1)
		}
		fmt.Println("OK")
	case "stats":
		need(args, 3, "<file>")
		s := openSession(l, cfg, src, args[2])
		st := s.Stats()
		fmt.Printf("Nodes: %d\nLeaves: %d\nMax depth: %d\n", st.Total, st.Leaves, st.MaxDepth)
		kinds := make([]string, 0, len(st.ByKind))
		for k := range st.ByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("  %-16s %d\n", k, st.ByKind[k])
		}
	case "graph":
		need(args, 3, "<file>")
		s := openSession(l, cfg, src, args[2])
		g, err := s.Graph()
		if err != nil {
			fail(l, "graph failed", err)
		}
		out, _ := json.MarshalIndent(g, "", "  ")
		fmt.Println(string(out))
	case "flatten":
		need(args, 3, "<file>")
		s := openSession(l, cfg, src, args[2])
		scroll, viewport := 0, 1<<30
		if len(args) > 4 {
			scroll, _ = strconv.Atoi(args[3])
			viewport, _ = strconv.Atoi(args[4])
		}
		f := s.Visible(scroll, viewport, func(r virtual.Row) any {
			return fmt.Sprintf("%s%s (%s)", strings.Repeat("  ", r.Depth), r.Node.Kind, r.Node.ID)
		})
		for _, r := range f.Rows {
			fmt.Println(r.Output)
		}
		fmt.Printf("rows %d-%d of %d, %s\n", f.Range.Start, f.Range.End, s.Rows().Len(), f.Elapsed)
	case "move":
		need(args, 5, "<file> <id> <parent>")
		s := openSession(l, cfg, src, args[2])
		index := -1
		if len(args) > 5 {
			index, _ = strconv.Atoi(args[5])
		}
		if !s.Select(args[3]) {
			fail(l, "move failed", fmt.Errorf("block %q not found", args[3]))
		}
		e, err := s.MoveSelected(args[4], index)
		if err != nil {
			fail(l, "move failed", err)
		}
		if e == nil {
			fmt.Println("Nothing to move.")
			return
		}
		saveSession(l, cfg, s)
		fmt.Printf("Moved %s under %s\n", args[3], args[4])
	case "paste":
		need(args, 5, "<file> <sourceId> <targetId>")
		s := openSession(l, cfg, src, args[2])
		if !s.Select(args[3]) {
			fail(l, "paste failed", fmt.Errorf("block %q not found", args[3]))
		}
		if err := s.CopySelected(); err != nil {
			fail(l, "copy failed", err)
		}
		if !s.Select(args[4]) {
			fail(l, "paste failed", fmt.Errorf("block %q not found", args[4]))
		}
		ids, err := s.PasteIntoSelected(-1)
		if err != nil {
			fail(l, "paste failed", err)
		}
		saveSession(l, cfg, s)
		fmt.Println("Pasted:", strings.Join(ids, ", "))
	case "checkpoint":
		need(args, 3, "<file>")
		label := "cli"
		if len(args) > 3 {
			label = args[3]
		}
		j := openJournal(l, args[2])
		defer j.Close()
		s := openSession(l, cfg, src, args[2], withJournal(j))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		id, err := s.Checkpoint(ctx, label)
		if err != nil {
			fail(l, "checkpoint failed", err)
		}
		if n, err := j.Prune(ctx, s.ID(), cfg.Storage.KeepCheckpoints); err == nil && n > 0 {
			l.Debug("old checkpoints pruned", slog.Int64("removed", n))
		}
		fmt.Printf("Checkpoint %d stored for %s\n", id, s.ID())
	case "restore":
		need(args, 3, "<file>")
		j := openJournal(l, args[2])
		defer j.Close()
		s := openSession(l, cfg, src, args[2], withJournal(j))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ok, err := s.RestoreCheckpoint(ctx, "")
		if err != nil {
			fail(l, "restore failed", err)
		}
		if !ok {
			fmt.Println("No checkpoint found.")
			return
		}
		saveSession(l, cfg, s)
		fmt.Println("Restored newest checkpoint.")
	default:
		usage()
	}
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func withJournal(j *storage.Journal) func(*engine.Options) {
	return func(o *engine.Options) { o.Journal = j }
}

// openSession loads the document at path (falling back to a backup) and
// starts a session keyed by the absolute path.
func openSession(l *slog.Logger, cfg config.AppConfig, src *crashSource, path string, mods ...func(*engine.Options)) *engine.Session {
	path = absPath(path)
	src.path = path
	h, err := storage.Open(path)
	if err != nil {
		fail(l, "open failed", err)
	}
	if h.FromBackup != "" {
		l.Warn("document unreadable, opened backup", slog.String("backup", h.FromBackup))
		fmt.Println("Warning: opened from backup", h.FromBackup)
	}
	opts := engine.FromConfig(cfg.Engine)
	opts.ID = path
	opts.DocumentPath = path
	for _, m := range mods {
		m(&opts)
	}
	s, err := engine.New(h.Root, opts)
	if err != nil {
		fail(l, "session failed", err)
	}
	src.sess = s
	return s
}

func saveSession(l *slog.Logger, cfg config.AppConfig, s *engine.Session) {
	s.Close()
	if vs := s.Validate(); len(vs) > 0 {
		fail(l, "refusing to save", fmt.Errorf("tree invalid: %s", vs[0]))
	}
	path := s.DocumentPath()
	if err := storage.SaveFile(path, s.Root()); err != nil {
		fail(l, "save failed", err)
	}
	if n, err := storage.PruneBackups(path, cfg.Storage.KeepBackups); err == nil && n > 0 {
		l.Debug("old backups pruned", slog.Int("removed", n))
	}
}

func openJournal(l *slog.Logger, path string) *storage.Journal {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	j, reset, err := storage.OpenOrResetJournal(ctx, filepath.Dir(absPath(path)))
	if err != nil {
		fail(l, "journal open failed", err)
	}
	if reset {
		fmt.Println("Warning: journal was corrupt and has been reset.")
	}
	return j
}
