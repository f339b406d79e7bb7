/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/snapshot"
)

const (
	BackupsDirName = "backups"
	backupSuffix   = ".bak"
	crashSuffix    = ".crash.json"
)

// DocumentHandle is a template document loaded from or saved to disk.
// FromBackup is set when Open had to fall back to a backup.
type DocumentHandle struct {
	Path       string
	Root       *domain.Block
	FromBackup string
}

// BackupsDir returns the backups folder next to a document file.
func BackupsDir(path string) string {
	return filepath.Join(filepath.Dir(path), BackupsDirName)
}

// SaveFile writes root to path; see Save.
func SaveFile(path string, root *domain.Block) error {
	return Save(&DocumentHandle{Path: path, Root: root})
}

// LoadFile reads the tree at path; see Open.
func LoadFile(path string) (*domain.Block, error) {
	h, err := Open(path)
	if err != nil {
		return nil, err
	}
	return h.Root, nil
}

// Open loads a document. If the file is missing, unparsable or fails
// validation, the latest backup is tried.
func Open(path string) (*DocumentHandle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		root, bpath, berr := openFromLatestBackup(path)
		if berr != nil {
			return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
		}
		return &DocumentHandle{Path: path, Root: root, FromBackup: bpath}, nil
	}
	root, derr := snapshot.DecodeRoot(b)
	if derr != nil {
		root, bpath, berr := openFromLatestBackup(path)
		if berr != nil {
			return nil, fmt.Errorf("parse document: %w; backup attempt: %v", derr, berr)
		}
		return &DocumentHandle{Path: path, Root: root, FromBackup: bpath}, nil
	}
	return &DocumentHandle{Path: path, Root: root}, nil
}

// Save writes the handle's tree with transactional semantics and a timestamped
// backup of the previous file (if present).
func Save(h *DocumentHandle) error {
	if h == nil {
		return errors.New("nil DocumentHandle")
	}
	if h.Path == "" {
		return errors.New("invalid DocumentHandle: missing path")
	}
	data, err := snapshot.Encode(h.Root)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(h.Path), 0o755); err != nil {
		return fmt.Errorf("ensure document dir: %w", err)
	}
	bdir := BackupsDir(h.Path)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	if _, statErr := os.Stat(h.Path); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s%s", filepath.Base(h.Path), stamp, backupSuffix))
		if cerr := copyFile(h.Path, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}

	// write to a temp file in the same directory, then rename over the target
	dir := filepath.Dir(h.Path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(h.Path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp document: %w", werr)
	}
	// Windows cannot rename over an existing file
	if _, err := os.Stat(h.Path); err == nil {
		_ = os.Remove(h.Path)
	}
	if rerr := os.Rename(temp, h.Path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	return nil
}

// SaveAs writes the document to a new path and updates the handle.
func SaveAs(h *DocumentHandle, newPath string) error {
	if h == nil {
		return errors.New("nil DocumentHandle")
	}
	if newPath == "" {
		return errors.New("new path is empty")
	}
	h.Path = newPath
	h.FromBackup = ""
	return Save(h)
}

// AutosaveCrashSnapshot writes root next to the backups of path without
// touching the document itself, and returns the written file.
func AutosaveCrashSnapshot(path string, root *domain.Block) (string, error) {
	data, err := snapshot.Encode(root)
	if err != nil {
		return "", err
	}
	dir := os.TempDir()
	base := "document"
	if path != "" {
		dir = BackupsDir(path)
		base = filepath.Base(path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(dir, fmt.Sprintf("%s.%s%s", base, time.Now().Format("20060102-150405"), crashSuffix))
	if err := writeFileSync(out, data); err != nil {
		return "", err
	}
	return out, nil
}

// ListBackups returns the backup files of path, oldest first.
func ListBackups(path string) ([]string, error) {
	ents, err := os.ReadDir(BackupsDir(path))
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, backupSuffix) {
			out = append(out, filepath.Join(BackupsDir(path), name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

// PruneBackups keeps the newest keep backups of path and returns how many
// were removed.
func PruneBackups(path string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	all, err := ListBackups(path)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := 0; i < len(all)-keep; i++ {
		if err := os.Remove(all[i]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup decodes the newest backup of path that validates.
func openFromLatestBackup(path string) (*domain.Block, string, error) {
	candidates, err := ListBackups(path)
	if err != nil {
		return nil, "", err
	}
	if len(candidates) == 0 {
		return nil, "", errors.New("no backups found")
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			lastErr = err
			continue
		}
		root, err := snapshot.DecodeRoot(b)
		if err != nil {
			lastErr = err
			continue
		}
		return root, candidates[i], nil
	}
	return nil, "", fmt.Errorf("no usable backup: %w", lastErr)
}
