package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/storage"
)

type fakeSource struct {
	path string
	root *domain.Block
}

func (f fakeSource) DocumentPath() string { return f.path }
func (f fakeSource) LastGood() *domain.Block { return f.root }

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	defer os.Remove(path)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Card Canvas Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportCreatesFileInDocumentBackups(t *testing.T) {
	dir := t.TempDir()
	src := fakeSource{path: filepath.Join(dir, "deck.json"), root: &domain.Block{ID: "r", Kind: "Card"}}

	path, err := writeReport(src, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != storage.BackupsDir(src.path) {
		t.Fatalf("expected crash report under backups dir, got %s", path)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "Root: r (Card)") {
		t.Fatalf("root summary missing: %s", b)
	}
}
