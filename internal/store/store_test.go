package store

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"artbatch/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	base := t.TempDir()
	s, err := New(filepath.Join(base, "staging"), filepath.Join(base, "artifacts"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.downloadPoll = 5 * time.Millisecond
	s.stabilityWait = 5 * time.Millisecond
	return s
}

func stageFile(t *testing.T, s *Store, name, content string) string {
	t.Helper()

	path := filepath.Join(s.StagingDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOrganizeMovesIntoStore(t *testing.T) {
	s := newTestStore(t)
	src := stageFile(t, s, "download.png", "image bytes")

	final, err := s.Organize(src, "cover_art", "png")
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}

	if final != s.ArtifactPath("cover_art", "png") {
		t.Errorf("final path = %q, want %q", final, s.ArtifactPath("cover_art", "png"))
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source file should be gone after organize")
	}
	data, err := os.ReadFile(final)
	if err != nil || string(data) != "image bytes" {
		t.Errorf("stored content = %q, err = %v", data, err)
	}
}

func TestOrganizeNeverOverwrites(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Organize(stageFile(t, s, "a.png", "first"), "foo", "png")
	if err != nil {
		t.Fatalf("first Organize() error = %v", err)
	}
	second, err := s.Organize(stageFile(t, s, "b.png", "second"), "foo", "png")
	if err != nil {
		t.Fatalf("second Organize() error = %v", err)
	}
	third, err := s.Organize(stageFile(t, s, "c.png", "third"), "foo", "png")
	if err != nil {
		t.Fatalf("third Organize() error = %v", err)
	}

	if filepath.Base(first) != "foo.png" {
		t.Errorf("first = %q, want foo.png", filepath.Base(first))
	}
	if filepath.Base(second) != "foo_1.png" {
		t.Errorf("second = %q, want foo_1.png", filepath.Base(second))
	}
	if filepath.Base(third) != "foo_2.png" {
		t.Errorf("third = %q, want foo_2.png", filepath.Base(third))
	}

	data, _ := os.ReadFile(first)
	if string(data) != "first" {
		t.Errorf("original artifact was overwritten: %q", data)
	}
}

func TestOrganizeDestinationStatFailure(t *testing.T) {
	s := newTestStore(t)

	// A regular file where the destination's parent directory should be
	// makes every stat fail with ENOTDIR, which is neither "absent" nor
	// "occupied". Organize must surface that instead of spinning on
	// suffixes.
	if err := os.WriteFile(filepath.Join(s.ArtifactsDir(), "blocker"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := s.Organize(stageFile(t, s, "a.png", "x"), "blocker/foo", "png")
	if err == nil {
		t.Fatal("expected error when the destination cannot be stat'd")
	}
	var orgErr *errors.OrganizerError
	if !errors.As(err, &orgErr) {
		t.Errorf("error = %T, want *errors.OrganizerError", err)
	}
}

func TestOrganizeMissingSource(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Organize(filepath.Join(s.StagingDir(), "ghost.png"), "foo", "png")
	if !errors.Is(err, errors.ErrSourceNotFound) {
		t.Errorf("error = %v, want ErrSourceNotFound", err)
	}
}

func TestExists(t *testing.T) {
	s := newTestStore(t)

	if s.Exists("foo", "png") {
		t.Error("Exists() should be false for empty store")
	}
	if _, err := s.Organize(stageFile(t, s, "a.png", "x"), "foo", "png"); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("foo", "png") {
		t.Error("Exists() should be true after organize")
	}
	if s.Exists("foo", "jpg") {
		t.Error("Exists() must key on both name and extension")
	}
}

func TestBackup(t *testing.T) {
	s := newTestStore(t)

	// No artifact: no backup, no error.
	path, err := s.Backup("foo", "png")
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if path != "" {
		t.Errorf("Backup() of missing artifact = %q, want empty", path)
	}

	if _, err := s.Organize(stageFile(t, s, "a.png", "payload"), "foo", "png"); err != nil {
		t.Fatal(err)
	}

	path, err = s.Backup("foo", "png")
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	pattern := regexp.MustCompile(`^foo_\d{8}_\d{6}\.png$`)
	if !pattern.MatchString(filepath.Base(path)) {
		t.Errorf("backup name %q does not match name_YYYYMMDD_HHMMSS.ext", filepath.Base(path))
	}
	if filepath.Dir(path) != filepath.Join(s.ArtifactsDir(), "backups") {
		t.Errorf("backup dir = %q, want artifacts/backups", filepath.Dir(path))
	}

	// Original stays in place; backup is a copy.
	if !s.Exists("foo", "png") {
		t.Error("original artifact should survive backup")
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "payload" {
		t.Errorf("backup content = %q, err = %v", data, err)
	}
}

func TestClearStaging(t *testing.T) {
	s := newTestStore(t)

	stageFile(t, s, "leftover1.png", "x")
	stageFile(t, s, "leftover2.tmp", "y")
	if err := os.Mkdir(filepath.Join(s.StagingDir(), "subdir"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := s.ClearStaging(); err != nil {
		t.Fatalf("ClearStaging() error = %v", err)
	}

	entries, err := os.ReadDir(s.StagingDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		t.Errorf("staging should contain only the subdirectory, got %d entries", len(entries))
	}
}

func TestWaitForDownload(t *testing.T) {
	s := newTestStore(t)

	stageFile(t, s, "partial.crdownload", "still downloading")
	want := stageFile(t, s, "result.png", "done")

	got, err := s.WaitForDownload(context.Background(), "png", time.Second)
	if err != nil {
		t.Fatalf("WaitForDownload() error = %v", err)
	}
	if got != want {
		t.Errorf("WaitForDownload() = %q, want %q", got, want)
	}
}

func TestWaitForDownloadIgnoresTempFiles(t *testing.T) {
	s := newTestStore(t)

	stageFile(t, s, "a.crdownload", "x")
	stageFile(t, s, "b.tmp", "y")
	stageFile(t, s, "c.part", "z")

	_, err := s.WaitForDownload(context.Background(), "", 50*time.Millisecond)
	if !errors.Is(err, errors.ErrTimeout) {
		t.Errorf("error = %v, want timeout", err)
	}
	if !errors.Is(err, errors.ErrNoDownload) {
		t.Errorf("error = %v, want ErrNoDownload cause", err)
	}
}

func TestWaitForDownloadTimeout(t *testing.T) {
	s := newTestStore(t)

	start := time.Now()
	_, err := s.WaitForDownload(context.Background(), "png", 30*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error for empty staging")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v, should be bounded near 30ms", elapsed)
	}

	var timeoutErr *errors.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Errorf("error = %T, want *errors.TimeoutError", err)
	}
}

func TestListAndStats(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Organize(stageFile(t, s, "a.png", "xx"), "zeta", "png"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Organize(stageFile(t, s, "b.txt", "yyy"), "alpha", "txt"); err != nil {
		t.Fatal(err)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 2 || names[0] != "alpha.txt" || names[1] != "zeta.png" {
		t.Errorf("List() = %v, want sorted [alpha.txt zeta.png]", names)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", stats.TotalCount)
	}
	if stats.TotalBytes != 5 {
		t.Errorf("TotalBytes = %d, want 5", stats.TotalBytes)
	}
	if stats.ByExtension[".png"] != 1 || stats.ByExtension[".txt"] != 1 {
		t.Errorf("ByExtension = %v", stats.ByExtension)
	}
}
