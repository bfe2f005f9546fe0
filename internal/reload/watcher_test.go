package reload

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestUniquePathsFiltersDuplicatesAndEmptyValues(t *testing.T) {
	paths := []string{"", "/tmp/a", "/tmp/b", "/tmp/a", "/tmp/c", "/tmp/b"}
	got := uniquePaths(paths)
	want := []string{"/tmp/a", "/tmp/b", "/tmp/c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("uniquePaths() = %v, want %v", got, want)
	}
}

func TestWatcherCheckDetectsChanges(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.md")
	fileB := filepath.Join(dir, "b.md")
	writeFile(t, fileA, "first")
	writeFile(t, fileB, "second")

	watcher := NewWatcher([]string{fileA, fileB})

	if changed := watcher.Check(); len(changed) != 0 {
		t.Fatalf("expected no changes, got %v", changed)
	}

	// Size change is detected even when the mtime granularity is coarse.
	writeFile(t, fileA, "first updated")

	changed := watcher.Check()
	if !reflect.DeepEqual(changed, []string{fileA}) {
		t.Fatalf("expected %v, got %v", []string{fileA}, changed)
	}

	// The new state was recorded; no repeated reports.
	if changed := watcher.Check(); len(changed) != 0 {
		t.Fatalf("expected no changes after recording, got %v", changed)
	}
}

func TestWatcherCheckDetectsRemovalAndReappearance(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.md")
	writeFile(t, file, "content")

	watcher := NewWatcher([]string{file})

	if err := os.Remove(file); err != nil {
		t.Fatalf("remove: %v", err)
	}
	changed := watcher.Check()
	if !reflect.DeepEqual(changed, []string{file}) {
		t.Fatalf("expected removal of %s reported, got %v", file, changed)
	}

	// Still tracked: reappearance counts as a change again.
	time.Sleep(10 * time.Millisecond)
	writeFile(t, file, "back")
	changed = watcher.Check()
	if !reflect.DeepEqual(changed, []string{file}) {
		t.Fatalf("expected reappearance of %s reported, got %v", file, changed)
	}
}

func TestWatcherTracksMissingFiles(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.md")

	watcher := NewWatcher([]string{missing})

	if changed := watcher.Check(); len(changed) != 0 {
		t.Fatalf("expected missing file to stay quiet, got %v", changed)
	}

	writeFile(t, missing, "created")
	changed := watcher.Check()
	if !reflect.DeepEqual(changed, []string{missing}) {
		t.Fatalf("expected creation of %s reported, got %v", missing, changed)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
