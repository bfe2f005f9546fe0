package source

import (
	"fmt"
	"os"
	"sync"
)

// File is a file-backed source. It keeps the last read content in memory;
// Reload re-reads the file and notifies subscribers when the content
// actually changed. Change detection is driven externally, typically by
// the reload watcher polling modification times.
type File struct {
	path string

	mu      sync.RWMutex
	content string
	subs    subscribers
}

// Open reads the file at path and returns a source tracking it.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", path, err)
	}
	return &File{path: path, content: string(data)}, nil
}

// Path returns the tracked file path.
func (f *File) Path() string {
	return f.path
}

// Snapshot returns the content from the most recent successful read.
func (f *File) Snapshot() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.content
}

// Subscribe registers a change callback. The returned cancel func
// unregisters it.
func (f *File) Subscribe(fn func()) (cancel func()) {
	return f.subs.add(fn)
}

// Reload re-reads the file from disk. It reports whether the content
// changed; subscribers are notified only in that case.
func (f *File) Reload() (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false, fmt.Errorf("source: reload %s: %w", f.path, err)
	}
	content := string(data)

	f.mu.Lock()
	if content == f.content {
		f.mu.Unlock()
		return false, nil
	}
	f.content = content
	f.mu.Unlock()

	f.subs.notify()
	return true, nil
}
