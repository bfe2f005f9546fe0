// Package source provides mutable text inputs that feed the coordination
// engine: an editable in-memory buffer and a file-backed source refreshed
// by the reload watcher. Both deliver one change notification per discrete
// mutation and never notify while holding the lock Snapshot acquires.
package source

import (
	"fmt"
	"sync"
)

type subscribers struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func()
}

func (s *subscribers) add(fn func()) (cancel func()) {
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]func())
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Buffer is an editable in-memory text document. Mutation authority
// belongs to the owner; the engine only snapshots it and listens for
// changes.
type Buffer struct {
	mu      sync.RWMutex
	content string
	subs    subscribers
}

// NewBuffer creates a buffer with the given initial content.
func NewBuffer(content string) *Buffer {
	return &Buffer{content: content}
}

// Snapshot returns the full current content.
func (b *Buffer) Snapshot() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.content
}

// Subscribe registers a change callback fired once per discrete mutation,
// after the mutation is visible to Snapshot. The returned cancel func
// unregisters it.
func (b *Buffer) Subscribe(fn func()) (cancel func()) {
	return b.subs.add(fn)
}

// Set replaces the whole content.
func (b *Buffer) Set(content string) {
	b.mu.Lock()
	b.content = content
	b.mu.Unlock()
	b.subs.notify()
}

// Append adds text at the end of the buffer.
func (b *Buffer) Append(text string) {
	b.mu.Lock()
	b.content += text
	b.mu.Unlock()
	b.subs.notify()
}

// Replace substitutes the byte range [start, end) with text.
func (b *Buffer) Replace(start, end int, text string) error {
	b.mu.Lock()
	if start < 0 || end < start || end > len(b.content) {
		length := len(b.content)
		b.mu.Unlock()
		return fmt.Errorf("source: replace range [%d, %d) out of bounds for length %d", start, end, length)
	}
	b.content = b.content[:start] + text + b.content[end:]
	b.mu.Unlock()
	b.subs.notify()
	return nil
}
