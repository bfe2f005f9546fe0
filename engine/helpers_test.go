package engine

import (
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// manualExecutor records submitted tasks so tests control completion order.
type manualExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (e *manualExecutor) Submit(task func()) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
}

func (e *manualExecutor) size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// run executes the i-th submitted task on the calling goroutine.
func (e *manualExecutor) run(t *testing.T, i int) {
	t.Helper()
	e.mu.Lock()
	if i < 0 || i >= len(e.tasks) {
		e.mu.Unlock()
		t.Fatalf("no task %d, %d submitted", i, len(e.tasks))
	}
	task := e.tasks[i]
	e.mu.Unlock()
	task()
}

// fakeSource is a minimal in-memory Source with observable subscriptions.
type fakeSource struct {
	mu      sync.Mutex
	content string
	nextID  int
	subs    map[int]func()
}

func newFakeSource(content string) *fakeSource {
	return &fakeSource{content: content, subs: make(map[int]func())}
}

func (s *fakeSource) Snapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

func (s *fakeSource) Subscribe(fn func()) func() {
	s.mu.Lock()
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

func (s *fakeSource) set(content string) {
	s.mu.Lock()
	s.content = content
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *fakeSource) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// recordingListener captures both notification kinds together with the
// stored result observed at data-changed time.
type recordingListener[K comparable, V any] struct {
	mu        sync.Mutex
	requested int
	changed   []Result[V]
}

func (l *recordingListener[K, V]) UpdateRequested(*Slot[K, V]) {
	l.mu.Lock()
	l.requested++
	l.mu.Unlock()
}

func (l *recordingListener[K, V]) DataChanged(slot *Slot[K, V]) {
	res, _ := slot.Stored()
	l.mu.Lock()
	l.changed = append(l.changed, res)
	l.mu.Unlock()
}

func (l *recordingListener[K, V]) requestedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requested
}

func (l *recordingListener[K, V]) changedResults() []Result[V] {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Result[V], len(l.changed))
	copy(out, l.changed)
	return out
}

// taggingListener appends a tag to a shared sequence on data-changed, used
// to assert connected-before-global fan-out order.
type taggingListener struct {
	tag string
	seq *tagSequence
}

type tagSequence struct {
	mu   sync.Mutex
	tags []string
}

func (s *tagSequence) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tags))
	copy(out, s.tags)
	return out
}

func (l *taggingListener) UpdateRequested(*Slot[string, string]) {}

func (l *taggingListener) DataChanged(*Slot[string, string]) {
	l.seq.mu.Lock()
	l.seq.tags = append(l.seq.tags, l.tag)
	l.seq.mu.Unlock()
}

// countingCollector is an in-memory telemetry.Collector.
type countingCollector struct {
	mu           sync.Mutex
	queued       map[string]int
	discarded    map[string]int
	deriveErrors int
	slots        int
}

func newCountingCollector() *countingCollector {
	return &countingCollector{
		queued:    make(map[string]int),
		discarded: make(map[string]int),
	}
}

func (c *countingCollector) IncTaskQueued(kind string) {
	c.mu.Lock()
	c.queued[kind]++
	c.mu.Unlock()
}

func (c *countingCollector) IncTaskDiscarded(kind string) {
	c.mu.Lock()
	c.discarded[kind]++
	c.mu.Unlock()
}

func (c *countingCollector) IncDeriveError() {
	c.mu.Lock()
	c.deriveErrors++
	c.mu.Unlock()
}

func (c *countingCollector) SetManagedSlots(count int) {
	c.mu.Lock()
	c.slots = count
	c.mu.Unlock()
}

func (c *countingCollector) queuedCount(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queued[kind]
}

func (c *countingCollector) discardedCount(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discarded[kind]
}

// locatedKey carries a filesystem identity for teardown hook tests.
type locatedKey string

func (k locatedKey) Location() string {
	return string(k)
}

func echoDerive(source string) (string, error) {
	return "derived:" + source, nil
}
