package source

import "testing"

func TestBufferSetNotifies(t *testing.T) {
	buf := NewBuffer("hello")
	notified := 0
	cancel := buf.Subscribe(func() { notified++ })
	defer cancel()

	buf.Set("world")
	if buf.Snapshot() != "world" {
		t.Fatalf("unexpected content %q", buf.Snapshot())
	}
	if notified != 1 {
		t.Fatalf("expected 1 notification, got %d", notified)
	}
}

func TestBufferAppend(t *testing.T) {
	buf := NewBuffer("a")
	notified := 0
	cancel := buf.Subscribe(func() { notified++ })
	defer cancel()

	buf.Append("b")
	buf.Append("c")
	if buf.Snapshot() != "abc" {
		t.Fatalf("unexpected content %q", buf.Snapshot())
	}
	if notified != 2 {
		t.Fatalf("expected one notification per mutation, got %d", notified)
	}
}

func TestBufferReplace(t *testing.T) {
	buf := NewBuffer("one two three")
	if err := buf.Replace(4, 7, "2"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if buf.Snapshot() != "one 2 three" {
		t.Fatalf("unexpected content %q", buf.Snapshot())
	}
}

func TestBufferReplaceOutOfBounds(t *testing.T) {
	buf := NewBuffer("abc")
	notified := 0
	cancel := buf.Subscribe(func() { notified++ })
	defer cancel()

	cases := [][2]int{{-1, 2}, {2, 1}, {0, 4}}
	for _, c := range cases {
		if err := buf.Replace(c[0], c[1], "x"); err == nil {
			t.Fatalf("expected error for range [%d, %d)", c[0], c[1])
		}
	}
	if buf.Snapshot() != "abc" {
		t.Fatalf("failed replace must not mutate, got %q", buf.Snapshot())
	}
	if notified != 0 {
		t.Fatalf("failed replace must not notify, got %d", notified)
	}
}

func TestBufferSubscribeCancel(t *testing.T) {
	buf := NewBuffer("")
	first, second := 0, 0
	cancel := buf.Subscribe(func() { first++ })
	cancelSecond := buf.Subscribe(func() { second++ })
	defer cancelSecond()

	buf.Set("1")
	cancel()
	buf.Set("2")

	if first != 1 {
		t.Fatalf("cancelled subscriber still notified: %d", first)
	}
	if second != 2 {
		t.Fatalf("remaining subscriber missed a notification: %d", second)
	}
}

func TestBufferSnapshotVisibleInsideCallback(t *testing.T) {
	buf := NewBuffer("old")
	var seen string
	cancel := buf.Subscribe(func() { seen = buf.Snapshot() })
	defer cancel()

	buf.Set("new")
	if seen != "new" {
		t.Fatalf("mutation must be visible to Snapshot before notify, got %q", seen)
	}
}
