package engine

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolExecutorRunsAllTasks(t *testing.T) {
	pool := NewPoolExecutor(3, 8)
	var ran atomic.Int64
	for i := 0; i < 50; i++ {
		pool.Submit(func() { ran.Add(1) })
	}
	pool.Close()
	if ran.Load() != 50 {
		t.Fatalf("expected 50 tasks to run, got %d", ran.Load())
	}
}

func TestPoolExecutorCloseDrainsQueue(t *testing.T) {
	pool := NewPoolExecutor(1, 16)
	var order []int
	var mu sync.Mutex
	for i := 0; i < 5; i++ {
		i := i
		pool.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	pool.Close()
	if len(order) != 5 {
		t.Fatalf("queued tasks were dropped: %v", order)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("single worker must preserve submit order, got %v", order)
		}
	}
}

func TestPoolExecutorClampsSlots(t *testing.T) {
	pool := NewPoolExecutor(0, -1)
	done := make(chan struct{})
	pool.Submit(func() { close(done) })
	<-done
	pool.Close()
}

func TestExecutorFunc(t *testing.T) {
	ran := false
	exec := ExecutorFunc(func(task func()) { task() })
	exec.Submit(func() { ran = true })
	if !ran {
		t.Fatalf("adapter did not invoke the task")
	}
}
