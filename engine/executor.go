package engine

import "sync"

// Executor accepts units of work for asynchronous execution. The engine
// never runs derivations inline; every update task goes through Submit.
//
// No ordering guarantee is required across slots. Tasks submitted for the
// same slot self-check their currency on completion, so an executor may
// run them in any order.
type Executor interface {
	Submit(task func())
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(func())

func (f ExecutorFunc) Submit(task func()) {
	f(task)
}

// GoExecutor runs every task on its own goroutine. It is the default
// executor of a Manager.
type GoExecutor struct{}

func (GoExecutor) Submit(task func()) {
	go task()
}

// PoolExecutor runs tasks on a fixed number of worker goroutines. Submit
// blocks once the queue is full, which backpressures the mutation source
// rather than growing without bound.
type PoolExecutor struct {
	tasks chan func()
	wg    sync.WaitGroup
}

// NewPoolExecutor creates a pool with the given number of worker slots.
// Values below one are treated as one.
func NewPoolExecutor(slots, queue int) *PoolExecutor {
	if slots <= 0 {
		slots = 1
	}
	if queue < 0 {
		queue = 0
	}
	pool := &PoolExecutor{tasks: make(chan func(), queue)}
	for i := 0; i < slots; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}
	return pool
}

func (p *PoolExecutor) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

func (p *PoolExecutor) Submit(task func()) {
	p.tasks <- task
}

// Close drains queued tasks and stops the workers. Submit must not be
// called after Close.
func (p *PoolExecutor) Close() {
	close(p.tasks)
	p.wg.Wait()
}
