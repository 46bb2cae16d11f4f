package stream

import (
	"sync"
	"time"
)

// workerPool runs tasks on a fixed set of goroutines fed by a bounded queue.
// When the queue is full the submitting goroutine runs the task itself, which
// throttles the producer instead of dropping work.
type workerPool struct {
	tasks    chan func()
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newWorkerPool(workers, queue int) *workerPool {
	p := &workerPool{tasks: make(chan func(), queue)}
	p.wg.Add(workers)
	for range workers {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// submit must not be called concurrently with shutdown.
func (p *workerPool) submit(task func()) {
	select {
	case p.tasks <- task:
	default:
		task()
	}
}

// shutdown stops accepting tasks and waits up to timeout for queued and
// running tasks to finish. It reports whether the pool drained in time;
// stragglers keep running in the background.
func (p *workerPool) shutdown(timeout time.Duration) bool {
	p.stopOnce.Do(func() { close(p.tasks) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// future is the completion signal of one block task.
type future struct {
	block *Block
	done  chan struct{}
	err   error
}

func newFuture(block *Block) *future {
	return &future{block: block, done: make(chan struct{})}
}

func (f *future) complete(err error) {
	f.err = err
	close(f.done)
}

func (f *future) wait() error {
	<-f.done
	return f.err
}

func (f *future) isDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
