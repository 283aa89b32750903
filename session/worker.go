package session

import (
	"fmt"
	"runtime/debug"
	"sync"

	"vox/log"
)

// Worker runs at most one job at a time on its own goroutine and delivers
// the job's result on Results.
type Worker struct {
	jobs    chan func() any
	results chan any
	busy    bool
	closed  bool
	mu      sync.Mutex
	done    chan struct{}
}

func NewWorker() *Worker {
	w := &Worker{
		jobs:    make(chan func() any, 1),
		results: make(chan any, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

// Submit queues job. It reports false while another job is in flight or
// its result has not been taken yet.
func (w *Worker) Submit(job func() any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy || w.closed {
		return false
	}
	w.busy = true
	w.jobs <- job
	return true
}

// Results yields one value per submitted job. Receiving a value frees the
// slot only after Done is called.
func (w *Worker) Results() <-chan any { return w.results }

// Done marks the last result as consumed.
func (w *Worker) Done() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Close stops accepting jobs and waits for the running one to finish.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) loop() {
	defer close(w.done)
	for job := range w.jobs {
		w.results <- run(job)
	}
}

// PanicError is returned for a job that panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("worker panic: %v", e.Value) }

func run(job func() any) (res any) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("worker panic: %v\n%s", r, debug.Stack())
			res = &PanicError{Value: r}
		}
	}()
	return job()
}
