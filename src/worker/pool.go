package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

// ErrBusy is returned when a batch is already running or queued.
var ErrBusy = errors.New("automation is busy with another batch")

var ErrClosed = errors.New("worker is closed")

// Job runs one batch. It owns the desktop for its whole duration.
type Job func(ctx context.Context)

// Lane is a single worker with a 1-slot queue (strict back-pressure).
// Only one batch is admitted at a time; everything else is rejected.
type Lane struct {
	jobs     chan job
	wg       sync.WaitGroup
	occupied atomic.Bool
	closed   atomic.Bool
	mu       sync.Mutex
}

type job struct {
	ctx  context.Context
	name string
	fn   Job
	done chan struct{}
}

func New() *Lane {
	l := &Lane{jobs: make(chan job, 1)}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for j := range l.jobs {
			l.execute(j)
		}
	}()
	return l
}

func (l *Lane) execute(j job) {
	defer close(j.done)
	defer l.occupied.Store(false)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker: %s panicked: %v", j.name, r)
		}
	}()
	log.Printf("Worker: starting %s", j.name)
	j.fn(j.ctx)
	log.Printf("Worker: finished %s", j.name)
}

// Submit admits fn if the lane is free and returns a channel closed when it finishes.
func (l *Lane) Submit(ctx context.Context, name string, fn Job) (<-chan struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if !l.occupied.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	j := job{ctx: ctx, name: name, fn: fn, done: make(chan struct{})}
	select {
	case l.jobs <- j:
		return j.done, nil
	default:
		l.occupied.Store(false)
		return nil, ErrBusy
	}
}

// Run submits fn and waits for it to finish. Cancelling ctx stops the wait,
// not the job: batches run to completion once started.
func (l *Lane) Run(ctx context.Context, name string, fn Job) error {
	done, err := l.Submit(context.WithoutCancel(ctx), name, fn)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lane) Busy() bool {
	return l.occupied.Load()
}

// Close stops the lane after draining current work.
func (l *Lane) Close() {
	l.mu.Lock()
	if l.closed.Swap(true) {
		l.mu.Unlock()
		return
	}
	close(l.jobs)
	l.mu.Unlock()
	l.wg.Wait()
}
