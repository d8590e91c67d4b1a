// Package loop runs every window-state mutation on one goroutine.
//
// Timer ticks, OS focus events, IPC messages and helper-process
// completions are produced elsewhere and posted here, so handlers never
// run concurrently with each other.
package loop

import (
	"context"
	"sync"
	"time"
)

const defaultQueue = 256

// Loop is a single-goroutine task queue
type Loop struct {
	tasks   chan func()
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
}

// New creates a loop with the given queue capacity
func New(queue int) *Loop {
	if queue <= 0 {
		queue = defaultQueue
	}
	return &Loop{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Run executes posted tasks until ctx is cancelled. Blocks.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post enqueues fn. It returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return false
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// After posts fn once d has elapsed. The returned timer can cancel it.
func (l *Loop) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		l.Post(fn)
	})
}

// Do posts fn and waits for it to finish.
func (l *Loop) Do(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
