package mainloop

import (
	"context"
	"sync"
)

// Loop is a single-consumer task dispatcher with two priorities. Tasks added
// with Invoke run in FIFO order; tasks added with IdleAdd run only when no
// Invoke task is waiting.
type Loop struct {
	mu     sync.Mutex
	normal []func()
	idle   []func()
	wake   chan struct{}
}

// New creates an empty loop. Nothing is dispatched until Run, Iterate or
// Drain is called.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Invoke queues fn at default priority.
func (l *Loop) Invoke(fn func()) {
	l.mu.Lock()
	l.normal = append(l.normal, fn)
	l.mu.Unlock()
	l.signal()
}

// IdleAdd queues fn at low priority.
func (l *Loop) IdleAdd(fn func()) {
	l.mu.Lock()
	l.idle = append(l.idle, fn)
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued tasks of both priorities.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.normal) + len(l.idle)
}

// next pops the next task to run, preferring default priority.
func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.normal) > 0 {
		fn := l.normal[0]
		l.normal[0] = nil
		l.normal = l.normal[1:]
		return fn
	}
	if len(l.idle) > 0 {
		fn := l.idle[0]
		l.idle[0] = nil
		l.idle = l.idle[1:]
		return fn
	}
	return nil
}

// Iterate runs at most one task and reports whether one ran.
func (l *Loop) Iterate() bool {
	fn := l.next()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Drain runs tasks until both queues are empty, including tasks queued by
// the tasks it runs.
func (l *Loop) Drain() {
	for l.Iterate() {
	}
}

// Run dispatches tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.Drain()

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}
