package queue

import (
	"sync"

	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/metrics"
)

// Notification says how the queue membership changed.
type Notification int

const (
	Added Notification = iota
	Removed
)

func (n Notification) String() string {
	if n == Added {
		return "added"
	}
	return "removed"
}

// Changed is emitted once per successful Add and once per successful Remove.
type Changed struct {
	Op           mailop.Operation
	Notification Notification
}

// EventKind distinguishes the events delivered by Subscribe.
type EventKind int

const (
	EventChanged EventKind = iota
	EventEmpty
)

// Event is a queue notification delivered over a channel. Changed is only
// set for EventChanged.
type Event struct {
	Kind    EventKind
	Changed Changed
}

type changedObserver struct {
	id uint64
	fn func(Changed)
}

type emptyObserver struct {
	id uint64
	fn func()
}

type observers struct {
	mu      sync.Mutex
	next    uint64
	changed []changedObserver
	empty   []emptyObserver
}

// OnChanged registers fn for membership changes. Observers are called
// without the queue lock held and may call back into the queue.
func (q *Queue) OnChanged(fn func(Changed)) (unsubscribe func()) {
	o := &q.observers
	o.mu.Lock()
	o.next++
	id := o.next
	o.changed = append(o.changed, changedObserver{id: id, fn: fn})
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, c := range o.changed {
			if c.id == id {
				o.changed = append(o.changed[:i:i], o.changed[i+1:]...)
				return
			}
		}
	}
}

// OnEmpty registers fn for the deferred "queue empty" notification.
func (q *Queue) OnEmpty(fn func()) (unsubscribe func()) {
	o := &q.observers
	o.mu.Lock()
	o.next++
	id := o.next
	o.empty = append(o.empty, emptyObserver{id: id, fn: fn})
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, e := range o.empty {
			if e.id == id {
				o.empty = append(o.empty[:i:i], o.empty[i+1:]...)
				return
			}
		}
	}
}

// Subscribe returns a channel receiving every queue event. Delivery never
// blocks the queue: events that do not fit in the buffer are dropped. The
// returned function unsubscribes and closes the channel.
func (q *Queue) Subscribe(buffer int) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, buffer)}
	unChanged := q.OnChanged(func(c Changed) {
		s.send(Event{Kind: EventChanged, Changed: c})
	})
	unEmpty := q.OnEmpty(func() {
		s.send(Event{Kind: EventEmpty})
	})

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			unChanged()
			unEmpty()
			s.close()
		})
	}
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func (s *subscriber) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		metrics.EventsDropped.Inc()
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	close(s.ch)
}

func (q *Queue) emitChanged(c Changed) {
	o := &q.observers
	o.mu.Lock()
	fns := make([]func(Changed), 0, len(o.changed))
	for _, obs := range o.changed {
		fns = append(fns, obs.fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (q *Queue) emitEmpty() {
	o := &q.observers
	o.mu.Lock()
	fns := make([]func(), 0, len(o.empty))
	for _, obs := range o.empty {
		fns = append(fns, obs.fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
