package mailop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkFunc performs the actual work of an Op. It must return promptly once
// ctx is canceled.
type WorkFunc func(ctx context.Context, op *Op) error

// Op is the standard Operation implementation: a work function plus the
// lifecycle bookkeeping the queue and the UI rely on.
type Op struct {
	id      string
	typ     Type
	source  any
	account string
	work    WorkFunc

	mu         sync.Mutex
	status     Status
	err        error
	cancel     context.CancelFunc
	canceled   bool
	done       int
	total      int
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	doneCh     chan struct{}

	started  signal
	finished signal
}

// New creates a pending operation. account may be empty for operations not
// bound to a single account.
func New(typ Type, source any, account string, work WorkFunc) *Op {
	return &Op{
		id:        uuid.New().String(),
		typ:       typ,
		source:    source,
		account:   account,
		work:      work,
		status:    StatusPending,
		createdAt: time.Now(),
		doneCh:    make(chan struct{}),
	}
}

func (o *Op) ID() string  { return o.id }
func (o *Op) Type() Type  { return o.typ }
func (o *Op) Source() any { return o.source }

// Account returns the account the operation works against.
func (o *Op) Account() string { return o.account }

func (o *Op) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Op) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Times returns when the operation was created, started and finished. Zero
// values mean the transition has not happened.
func (o *Op) Times() (created, started, finished time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.createdAt, o.startedAt, o.finishedAt
}

// SetProgress records how much of the work is done.
func (o *Op) SetProgress(done, total int) {
	o.mu.Lock()
	o.done, o.total = done, total
	o.mu.Unlock()
}

// Progress returns the last values passed to SetProgress.
func (o *Op) Progress() (done, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done, o.total
}

// Done is closed once the operation reaches a terminal status.
func (o *Op) Done() <-chan struct{} {
	return o.doneCh
}

func (o *Op) OnStarted(h Handler) func() {
	return o.started.connect(h)
}

func (o *Op) OnFinished(h Handler) func() {
	return o.finished.connect(h)
}

// Start runs the operation in a new goroutine.
func (o *Op) Start(ctx context.Context) {
	go o.Run(ctx)
}

// Run executes the work function on the calling goroutine. It does nothing
// if the operation is no longer pending.
func (o *Op) Run(ctx context.Context) {
	o.mu.Lock()
	if o.status != StatusPending {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.status = StatusInProgress
	o.startedAt = time.Now()
	o.mu.Unlock()
	defer cancel()

	o.started.emit(o)

	var err error
	if o.work != nil {
		err = o.work(ctx, o)
	}
	o.finish(err)
}

// Cancel moves a pending operation straight to canceled, or cancels the
// context of a running one. Terminal operations are left alone.
func (o *Op) Cancel() {
	o.mu.Lock()
	switch o.status {
	case StatusPending:
		o.status = StatusCanceled
		o.finishedAt = time.Now()
		o.mu.Unlock()
		close(o.doneCh)
		o.finished.emit(o)
		return
	case StatusInProgress:
		o.canceled = true
		cancel := o.cancel
		o.mu.Unlock()
		cancel()
		return
	}
	o.mu.Unlock()
}

func (o *Op) finish(err error) {
	o.mu.Lock()
	switch {
	case o.canceled, errors.Is(err, context.Canceled):
		o.status = StatusCanceled
	case err == nil:
		o.status = StatusSuccess
	case errors.Is(err, ErrFinishedWithErrors):
		o.status = StatusFinishedWithErrors
		o.err = err
	default:
		o.status = StatusFailed
		o.err = err
	}
	o.finishedAt = time.Now()
	o.mu.Unlock()

	close(o.doneCh)
	o.finished.emit(o)
}

func (o *Op) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s]", shortID(o.id), o.typ, o.status)
	if o.account != "" {
		fmt.Fprintf(&b, " account=%s", o.account)
	}
	if o.total > 0 {
		fmt.Fprintf(&b, " %d/%d", o.done, o.total)
	}
	if o.err != nil {
		fmt.Fprintf(&b, " error=%q", o.err.Error())
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ Operation = (*Op)(nil)

// signal is a list of handlers that can be disconnected individually.
type signal struct {
	mu       sync.Mutex
	next     uint64
	handlers []handlerEntry
}

type handlerEntry struct {
	id uint64
	h  Handler
}

func (s *signal) connect(h Handler) func() {
	s.mu.Lock()
	s.next++
	id := s.next
	s.handlers = append(s.handlers, handlerEntry{id: id, h: h})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.handlers {
			if e.id == id {
				s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// emit calls every connected handler with the lock released, so handlers
// may disconnect themselves.
func (s *signal) emit(op Operation) {
	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.handlers))
	for _, e := range s.handlers {
		handlers = append(handlers, e.h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(op)
	}
}
