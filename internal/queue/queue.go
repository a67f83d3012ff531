package queue

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/metrics"
)

// Scheduler defers work to the main loop at low priority.
type Scheduler interface {
	IdleAdd(fn func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func())

func (f SchedulerFunc) IdleAdd(fn func()) { f(fn) }

// Device is the part of the network device the queue coordinates with
// during the shutdown sync.
type Device interface {
	IsForced() bool
	Reset()
}

// entry is one queued operation. source is recorded at Add time so lookups
// by source never call into the operation while the lock is held.
type entry struct {
	op                 mailop.Operation
	source             any
	disconnectStarted  func()
	disconnectFinished func()
}

func (e *entry) disconnect() {
	if e.disconnectStarted != nil {
		e.disconnectStarted()
	}
	if e.disconnectFinished != nil {
		e.disconnectFinished()
	}
}

// Queue tracks in-flight mail operations. It never runs operations itself;
// operations are removed when they emit "finished".
type Queue struct {
	mu           sync.Mutex
	ops          *list.List
	index        map[mailop.Operation]*list.Element
	emptyPending bool
	closed       bool

	runningShutdown atomic.Bool

	observers observers

	sched  Scheduler
	device Device
	log    *zap.SugaredLogger
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(q *Queue) { q.log = log }
}

// WithScheduler sets where the deferred empty check runs. The default runs
// it on a new goroutine.
func WithScheduler(s Scheduler) Option {
	return func(q *Queue) { q.sched = s }
}

// WithDevice sets the device reset when a regular operation starts during
// the shutdown sync.
func WithDevice(d Device) Option {
	return func(q *Queue) { q.device = d }
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		ops:   list.New(),
		index: make(map[mailop.Operation]*list.Element),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.log == nil {
		q.log = zap.NewNop().Sugar()
	}
	if q.sched == nil {
		q.sched = SchedulerFunc(func(fn func()) { go fn() })
	}
	return q
}

// Add appends op to the queue and starts tracking its lifecycle. Adding a nil
// or already queued operation is a programmer error; it is logged and
// ignored.
func (q *Queue) Add(op mailop.Operation) {
	if q == nil {
		return
	}
	if op == nil {
		q.log.Errorw("Refusing to add nil mail operation")
		return
	}

	src := op.Source()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.log.Warnw("Mail operation added after queue was closed", "op", op.ID())
		return
	}
	if _, ok := q.index[op]; ok {
		q.mu.Unlock()
		q.log.Warnw("Mail operation already queued", "op", op.ID(), "type", op.Type().String())
		return
	}
	e := &entry{op: op, source: src}
	el := q.ops.PushBack(e)
	q.index[op] = el
	n := q.ops.Len()
	q.mu.Unlock()

	metrics.OperationsAdded.WithLabelValues(op.Type().String()).Inc()
	metrics.OperationsInFlight.Set(float64(n))
	q.log.Debugw("Mail operation added", "op", op.ID(), "type", op.Type().String(), "queued", n)

	// Added goes out before the handlers are connected so observers never
	// see Removed first.
	q.emitChanged(Changed{Op: op, Notification: Added})

	disconnectStarted := op.OnStarted(q.onStarted)
	disconnectFinished := op.OnFinished(q.onFinished)

	q.mu.Lock()
	stillQueued := q.index[op] == el
	if stillQueued {
		e.disconnectStarted = disconnectStarted
		e.disconnectFinished = disconnectFinished
	}
	q.mu.Unlock()
	if !stillQueued {
		// Removed concurrently before the handlers were connected.
		disconnectStarted()
		disconnectFinished()
	}

	// An operation that finished before the finished handler was connected
	// would otherwise never leave the queue.
	if op.Status().Terminal() {
		q.Remove(op)
	}
}

// Remove drops op from the queue. Removing an operation that is not queued
// is a no-op.
func (q *Queue) Remove(op mailop.Operation) {
	if q == nil || op == nil {
		return
	}

	q.mu.Lock()
	el, ok := q.index[op]
	if !ok {
		q.mu.Unlock()
		q.log.Debugw("Mail operation not in queue", "op", op.ID())
		return
	}
	e := q.ops.Remove(el).(*entry)
	delete(q.index, op)
	n := q.ops.Len()
	scheduleCheck := n == 0 && !q.emptyPending && !q.closed
	if scheduleCheck {
		q.emptyPending = true
	}
	q.mu.Unlock()

	e.disconnect()

	q.emitChanged(Changed{Op: op, Notification: Removed})

	status := op.Status()
	if status != mailop.StatusSuccess && status != mailop.StatusCanceled && op.Err() == nil {
		metrics.ContractViolations.WithLabelValues(op.Type().String()).Inc()
		q.log.Warnw("Mail operation finished unsuccessfully without an error",
			"op", op.ID(),
			"type", op.Type().String(),
			"status", status.String())
	}

	metrics.OperationsRemoved.WithLabelValues(op.Type().String(), status.String()).Inc()
	metrics.OperationsInFlight.Set(float64(n))
	q.log.Debugw("Mail operation removed", "op", op.ID(), "status", status.String(), "queued", n)

	if scheduleCheck {
		q.sched.IdleAdd(q.checkEmpty)
	}
}

// checkEmpty runs from the scheduler. An operation added between the removal
// and this check suppresses the notification.
func (q *Queue) checkEmpty() {
	q.mu.Lock()
	q.emptyPending = false
	empty := q.ops.Len() == 0 && !q.closed
	q.mu.Unlock()

	if !empty {
		return
	}
	metrics.QueueEmpty.Inc()
	q.log.Debugw("Mail operation queue empty")
	q.emitEmpty()
}

// onStarted resets a forced device when a regular operation starts during
// the shutdown sync, then records whether a shutdown sync is now running.
func (q *Queue) onStarted(op mailop.Operation) {
	isShutdown := op.Type() == mailop.TypeShutdown
	if !isShutdown && q.RunningShutdown() && q.device != nil && q.device.IsForced() {
		q.log.Infow("Operation started during shutdown sync, resetting forced device mode",
			"op", op.ID(), "type", op.Type().String())
		q.device.Reset()
	}
	q.runningShutdown.Store(isShutdown)
}

func (q *Queue) onFinished(op mailop.Operation) {
	q.Remove(op)
}

// Cancel asks op to cancel itself. It leaves the queue through its own
// "finished" signal.
func (q *Queue) Cancel(op mailop.Operation) {
	if op == nil {
		return
	}
	op.Cancel()
}

// CancelAll cancels every operation queued at the time of the call. The lock
// is released before any operation is called, so cancel logic may re-enter
// the queue.
func (q *Queue) CancelAll() {
	ops := q.snapshot()
	q.log.Debugw("Canceling all mail operations", "count", len(ops))
	for _, op := range ops {
		op.Cancel()
	}
}

// GetBySource returns the queued operations whose source equals src, in
// queue order.
func (q *Queue) GetBySource(src any) []mailop.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	found := []mailop.Operation{}
	for el := q.ops.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.source == src {
			found = append(found, e.op)
		}
	}
	return found
}

// NumElements returns the number of queued operations.
func (q *Queue) NumElements() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ops.Len()
}

// Operations returns the queued operations in FIFO order.
func (q *Queue) Operations() []mailop.Operation {
	return q.snapshot()
}

// String returns a diagnostic dump: the count followed by one line per
// operation.
func (q *Queue) String() string {
	ops := q.snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "mail operation queue: %d operation(s)", len(ops))
	for _, op := range ops {
		b.WriteString("\n  ")
		b.WriteString(op.String())
	}
	return b.String()
}

// RunningShutdown reports whether the final outbox flush is underway. The
// flag is advisory.
func (q *Queue) RunningShutdown() bool {
	return q.runningShutdown.Load()
}

func (q *Queue) SetRunningShutdown(running bool) {
	q.runningShutdown.Store(running)
}

// Close disconnects from and cancels every remaining operation. Operations
// added afterwards are refused.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	entries := make([]*entry, 0, q.ops.Len())
	for el := q.ops.Front(); el != nil; el = el.Next() {
		entries = append(entries, el.Value.(*entry))
	}
	q.ops.Init()
	q.index = make(map[mailop.Operation]*list.Element)
	q.mu.Unlock()

	for _, e := range entries {
		e.disconnect()
		e.op.Cancel()
	}
	metrics.OperationsInFlight.Set(0)
	q.log.Debugw("Mail operation queue closed", "canceled", len(entries))
}

func (q *Queue) snapshot() []mailop.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := make([]mailop.Operation, 0, q.ops.Len())
	for el := q.ops.Front(); el != nil; el = el.Next() {
		ops = append(ops, el.Value.(*entry).op)
	}
	return ops
}
