package app

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/modest/internal/device"
	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/mainloop"
	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/ops"
	"github.com/nhle/modest/internal/queue"
	"github.com/nhle/modest/internal/store"
	appsync "github.com/nhle/modest/internal/sync"
)

// journalTimeout bounds a single operation_log write.
const journalTimeout = 5 * time.Second

// ErrClosed is returned by operations on an App that was shut down.
var ErrClosed = errors.New("application is shut down")

// Options configures New.
type Options struct {
	Config    *model.AppConfig
	Store     store.Store
	Connector ops.Connector
	Log       *zap.SugaredLogger

	// Online is the detected network state at startup.
	Online bool
}

// App owns the mail operation queue and everything that feeds it: the
// dispatch loop, the device, the store, the account poller and the
// operation journal.
type App struct {
	cfg      *model.AppConfig
	log      *zap.SugaredLogger
	loop     *mainloop.Loop
	device   *device.Device
	queue    *queue.Queue
	store    store.Store
	ops      *ops.Factory
	poller   *appsync.Poller
	accounts []model.AccountConfig

	ctx         context.Context
	cancel      context.CancelFunc
	loopDone    chan struct{}
	stopJournal func()
	closed      atomic.Bool
	closeOnce   gosync.Once
}

// New wires the application and starts its dispatch loop. Accounts from the
// configuration are saved to the store; the store's account list is then
// authoritative.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Store == nil {
		return nil, errors.New("app: store is required")
	}
	if opts.Connector == nil {
		return nil, errors.New("app: connector is required")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &model.AppConfig{}
	}

	for _, acct := range cfg.Accounts {
		if err := opts.Store.UpsertAccount(ctx, acct); err != nil {
			return nil, fmt.Errorf("saving configured account %s: %w", acct.ID, err)
		}
	}
	// Nothing is delivering yet; claims left by an earlier run are stale.
	if err := opts.Store.ResetOutboxClaims(ctx); err != nil {
		return nil, err
	}
	accounts, err := opts.Store.GetAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}

	loop := mainloop.New()
	dev := device.New(log.Named("device"), opts.Online)
	q := queue.New(
		queue.WithLogger(log.Named("queue")),
		queue.WithScheduler(loop),
		queue.WithDevice(dev),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:      cfg,
		log:      log,
		loop:     loop,
		device:   dev,
		queue:    q,
		store:    opts.Store,
		ops:      ops.NewFactory(opts.Store, opts.Connector, dev, log.Named("ops")),
		accounts: accounts,
		ctx:      runCtx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}

	a.poller = appsync.New(q, a.ops, a.Submit, log.Named("poller"))
	for _, acct := range accounts {
		a.poller.RegisterAccount(acct)
	}

	a.stopJournal = q.OnChanged(func(c queue.Changed) {
		if c.Notification == queue.Removed {
			a.record(c.Op)
		}
	})

	go func() {
		defer close(a.loopDone)
		loop.Run(runCtx)
	}()

	return a, nil
}

func (a *App) Queue() *queue.Queue      { return a.queue }
func (a *App) Device() *device.Device   { return a.device }
func (a *App) Poller() *appsync.Poller  { return a.poller }
func (a *App) Store() store.Store       { return a.store }
func (a *App) Config() *model.AppConfig { return a.cfg }
func (a *App) Log() *zap.SugaredLogger  { return a.log }

// Accounts returns the accounts known at startup.
func (a *App) Accounts() []model.AccountConfig {
	return append([]model.AccountConfig(nil), a.accounts...)
}

// Account returns the account with the given ID.
func (a *App) Account(id string) (model.AccountConfig, bool) {
	for _, acct := range a.accounts {
		if acct.ID == id {
			return acct, true
		}
	}
	return model.AccountConfig{}, false
}

// Submit queues op and starts it. Operations submitted after shutdown are
// canceled instead.
func (a *App) Submit(op *mailop.Op) {
	if a.closed.Load() {
		a.log.Warnw("Operation submitted after shutdown", "op", op.ID(), "type", op.Type().String())
		op.Cancel()
		return
	}
	a.queue.Add(op)
	op.Start(a.ctx)
}

// Send stores msg in the outbox and submits its delivery. It returns the
// operation so callers can wait on it.
func (a *App) Send(ctx context.Context, msg model.OutboxMessage) (*mailop.Op, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	acct, ok := a.Account(msg.AccountID)
	if !ok {
		return nil, fmt.Errorf("unknown account %q", msg.AccountID)
	}

	id, err := a.store.EnqueueOutbox(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = id

	op := a.ops.SendMessage(acct, msg, a)
	a.Submit(op)
	return op, nil
}

// FlushOutbox submits one operation of type typ per account with pending
// outbox messages and returns how many were submitted.
func (a *App) FlushOutbox(ctx context.Context, typ mailop.Type) (int, error) {
	return a.flushOutbox(ctx, typ, nil)
}

func (a *App) flushOutbox(ctx context.Context, typ mailop.Type, skip map[string]bool) (int, error) {
	pending, err := a.store.PendingOutbox(ctx, "")
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)
	submitted := 0
	for _, msg := range pending {
		if seen[msg.AccountID] || skip[msg.AccountID] {
			continue
		}
		seen[msg.AccountID] = true

		acct, ok := a.Account(msg.AccountID)
		if !ok {
			a.log.Warnw("Outbox message for unknown account", "message", msg.ID, "account", msg.AccountID)
			continue
		}
		a.Submit(a.ops.FlushOutbox(acct, typ, a))
		submitted++
	}
	return submitted, nil
}

// WaitEmpty blocks until the queue reports it is empty or ctx is done.
// It returns immediately when nothing is queued.
func (a *App) WaitEmpty(ctx context.Context) error {
	empty := make(chan struct{})
	var once gosync.Once
	markEmpty := func() { once.Do(func() { close(empty) }) }

	unsubscribe := a.queue.OnEmpty(markEmpty)
	defer unsubscribe()

	if a.queue.NumElements() == 0 {
		markEmpty()
	}

	select {
	case <-empty:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops automatic updates, cancels the updates still queued and
// lets deliveries already running finish. When the outbox still holds
// unsent mail it forces the device online and runs a final flush. It waits
// for the queue to drain or ctx to end, then closes the queue and the store.
func (a *App) Shutdown(ctx context.Context) error {
	if a.closed.Load() {
		return nil
	}

	a.poller.Stop()
	for _, op := range a.queue.GetBySource(a.poller) {
		a.queue.Cancel(op)
	}

	var waitErr error
	busy := a.awaitDeliveries(ctx)
	pending, err := a.store.CountPendingOutbox(ctx)
	if err != nil {
		a.log.Errorw("Failed to count outbox", "error", err)
	}
	if pending > 0 {
		a.log.Infow("Flushing outbox before exit", "messages", pending)
		a.device.ForceOnline()
		a.queue.SetRunningShutdown(true)
		if _, err := a.flushOutbox(ctx, mailop.TypeShutdown, busy); err != nil {
			a.log.Errorw("Failed to start final flush", "error", err)
		}
	}

	if err := a.WaitEmpty(ctx); err != nil {
		a.log.Warnw("Shutdown timed out", "queued", a.queue.NumElements(), "error", err)
		waitErr = err
	}
	a.queue.SetRunningShutdown(false)

	if err := a.Close(); err != nil {
		return errors.Join(waitErr, err)
	}
	return waitErr
}

// awaitDeliveries waits for the send and flush operations the App queued.
// It returns the accounts whose deliveries were still running when ctx
// ended; the final flush leaves those alone.
func (a *App) awaitDeliveries(ctx context.Context) map[string]bool {
	busy := make(map[string]bool)
	for _, op := range a.queue.GetBySource(a) {
		done, ok := op.(interface{ Done() <-chan struct{} })
		if !ok {
			continue
		}
		select {
		case <-done.Done():
		case <-ctx.Done():
			busy[mailop.AccountOf(op)] = true
		}
	}
	if len(busy) > 0 {
		a.log.Warnw("Deliveries still running at shutdown", "accounts", len(busy))
	}
	return busy
}

// Close cancels every queued operation, stops the dispatch loop and closes
// the store.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.poller.Stop()
		a.queue.Close()
		a.stopJournal()
		a.cancel()
		<-a.loopDone
		err = a.store.Close()
	})
	return err
}

// record writes a removed operation to the journal.
func (a *App) record(op mailop.Operation) {
	rec := model.OperationRecord{
		ID:        op.ID(),
		Type:      op.Type().String(),
		AccountID: mailop.AccountOf(op),
		Status:    op.Status().String(),
	}
	if err := op.Err(); err != nil {
		rec.Error = err.Error()
	}
	if timed, ok := op.(interface {
		Times() (created, started, finished time.Time)
	}); ok {
		created, started, finished := timed.Times()
		if started.IsZero() {
			started = created
		}
		rec.StartedAt, rec.FinishedAt = started, finished
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.FinishedAt
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := a.store.RecordOperation(ctx, rec); err != nil {
		a.log.Warnw("Failed to journal operation", "op", rec.ID, "error", err)
	}
}
