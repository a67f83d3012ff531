package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/modest/internal/email"
	"github.com/nhle/modest/internal/logging"
	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/queue"
)

// gatedFactory builds updates that block until release is closed and then
// finish with err.
type gatedFactory struct {
	mu      gosync.Mutex
	release chan struct{}
	err     error
	built   []*mailop.Op
}

func newGatedFactory() *gatedFactory {
	return &gatedFactory{release: make(chan struct{})}
}

func (f *gatedFactory) UpdateAccount(acct model.AccountConfig, source any) *mailop.Op {
	op := mailop.New(mailop.TypeReceive, source, acct.ID, func(ctx context.Context, _ *mailop.Op) error {
		select {
		case <-f.release:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	f.mu.Lock()
	f.built = append(f.built, op)
	f.mu.Unlock()
	return op
}

func (f *gatedFactory) ops() []*mailop.Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*mailop.Op(nil), f.built...)
}

func newTestPoller(t *testing.T, f Factory) (*Poller, *queue.Queue) {
	t.Helper()
	q := queue.New(queue.WithLogger(logging.NewTest()))
	submit := func(op *mailop.Op) {
		q.Add(op)
		op.Start(context.Background())
	}
	p := New(q, f, submit, logging.NewTest())
	t.Cleanup(func() {
		p.Stop()
		q.Close()
	})
	return p, q
}

func TestRefreshSkipsAccountWithQueuedUpdate(t *testing.T) {
	f := newGatedFactory()
	p, q := newTestPoller(t, f)
	p.RegisterAccount(model.AccountConfig{ID: "work"})
	p.RegisterAccount(model.AccountConfig{ID: "home"})

	p.RefreshAll()
	p.RefreshAll()
	p.RefreshAccount("work")

	require.Len(t, f.ops(), 2)
	assert.Len(t, q.GetBySource(p), 2)

	close(f.release)
	for _, op := range f.ops() {
		<-op.Done()
	}
	require.Eventually(t, func() bool { return q.NumElements() == 0 }, time.Second, 5*time.Millisecond)

	// With the previous updates gone, a refresh schedules again.
	p.RefreshAccount("work")
	assert.Len(t, f.ops(), 3)
}

func TestRefreshUnknownAccountIsIgnored(t *testing.T) {
	f := newGatedFactory()
	p, _ := newTestPoller(t, f)

	p.RefreshAccount("nope")
	assert.Empty(t, f.ops())
}

func TestStartSchedulesEnabledAccounts(t *testing.T) {
	f := newGatedFactory()
	close(f.release)
	p, _ := newTestPoller(t, f)
	p.RegisterAccount(model.AccountConfig{ID: "on", Enabled: true, UpdateIntervalSec: 3600})
	p.RegisterAccount(model.AccountConfig{ID: "off", Enabled: false})

	cmd := p.Start()
	require.NotNil(t, cmd)
	assert.Nil(t, p.Start(), "second Start is a no-op")

	msg, ok := cmd().(UpdateResultMsg)
	require.True(t, ok)
	assert.Equal(t, "on", msg.AccountID)
	assert.Equal(t, mailop.StatusSuccess, msg.Status)

	ops := f.ops()
	require.Len(t, ops, 1)
	assert.Equal(t, "on", ops[0].Account())
}

func TestFinishedUpdateReportsAuthError(t *testing.T) {
	f := newGatedFactory()
	f.err = &email.AuthError{Protocol: "imap", Username: "me", Err: errors.New("bad credentials")}
	close(f.release)
	p, _ := newTestPoller(t, f)
	p.RegisterAccount(model.AccountConfig{ID: "work"})

	p.RefreshAccount("work")
	msg, ok := p.WaitForNextResult()().(UpdateResultMsg)
	require.True(t, ok)

	assert.Equal(t, mailop.StatusFailed, msg.Status)
	assert.True(t, msg.AuthError)

	require.Eventually(t, func() bool {
		return p.GetStatuses()[0].State == UpdateError
	}, time.Second, 5*time.Millisecond)
	assert.Error(t, p.GetStatuses()[0].Error)
}

func TestStopWaitsForPollers(t *testing.T) {
	f := newGatedFactory()
	close(f.release)
	p, _ := newTestPoller(t, f)
	p.RegisterAccount(model.AccountConfig{ID: "on", Enabled: true, UpdateIntervalSec: 3600})

	p.Start()
	p.Stop()
	p.Stop()

	assert.Len(t, f.ops(), 1)
}
