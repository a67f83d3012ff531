package ops

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/modest/internal/email"
	"github.com/nhle/modest/internal/logging"
	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/store"
	"github.com/nhle/modest/tests/testutil"
)

// fakeConnector fails Send for the subjects in failFor.
type fakeConnector struct {
	mu        sync.Mutex
	envelopes []email.Envelope
	fetchErr  error
	failFor   map[string]error
	sent      []string
}

func (c *fakeConnector) Fetcher(model.AccountConfig) (Fetcher, error) { return c, nil }
func (c *fakeConnector) Sender(model.AccountConfig) (Sender, error)   { return c, nil }

func (c *fakeConnector) FetchEnvelopes(context.Context, time.Time, int) ([]email.Envelope, error) {
	return c.envelopes, c.fetchErr
}

func (c *fakeConnector) Send(_ context.Context, msg model.OutboxMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.failFor[msg.Subject]; ok {
		return err
	}
	c.sent = append(c.sent, msg.Subject)
	return nil
}

type fakeDevice bool

func (d fakeDevice) IsOnline() bool { return bool(d) }

var testAcct = model.AccountConfig{ID: "work", Email: "me@work.example"}

func newFactory(t *testing.T, conn Connector, online bool) (*Factory, store.Store) {
	t.Helper()
	st := testutil.NewTestStore(t)
	return NewFactory(st, conn, fakeDevice(online), logging.NewTest()), st
}

func TestUpdateAccountStoresHeaders(t *testing.T) {
	conn := &fakeConnector{envelopes: []email.Envelope{
		{UID: 7, Subject: "hello", From: "a@example.com", Date: time.Now()},
		{UID: 9, Subject: "again", From: "b@example.com", Date: time.Now()},
	}}
	f, st := newFactory(t, conn, true)

	op := f.UpdateAccount(testAcct, "poller")
	assert.Equal(t, mailop.TypeReceive, op.Type())
	assert.Equal(t, "poller", op.Source())

	op.Run(context.Background())
	require.Equal(t, mailop.StatusSuccess, op.Status(), "error: %v", op.Err())

	done, total := op.Progress()
	assert.Equal(t, 2, done)
	assert.Equal(t, 2, total)

	headers, err := st.GetHeaders(context.Background(), store.HeaderFilter{AccountID: &testAcct.ID})
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Contains(t, []string{headers[0].ID, headers[1].ID}, "work/7")
}

func TestUpdateAccountFailures(t *testing.T) {
	t.Run("offline", func(t *testing.T) {
		f, _ := newFactory(t, &fakeConnector{}, false)
		op := f.UpdateAccount(testAcct, nil)
		op.Run(context.Background())

		assert.Equal(t, mailop.StatusFailed, op.Status())
		assert.ErrorIs(t, op.Err(), ErrOffline)
	})

	t.Run("auth", func(t *testing.T) {
		conn := &fakeConnector{fetchErr: &email.AuthError{Protocol: "imap", Username: "me", Err: errors.New("no")}}
		f, _ := newFactory(t, conn, true)
		op := f.UpdateAccount(testAcct, nil)
		op.Run(context.Background())

		assert.Equal(t, mailop.StatusFailed, op.Status())
		assert.True(t, email.IsAuthError(op.Err()))
	})
}

func TestSendMessageMarksSent(t *testing.T) {
	conn := &fakeConnector{}
	f, st := newFactory(t, conn, true)
	testutil.QueueOutbox(t, st, testAcct.ID, "one")

	pending, err := st.PendingOutbox(context.Background(), testAcct.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	op := f.SendMessage(testAcct, pending[0], nil)
	op.Run(context.Background())
	require.Equal(t, mailop.StatusSuccess, op.Status(), "error: %v", op.Err())
	assert.Equal(t, []string{"one"}, conn.sent)

	n, err := st.CountPendingOutbox(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSendMessageFailureKeepsMessagePending(t *testing.T) {
	conn := &fakeConnector{failFor: map[string]error{"one": errors.New("550 mailbox unavailable")}}
	f, st := newFactory(t, conn, true)
	testutil.QueueOutbox(t, st, testAcct.ID, "one")

	pending, err := st.PendingOutbox(context.Background(), testAcct.ID)
	require.NoError(t, err)

	op := f.SendMessage(testAcct, pending[0], nil)
	op.Run(context.Background())
	assert.Equal(t, mailop.StatusFailed, op.Status())
	require.Error(t, op.Err())

	pending, err = st.PendingOutbox(context.Background(), testAcct.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "550")
}

func TestFlushOutbox(t *testing.T) {
	tests := []struct {
		name       string
		failFor    map[string]error
		wantStatus mailop.Status
		wantSent   []string
		wantLeft   int
	}{
		{
			name:       "all sent",
			wantStatus: mailop.StatusSuccess,
			wantSent:   []string{"a", "b", "c"},
		},
		{
			name:       "partial failure",
			failFor:    map[string]error{"b": errors.New("timeout")},
			wantStatus: mailop.StatusFinishedWithErrors,
			wantSent:   []string{"a", "c"},
			wantLeft:   1,
		},
		{
			name: "all failed",
			failFor: map[string]error{
				"a": errors.New("refused"),
				"b": errors.New("refused"),
				"c": errors.New("refused"),
			},
			wantStatus: mailop.StatusFailed,
			wantLeft:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConnector{failFor: tt.failFor}
			f, st := newFactory(t, conn, true)
			testutil.QueueOutbox(t, st, testAcct.ID, "a", "b", "c")

			op := f.FlushOutbox(testAcct, mailop.TypeShutdown, nil)
			op.Run(context.Background())

			assert.Equal(t, tt.wantStatus, op.Status())
			assert.Equal(t, tt.wantSent, conn.sent)
			if tt.wantStatus == mailop.StatusSuccess {
				assert.NoError(t, op.Err())
			} else {
				assert.Error(t, op.Err())
			}

			n, err := st.CountPendingOutbox(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantLeft, n)
		})
	}
}

func TestFlushOutboxSkipsClaimedMessages(t *testing.T) {
	conn := &fakeConnector{}
	f, st := newFactory(t, conn, true)
	ids := testutil.QueueOutbox(t, st, testAcct.ID, "in-flight", "waiting")

	ok, err := st.ClaimOutbox(context.Background(), ids[0])
	require.NoError(t, err)
	require.True(t, ok)

	op := f.FlushOutbox(testAcct, mailop.TypeShutdown, nil)
	op.Run(context.Background())

	assert.Equal(t, mailop.StatusSuccess, op.Status())
	assert.Equal(t, []string{"waiting"}, conn.sent)
}

func TestSendMessageDeliversOnce(t *testing.T) {
	conn := &fakeConnector{}
	f, st := newFactory(t, conn, true)
	testutil.QueueOutbox(t, st, testAcct.ID, "hello")
	pending, err := st.PendingOutbox(context.Background(), testAcct.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	first := f.SendMessage(testAcct, pending[0], nil)
	first.Run(context.Background())
	again := f.SendMessage(testAcct, pending[0], nil)
	again.Run(context.Background())

	assert.Equal(t, mailop.StatusSuccess, first.Status())
	assert.Equal(t, mailop.StatusSuccess, again.Status())
	assert.Equal(t, []string{"hello"}, conn.sent)
}

func TestFlushOutboxEmptyIsSuccess(t *testing.T) {
	f, _ := newFactory(t, &fakeConnector{}, true)
	op := f.FlushOutbox(testAcct, mailop.TypeSend, nil)
	op.Run(context.Background())

	assert.Equal(t, mailop.StatusSuccess, op.Status())
	assert.Equal(t, mailop.TypeSend, op.Type())
}

func TestEmailConnector(t *testing.T) {
	conn := EmailConnector{Password: func(model.AccountConfig) (string, error) { return "pw", nil }}

	_, err := conn.Fetcher(model.AccountConfig{ID: "x"})
	assert.Error(t, err, "missing host")

	acct := model.AccountConfig{ID: "x", Name: "X", Email: "x@example.com", IMAPHost: "imap", IMAPPort: "993", SMTPHost: "smtp", SMTPPort: "465"}
	fetcher, err := conn.Fetcher(acct)
	require.NoError(t, err)
	assert.IsType(t, &email.IMAPClient{}, fetcher)

	sender, err := conn.Sender(acct)
	require.NoError(t, err)
	assert.IsType(t, &email.SMTPSender{}, sender)

	failing := EmailConnector{Password: func(model.AccountConfig) (string, error) { return "", errors.New("locked") }}
	_, err = failing.Sender(acct)
	assert.Error(t, err)
}
