package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/modest/internal/model"
)

func TestCompose(t *testing.T) {
	date := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	raw, err := Compose("Me <me@example.com>", model.OutboxMessage{
		To:        []string{"a@example.com", "Bee <b@example.com>"},
		Subject:   "Status update",
		Body:      "All green.\n",
		InReplyTo: "<orig-1@example.com>",
	}, date)
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer mr.Close()

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Status update", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "a@example.com", to[0].Address)
	assert.Equal(t, "Bee", to[1].Name)

	inReplyTo, err := mr.Header.MsgIDList("In-Reply-To")
	require.NoError(t, err)
	assert.Equal(t, []string{"orig-1@example.com"}, inReplyTo)

	msgID, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, msgID)

	got, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(got))

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, "All green.\n", string(body))
}

func TestComposeRejectsBadAddress(t *testing.T) {
	_, err := Compose("me@example.com", model.OutboxMessage{
		To: []string{"not an address"},
	}, time.Now())
	assert.Error(t, err)

	_, err = Compose("", model.OutboxMessage{To: []string{"a@example.com"}}, time.Now())
	assert.Error(t, err)
}

func TestIsAuthError(t *testing.T) {
	authErr := &AuthError{Protocol: "imap", Username: "me", Err: errors.New("bad password")}

	assert.True(t, IsAuthError(authErr))
	assert.True(t, IsAuthError(fmt.Errorf("updating account: %w", authErr)))
	assert.False(t, IsAuthError(errors.New("timeout")))
	assert.Contains(t, authErr.Error(), "imap")
	assert.ErrorIs(t, authErr, authErr.Err)
}

func TestCollectEnvelopesLogsDroppedMessages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := NewIMAPClient(ServerConfig{Host: "imap.example.com"}, zap.New(core).Sugar())

	msgs := []struct {
		buf *imapclient.FetchMessageBuffer
		err error
	}{
		{buf: &imapclient.FetchMessageBuffer{UID: 3, Envelope: &imap.Envelope{Subject: "first"}}},
		{err: errors.New("short read")},
		{buf: &imapclient.FetchMessageBuffer{UID: 5, Envelope: &imap.Envelope{Subject: "second"}}},
	}
	i := 0
	envs := c.collectEnvelopes(func() (*imapclient.FetchMessageBuffer, bool, error) {
		if i == len(msgs) {
			return nil, false, nil
		}
		m := msgs[i]
		i++
		return m.buf, true, m.err
	})

	require.Len(t, envs, 2)
	assert.Equal(t, uint32(3), envs[0].UID)
	assert.Equal(t, "second", envs[1].Subject)

	dropped := logs.FilterMessage("Dropping unreadable IMAP message").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "imap.example.com", dropped[0].ContextMap()["host"])
}
