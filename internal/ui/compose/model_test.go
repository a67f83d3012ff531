package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/modest/internal/model"
)

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Lunch", ReplySubject("Lunch"))
	assert.Equal(t, "RE: Lunch", ReplySubject("RE: Lunch"))
	assert.Equal(t, "Re: ", ReplySubject(""))
}

func TestParseRecipients(t *testing.T) {
	got, err := ParseRecipients("Alex <alex@example.com>, sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"alex@example.com", "sam@example.com"}, got)

	_, err = ParseRecipients("  ")
	assert.Error(t, err)

	_, err = ParseRecipients("not an address")
	assert.Error(t, err)
}

func TestStartReplyFillsForm(t *testing.T) {
	m := New([]model.AccountConfig{{ID: "home"}, {ID: "work"}}, 80, 24)
	m.StartReply(model.Header{
		AccountID: "work",
		From:      "Alex <alex@example.com>",
		Subject:   "Report",
		MessageID: "abc@example.com",
	})
	m.fb.body = "Thanks!"

	msg, ok := m.handleSubmit()().(SubmitMsg)
	require.True(t, ok)
	assert.Equal(t, model.OutboxMessage{
		AccountID: "work",
		To:        []string{"alex@example.com"},
		Subject:   "Re: Report",
		Body:      "Thanks!",
		InReplyTo: "abc@example.com",
	}, msg.Message)
	assert.Contains(t, m.View(), "Reply")
}

func TestStartNewDefaultsToFirstAccount(t *testing.T) {
	m := New([]model.AccountConfig{{ID: "home"}, {ID: "work"}}, 80, 24)
	m.fb.subject = "stale"

	m.StartNew()
	assert.Equal(t, "home", m.fb.accountID)
	assert.Empty(t, m.fb.subject)
	assert.Contains(t, m.View(), "New Message")
}
