package detail

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/modest/internal/keys"
	"github.com/nhle/modest/internal/model"
)

var replyKey = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")}

func TestViewWithoutHeader(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	assert.Contains(t, m.View(), "No message selected")

	_, cmd := m.Update(replyKey)
	assert.Nil(t, cmd)
}

func TestRenderHeaderAndReply(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 30)
	h := model.Header{
		ID:        "work/7",
		AccountID: "work",
		UID:       7,
		MessageID: "abc@example.com",
		Subject:   "Quarterly report",
		From:      "Alex <alex@example.com>",
		To:        []string{"me@work.example"},
		Date:      time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local),
	}
	m.SetHeader(h)

	view := m.View()
	assert.Contains(t, view, "Quarterly report")
	assert.Contains(t, view, "alex@example.com")
	assert.Contains(t, view, "abc@example.com")

	got, ok := m.Header()
	require.True(t, ok)
	assert.Equal(t, h.ID, got.ID)

	_, cmd := m.Update(replyKey)
	require.NotNil(t, cmd)
	reply, ok := cmd().(ReplyMsg)
	require.True(t, ok)
	assert.Equal(t, "work/7", reply.Header.ID)
}
