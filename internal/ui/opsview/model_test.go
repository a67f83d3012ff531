package opsview

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/modest/internal/keys"
	"github.com/nhle/modest/internal/logging"
	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/mainloop"
	"github.com/nhle/modest/internal/queue"
)

func newTestView(t *testing.T) (Model, *queue.Queue, *mainloop.Loop) {
	t.Helper()
	loop := mainloop.New()
	q := queue.New(queue.WithScheduler(loop), queue.WithLogger(logging.NewTest()))
	m := New(q, keys.DefaultKeyMap(), 80, 24)
	t.Cleanup(func() {
		m.Close()
		q.Close()
	})
	return m, q, loop
}

func TestIdleView(t *testing.T) {
	m, _, _ := newTestView(t)

	assert.False(t, m.Busy())
	assert.Contains(t, m.View(), "idle")
	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestEventsRefreshOperations(t *testing.T) {
	m, q, loop := newTestView(t)

	first := mailop.New(mailop.TypeReceive, nil, "work", nil)
	second := mailop.New(mailop.TypeSend, nil, "home", nil)
	q.Add(first)
	q.Add(second)

	msg := m.waitForEvent()()
	ev, ok := msg.(EventMsg)
	require.True(t, ok)
	assert.Equal(t, queue.EventChanged, ev.Event.Kind)

	m, _ = m.Update(ev)
	assert.True(t, m.Busy())
	assert.Equal(t, 2, m.Len())
	assert.Contains(t, m.View(), "account=work")
	assert.Contains(t, m.View(), "account=home")

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, first.ID(), sel.ID())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	sel, _ = m.Selected()
	assert.Equal(t, second.ID(), sel.ID())

	// The cursor stays on the last row.
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	sel, _ = m.Selected()
	assert.Equal(t, second.ID(), sel.ID())

	q.CancelAll()
	loop.Drain()
	m, cmd := m.Update(EventMsg{Event: queue.Event{Kind: queue.EventEmpty}})
	assert.NotNil(t, cmd)
	assert.False(t, m.Busy())
	assert.Contains(t, m.View(), "idle since")
}

func TestClosedSubscription(t *testing.T) {
	m, q, _ := newTestView(t)
	q.Add(mailop.New(mailop.TypeInfo, nil, "", nil))
	m, _ = m.Update(EventMsg{Event: queue.Event{Kind: queue.EventChanged}})
	require.True(t, m.Busy())

	m.Close()
	msg := m.waitForEvent()()
	_, drained := msg.(EventMsg)
	if drained {
		// A buffered event may still be pending; the next read sees the close.
		msg = m.waitForEvent()()
	}
	m, _ = m.Update(msg)
	assert.False(t, m.Busy())
}
