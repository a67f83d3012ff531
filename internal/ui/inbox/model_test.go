package inbox

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/modest/internal/keys"
	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/store"
)

type fakeSource struct {
	headers []model.Header
	err     error
	filters *[]store.HeaderFilter
}

func (f fakeSource) GetHeaders(_ context.Context, filter store.HeaderFilter) ([]model.Header, error) {
	*f.filters = append(*f.filters, filter)
	return f.headers, f.err
}

func newTestInbox(t *testing.T, err error) (Model, *[]store.HeaderFilter) {
	t.Helper()
	filters := &[]store.HeaderFilter{}
	src := fakeSource{
		headers: []model.Header{
			{ID: "work/2", AccountID: "work", Subject: "Invoice 42", From: "Billing <billing@example.com>", Date: time.Now()},
			{ID: "home/1", AccountID: "home", Subject: "Dinner", From: "Sam <sam@example.com>", Flags: []string{`\Seen`}, Date: time.Now().Add(-time.Hour)},
		},
		err:     err,
		filters: filters,
	}
	return New(src, keys.DefaultKeyMap(), []string{"home", "work"}, 100, 20), filters
}

func load(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(LoadedMsg)
	require.True(t, ok)
	m, _ = m.Update(msg)
	return m
}

func TestLoadRendersHeaders(t *testing.T) {
	m, filters := newTestInbox(t, nil)
	assert.Contains(t, m.View(), "No messages fetched yet")

	m = load(t, m, m.Load())

	view := m.View()
	assert.Contains(t, view, "Invoice 42")
	assert.Contains(t, view, "Dinner")
	require.Len(t, *filters, 1)
	assert.Nil(t, (*filters)[0].AccountID)
	assert.Equal(t, pageSize, (*filters)[0].Limit)
}

func TestLoadError(t *testing.T) {
	m, _ := newTestInbox(t, errors.New("disk I/O error"))

	m = load(t, m, m.Load())
	assert.Contains(t, m.View(), "disk I/O error")
}

func TestSearchSetsQuery(t *testing.T) {
	m, filters := newTestInbox(t, nil)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	require.True(t, m.Searching())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("inv")})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Searching())

	load(t, m, cmd)
	require.Len(t, *filters, 1)
	require.NotNil(t, (*filters)[0].Query)
	assert.Equal(t, "inv", *(*filters)[0].Query)
}

func TestCycleAccountFilter(t *testing.T) {
	m, filters := newTestInbox(t, nil)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "home", m.Account())
	load(t, m, cmd)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "work", m.Account())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Empty(t, m.Account(), "wraps back to every account")

	require.NotEmpty(t, *filters)
	require.NotNil(t, (*filters)[0].AccountID)
	assert.Equal(t, "home", *(*filters)[0].AccountID)
}

func TestSelectOpensHeader(t *testing.T) {
	m, _ := newTestInbox(t, nil)
	m = load(t, m, m.Load())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	sel, ok := cmd().(SelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "work/2", sel.Header.ID)
}

func TestHeaderItemUnread(t *testing.T) {
	assert.True(t, HeaderItem{Header: model.Header{Flags: []string{`\Flagged`}}}.Unread())
	assert.False(t, HeaderItem{Header: model.Header{Flags: []string{`\Seen`}}}.Unread())
}
