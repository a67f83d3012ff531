// Package inbox lists the headers fetched from every account.
package inbox

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/modest/internal/keys"
	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/store"
	"github.com/nhle/modest/internal/theme"
)

// pageSize bounds a single load from the store.
const pageSize = 500

// Source loads stored headers.
type Source interface {
	GetHeaders(ctx context.Context, filter store.HeaderFilter) ([]model.Header, error)
}

// LoadedMsg carries the headers read from the store.
type LoadedMsg struct {
	Headers []model.Header
	Err     error
}

// SelectedMsg is sent when the user opens a header.
type SelectedMsg struct {
	Header model.Header
}

// Model is the header list view.
type Model struct {
	list        list.Model
	source      Source
	keys        *keys.KeyMap
	accounts    []string
	accountIdx  int // 0 shows every account
	query       string
	searchMode  bool
	searchInput textinput.Model
	err         error
	width       int
	height      int
}

// New creates a header list over src. accounts are the IDs cycled by the
// account filter.
func New(src Source, k *keys.KeyMap, accounts []string, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search subject or sender..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		source:      src,
		keys:        k,
		accounts:    accounts,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Account returns the account filter, or "" for every account.
func (m Model) Account() string {
	if m.accountIdx == 0 || m.accountIdx > len(m.accounts) {
		return ""
	}
	return m.accounts[m.accountIdx-1]
}

// Update handles messages for the header list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.err = msg.Err
		items := make([]list.Item, len(msg.Headers))
		for i, h := range msg.Headers {
			items[i] = HeaderItem{Header: h}
		}
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.query = m.searchInput.Value()
		return m, m.Load()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.query = ""
		return m, m.Load()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(HeaderItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMsg{Header: item.Header}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.CycleAccount):
		m.accountIdx = (m.accountIdx + 1) % (len(m.accounts) + 1)
		return m, m.Load()
	}

	// Navigation keys go to the list.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the header list.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if m.err != nil {
		return theme.ErrorStyle.Render("Failed to load headers: " + m.err.Error())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.query != "" || m.Account() != "" {
		return style.Render("No matching messages.\nPress esc or tab to clear the filter.")
	}
	return style.Render("No messages fetched yet.\n\nPress r to update accounts.")
}

// Load returns a tea.Cmd that reads headers with the current filter.
func (m Model) Load() tea.Cmd {
	filter := store.HeaderFilter{Limit: pageSize}
	if acct := m.Account(); acct != "" {
		filter.AccountID = &acct
	}
	if m.query != "" {
		q := m.query
		filter.Query = &q
	}
	src := m.source
	return func() tea.Msg {
		headers, err := src.GetHeaders(context.Background(), filter)
		return LoadedMsg{Headers: headers, Err: err}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
