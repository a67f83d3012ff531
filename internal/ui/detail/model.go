// Package detail shows the envelope of a single fetched message.
package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/modest/internal/keys"
	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/theme"
)

// ReplyMsg asks the parent to compose a reply to Header.
type ReplyMsg struct {
	Header model.Header
}

// Model is the header detail view.
type Model struct {
	header   *model.Header
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(msg, m.keys.Reply) {
			if m.header == nil {
				return m, nil
			}
			h := *m.header
			return m, func() tea.Msg { return ReplyMsg{Header: h} }
		}
	}

	// Scrolling goes to the viewport.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.header == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No message selected")
	}
	return m.viewport.View()
}

func (m Model) renderContent() string {
	h := m.header
	var sections []string

	subject := h.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(subject), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(12)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	field := func(name, value string) {
		if value == "" {
			return
		}
		sections = append(sections, metaStyle.Render(name+":")+valStyle.Render(value))
	}

	field("From", h.From)
	field("To", strings.Join(h.To, ", "))
	if !h.Date.IsZero() {
		field("Date", h.Date.Local().Format("2006-01-02 15:04"))
	}
	field("Account", h.AccountID)
	field("Flags", strings.Join(h.Flags, " "))
	field("Message-ID", h.MessageID)
	field("UID", fmt.Sprint(h.UID))

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	sections = append(sections, "", sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0))), "")

	hint := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
	sections = append(sections, hint.Render("Only headers are fetched. Press "+m.keys.Reply.Help().Key+" to reply."))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetHeader updates the message being displayed and re-renders the content.
func (m *Model) SetHeader(h model.Header) {
	m.header = &h
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Header returns the displayed message, if any.
func (m Model) Header() (model.Header, bool) {
	if m.header == nil {
		return model.Header{}, false
	}
	return *m.header, true
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.header != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
