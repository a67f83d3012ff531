// Package compose is the form used to write a new message or a reply.
package compose

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/theme"
)

// SubmitMsg is dispatched when the form is completed.
type SubmitMsg struct {
	Message model.OutboxMessage
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	accountID string
	to        string
	subject   string
	body      string
	inReplyTo string
}

// Model is the Bubble Tea model for the compose form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	accounts []model.AccountConfig
	reply    bool
	width    int
	height   int
}

// New creates a compose form offering accounts as senders.
func New(accounts []model.AccountConfig, width, height int) Model {
	return Model{
		fb:       &formBindings{},
		accounts: accounts,
		width:    width,
		height:   height,
	}
}

// StartNew resets the form for a new message.
func (m *Model) StartNew() tea.Cmd {
	m.reply = false
	*m.fb = formBindings{}
	if len(m.accounts) > 0 {
		m.fb.accountID = m.accounts[0].ID
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// StartReply fills the form with a reply to h, sent from h's account.
func (m *Model) StartReply(h model.Header) tea.Cmd {
	m.reply = true
	*m.fb = formBindings{
		accountID: h.AccountID,
		to:        h.From,
		subject:   ReplySubject(h.Subject),
		inReplyTo: h.MessageID,
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.handleSubmit()
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the compose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Message"
	if m.reply {
		titleText = "Reply"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	opts := make([]huh.Option[string], 0, len(m.accounts))
	for _, a := range m.accounts {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%s <%s>", a.Name, a.Email), a.ID))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("From").
				Options(opts...).
				Value(&m.fb.accountID).
				Validate(validateRequired("From")),
			huh.NewInput().
				Title("To").
				Placeholder("someone@example.com, other@example.com").
				Value(&m.fb.to).
				Validate(validateRecipients),
			huh.NewInput().
				Title("Subject").
				Value(&m.fb.subject),
			huh.NewText().
				Title("Body").
				Lines(8).
				Value(&m.fb.body),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	to, _ := ParseRecipients(m.fb.to)
	msg := model.OutboxMessage{
		AccountID: m.fb.accountID,
		To:        to,
		Subject:   strings.TrimSpace(m.fb.subject),
		Body:      m.fb.body,
		InReplyTo: m.fb.inReplyTo,
	}
	return func() tea.Msg { return SubmitMsg{Message: msg} }
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}

// ReplySubject prefixes subject with "Re: " unless it already has one.
func ReplySubject(subject string) string {
	s := strings.TrimSpace(subject)
	if len(s) >= 3 && strings.EqualFold(s[:3], "re:") {
		return s
	}
	return "Re: " + s
}

// ParseRecipients splits a comma-separated address list into bare
// addresses.
func ParseRecipients(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	list, err := mail.ParseAddressList(s)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient list: %w", err)
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out, nil
}

func validateRecipients(s string) error {
	_, err := ParseRecipients(s)
	return err
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
