package inbox

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/theme"
)

// HeaderItem wraps a model.Header so it can be used in a bubbles/list.
type HeaderItem struct {
	Header model.Header
}

func (i HeaderItem) FilterValue() string { return i.Header.Subject }
func (i HeaderItem) Title() string       { return i.Header.Subject }

func (i HeaderItem) Description() string {
	return i.Header.From + " | " + relativeTime(i.Header.Date)
}

// Unread reports whether the server had not flagged the message as seen.
func (i HeaderItem) Unread() bool {
	return !slices.Contains(i.Header.Flags, `\Seen`)
}

// ItemDelegate renders one header per line.
type ItemDelegate struct{}

func (d ItemDelegate) Height() int                             { return 1 }
func (d ItemDelegate) Spacing() int                            { return 0 }
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

// Render draws a single header line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	hi, ok := item.(HeaderItem)
	if !ok {
		return
	}
	h := hi.Header

	marker := " "
	if hi.Unread() {
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	}

	account := lipgloss.NewStyle().
		Foreground(theme.ColorMagenta).
		Render(h.AccountID)

	subject := h.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	when := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(h.Date))

	line := fmt.Sprintf("%s %s %s  %s  %s", marker, account, subject, h.From, when)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 02")
	}
}
