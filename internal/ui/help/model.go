// Package help renders the key reference together with the legend for
// operation statuses and device modes.
package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/modest/internal/keys"
	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/theme"
)

// legendStatuses are the statuses an operation shows in the busy list
// and the journal.
var legendStatuses = []struct {
	status mailop.Status
	desc   string
}{
	{mailop.StatusPending, "queued, not started"},
	{mailop.StatusInProgress, "running"},
	{mailop.StatusSuccess, "done"},
	{mailop.StatusFinishedWithErrors, "done, some messages failed"},
	{mailop.StatusFailed, "failed"},
	{mailop.StatusCanceled, "canceled"},
}

// Model is the help overlay.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates the help overlay for km.
func New(km *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	m := Model{keys: km, help: h}
	m.SetSize(width, height)
	return m
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(tea.Msg) (Model, tea.Cmd) { return m, nil }

// View renders the key reference and the legend.
func (m Model) View() string {
	section := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginTop(1)

	content := lipgloss.JoinVertical(lipgloss.Left,
		section.UnsetMarginTop().Render("Keyboard Shortcuts"),
		"",
		m.help.View(m.keys),
		section.Render("Operation status"),
		statusLegend(),
		section.Render("Connectivity"),
		modeLegend(),
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

func statusLegend() string {
	lines := make([]string, 0, len(legendStatuses))
	for _, l := range legendStatuses {
		name := l.status.String()
		lines = append(lines, theme.StatusStyle(name).Render(name)+" "+l.desc)
	}
	return strings.Join(lines, "\n")
}

func modeLegend() string {
	return strings.Join([]string{
		theme.ModeStyle(true, false).Render("online") + "  network available",
		theme.ModeStyle(true, true).Render("online (forced)") + "  forced on, e.g. for the final send at exit",
		theme.ModeStyle(false, false).Render("offline") + "  nothing is sent or fetched",
	}, "\n")
}

// SetSize updates the overlay dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
