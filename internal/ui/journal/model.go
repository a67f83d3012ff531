// Package journal shows the most recent finished mail operations.
package journal

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/theme"
)

const (
	recentLimit = 100
	loadTimeout = 5 * time.Second
)

// Source reads the operation journal.
type Source interface {
	RecentOperations(ctx context.Context, limit int) ([]model.OperationRecord, error)
}

// LoadedMsg carries journal entries read from the store.
type LoadedMsg struct {
	Records []model.OperationRecord
	Err     error
}

// Model is the operation log view.
type Model struct {
	source  Source
	table   table.Model
	records []model.OperationRecord
	err     error
	width   int
	height  int
}

// New creates the journal view.
func New(src Source, width, height int) Model {
	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(max(height-2, 1)),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(theme.ColorWhite).
		Background(theme.ColorBlue)
	t.SetStyles(styles)

	return Model{source: src, table: t, width: width, height: height}
}

func columns(width int) []table.Column {
	errWidth := width - 9 - 10 - 12 - 21 - 10
	if errWidth < 10 {
		errWidth = 10
	}
	return []table.Column{
		{Title: "Finished", Width: 9},
		{Title: "Type", Width: 10},
		{Title: "Account", Width: 12},
		{Title: "Status", Width: 21},
		{Title: "Error", Width: errWidth},
	}
}

// Load reads the latest entries.
func (m Model) Load() tea.Cmd {
	src := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		recs, err := src.RecentOperations(ctx, recentLimit)
		return LoadedMsg{Records: recs, Err: err}
	}
}

// Update handles messages for the journal view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.err = msg.Err
		if msg.Err == nil {
			m.records = msg.Records
			m.table.SetRows(rows(msg.Records))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func rows(recs []model.OperationRecord) []table.Row {
	out := make([]table.Row, 0, len(recs))
	for _, r := range recs {
		out = append(out, table.Row{
			r.FinishedAt.Local().Format("15:04:05"),
			r.Type,
			r.AccountID,
			r.Status,
			r.Error,
		})
	}
	return out
}

// Len returns the number of entries loaded.
func (m Model) Len() int {
	return len(m.records)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetHeight(max(height-2, 1))
}

// View renders the journal table.
func (m Model) View() string {
	if m.err != nil {
		return theme.ErrorStyle.Render("Error loading operation log: " + m.err.Error())
	}
	if len(m.records) == 0 {
		return theme.ListItemStyle.Render(theme.HelpStyle.Render("No operations recorded yet"))
	}
	return m.table.View()
}
