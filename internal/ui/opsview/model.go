// Package opsview renders the mail operation queue as a live busy indicator.
package opsview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/modest/internal/keys"
	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/queue"
	"github.com/nhle/modest/internal/theme"
)

// eventBuffer is the subscription channel capacity. Each event re-reads
// the whole queue, so drops only delay a redraw.
const eventBuffer = 64

// Queue is the part of the operation queue the view reads.
type Queue interface {
	Operations() []mailop.Operation
	Subscribe(buffer int) (<-chan queue.Event, func())
}

// EventMsg carries a queue event to the Bubble Tea runtime.
type EventMsg struct {
	Event queue.Event
}

// ClosedMsg is sent once the queue subscription ends.
type ClosedMsg struct{}

// EmptyMsg is sent when the queue reports it became empty. Parents use it
// to finish a pending quit.
type EmptyMsg struct{}

// Model is the operation queue view.
type Model struct {
	queue       Queue
	keys        *keys.KeyMap
	events      <-chan queue.Event
	unsubscribe func()
	spinner     spinner.Model
	ops         []mailop.Operation
	cursor      int
	lastEmpty   time.Time
	width       int
	height      int
}

// New subscribes to q and creates the view.
func New(q Queue, km *keys.KeyMap, width, height int) Model {
	events, unsubscribe := q.Subscribe(eventBuffer)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorYellow)

	return Model{
		queue:       q,
		keys:        km,
		events:      events,
		unsubscribe: unsubscribe,
		spinner:     s,
		ops:         q.Operations(),
		width:       width,
		height:      height,
	}
}

// Init starts the spinner and the event subscription.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return ClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

// Update handles messages for the view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m.ops = m.queue.Operations()
		m.clampCursor()
		if msg.Event.Kind == queue.EventEmpty {
			m.lastEmpty = time.Now()
			return m, tea.Batch(m.waitForEvent(), func() tea.Msg { return EmptyMsg{} })
		}
		return m, m.waitForEvent()

	case ClosedMsg:
		m.ops = nil
		return m, nil

	case spinner.TickMsg:
		// Keep ticking while idle too: status and progress of queued
		// operations change without queue events.
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Down):
			m.cursor++
			m.clampCursor()
		case key.Matches(msg, m.keys.Up):
			m.cursor--
			m.clampCursor()
		}
	}

	return m, nil
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.ops) {
		m.cursor = len(m.ops) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Busy reports whether any operation is queued.
func (m Model) Busy() bool {
	return len(m.ops) > 0
}

// Len returns the number of queued operations shown.
func (m Model) Len() int {
	return len(m.ops)
}

// Running counts the operations that have started.
func (m Model) Running() int {
	n := 0
	for _, op := range m.ops {
		if op.Status() == mailop.StatusInProgress {
			n++
		}
	}
	return n
}

// Selected returns the operation under the cursor.
func (m Model) Selected() (mailop.Operation, bool) {
	if len(m.ops) == 0 {
		return nil, false
	}
	return m.ops[m.cursor], true
}

// Close ends the queue subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the queued operations, or an idle line.
func (m Model) View() string {
	if len(m.ops) == 0 {
		line := "idle"
		if !m.lastEmpty.IsZero() {
			line = fmt.Sprintf("idle since %s", m.lastEmpty.Format("15:04:05"))
		}
		return theme.ListItemStyle.Render(theme.HelpStyle.Render(line))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d operation(s) in progress\n\n", m.spinner.View(), len(m.ops))

	limit := len(m.ops)
	if m.height > 3 && limit > m.height-3 {
		limit = m.height - 3
	}
	for i := 0; i < limit; i++ {
		b.WriteString(m.renderOp(i))
		b.WriteString("\n")
	}
	if limit < len(m.ops) {
		b.WriteString(theme.HelpStyle.Render(fmt.Sprintf("  … %d more", len(m.ops)-limit)))
	}

	return b.String()
}

func (m Model) renderOp(i int) string {
	op := m.ops[i]
	status := op.Status().String()
	line := theme.StatusStyle(status).Render(fmt.Sprintf("%-12s", status)) + " " + op.String()

	if i == m.cursor {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}
