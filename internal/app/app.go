package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/modest/internal/keys"
	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/queue"
	appsync "github.com/nhle/modest/internal/sync"
	"github.com/nhle/modest/internal/theme"
	"github.com/nhle/modest/internal/ui"
	"github.com/nhle/modest/internal/ui/compose"
	"github.com/nhle/modest/internal/ui/detail"
	helpview "github.com/nhle/modest/internal/ui/help"
	"github.com/nhle/modest/internal/ui/inbox"
	"github.com/nhle/modest/internal/ui/journal"
	"github.com/nhle/modest/internal/ui/opsview"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	sendTimeout            = 10 * time.Second
)

// shutdownDoneMsg is sent once App.Shutdown returns.
type shutdownDoneMsg struct {
	err error
}

// flushStartedMsg reports how many outbox flushes were queued at startup.
type flushStartedMsg struct {
	count int
	err   error
}

// sendQueuedMsg reports that a composed message reached the outbox.
type sendQueuedMsg struct {
	err error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewOps ViewState = iota
	ViewInbox
	ViewDetail
	ViewCompose
	ViewJournal
	ViewHelp
)

// Model is the root Bubble Tea model that manages view routing and layout
// on top of an App.
type Model struct {
	app           *App
	currentView   ViewState
	previousView  ViewState
	layout        ui.Layout
	keys          *keys.KeyMap
	opsView       opsview.Model
	inboxView     inbox.Model
	detailView    detail.Model
	composeView   compose.Model
	journalView   journal.Model
	helpView      helpview.Model
	ready         bool
	quitting      bool
	statusMessage string
	authError     string
}

// NewModel creates the root application model for a.
func NewModel(a *App) Model {
	km := keys.DefaultKeyMap()
	accounts := a.Accounts()
	ids := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		ids = append(ids, acct.ID)
	}
	return Model{
		app:         a,
		currentView: ViewOps,
		keys:        km,
		opsView:     opsview.New(a.Queue(), km, 80, 24),
		inboxView:   inbox.New(a.Store(), km, ids, 80, 24),
		detailView:  detail.New(km, 80, 24),
		composeView: compose.New(accounts, 80, 24),
		journalView: journal.New(a.Store(), 80, 24),
		helpView:    helpview.New(km, 80, 24),
	}
}

// Init subscribes to the queue, starts the poller and sends any mail left
// in the outbox.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.opsView.Init(),
		m.app.Poller().Start(),
		m.flushOutbox(),
		m.inboxView.Load(),
	)
}

func (m Model) flushOutbox() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		n, err := a.FlushOutbox(context.Background(), mailop.TypeSend)
		return flushStartedMsg{count: n, err: err}
	}
}

func (m Model) send(msg compose.SubmitMsg) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		_, err := a.Send(ctx, msg.Message)
		return sendQueuedMsg{err: err}
	}
}

func (m Model) shutdown() tea.Cmd {
	a := m.app
	timeout := defaultShutdownTimeout
	if sec := a.Config().Shutdown.TimeoutSec; sec > 0 {
		timeout = time.Duration(sec) * time.Second
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return shutdownDoneMsg{err: a.Shutdown(ctx)}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := msg.Width
		contentHeight := m.layout.ContentHeight()
		m.opsView.SetSize(contentWidth, contentHeight)
		m.inboxView.SetSize(contentWidth, contentHeight)
		m.detailView.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.journalView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		return m, nil

	case opsview.EventMsg:
		var cmd tea.Cmd
		m.opsView, cmd = m.opsView.Update(msg)
		if m.currentView == ViewJournal && msg.Event.Changed.Notification == queue.Removed {
			return m, tea.Batch(cmd, m.journalView.Load())
		}
		return m, cmd

	case opsview.EmptyMsg:
		if !m.quitting {
			m.statusMessage = ""
		}
		return m, nil

	case appsync.UpdateResultMsg:
		cmds := []tea.Cmd{m.app.Poller().WaitForNextResult()}
		switch {
		case msg.AuthError:
			m.authError = fmt.Sprintf("%s: authentication failed, run 'modest account add' to update the password", msg.AccountID)
		case msg.Error == nil:
			m.authError = ""
			cmds = append(cmds, m.inboxView.Load())
		}
		return m, tea.Batch(cmds...)

	case flushStartedMsg:
		if msg.err != nil {
			m.statusMessage = "Outbox: " + msg.err.Error()
		} else if msg.count > 0 {
			m.statusMessage = fmt.Sprintf("Sending outbox for %d account(s)", msg.count)
		}
		return m, nil

	case sendQueuedMsg:
		if msg.err != nil {
			m.statusMessage = "Send: " + msg.err.Error()
		} else {
			m.statusMessage = "Message queued"
		}
		return m, nil

	case shutdownDoneMsg:
		m.opsView.Close()
		if msg.err != nil {
			m.app.Log().Warnw("Shutdown incomplete", "error", msg.err)
		}
		return m, tea.Quit

	case inbox.LoadedMsg:
		var cmd tea.Cmd
		m.inboxView, cmd = m.inboxView.Update(msg)
		return m, cmd

	case inbox.SelectedMsg:
		m.detailView.SetHeader(msg.Header)
		m.currentView = ViewDetail
		return m, nil

	case detail.ReplyMsg:
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m, m.composeView.StartReply(msg.Header)

	case compose.SubmitMsg:
		m.currentView = ViewOps
		m.statusMessage = "Sending…"
		return m, m.send(msg)

	case compose.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case journal.LoadedMsg:
		var cmd tea.Cmd
		m.journalView, cmd = m.journalView.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.quitting {
		// A second interrupt skips the final flush.
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}

	// Text input owns the keyboard apart from interrupts.
	if msg.String() != "ctrl+c" {
		switch {
		case m.currentView == ViewCompose:
			if key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}
			return m.updateActiveView(msg)
		case m.currentView == ViewInbox && m.inboxView.Searching():
			return m.updateActiveView(msg)
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.statusMessage = "Finishing queued operations…"
		return m, m.shutdown()

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Back):
		switch m.currentView {
		case ViewDetail:
			m.currentView = ViewInbox
		default:
			m.currentView = ViewOps
		}
		return m, nil

	case key.Matches(msg, m.keys.Inbox):
		if m.currentView == ViewInbox {
			m.currentView = ViewOps
			return m, nil
		}
		m.currentView = ViewInbox
		return m, m.inboxView.Load()

	case key.Matches(msg, m.keys.Compose):
		if len(m.app.Accounts()) == 0 {
			m.statusMessage = "No accounts configured, run 'modest account add'"
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m, m.composeView.StartNew()

	case key.Matches(msg, m.keys.Journal):
		if m.currentView == ViewJournal {
			m.currentView = ViewOps
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewJournal
		return m, m.journalView.Load()

	case key.Matches(msg, m.keys.Refresh):
		m.app.Poller().RefreshAll()
		m.statusMessage = "Updating accounts"
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if m.currentView == ViewOps {
			if op, ok := m.opsView.Selected(); ok {
				m.app.Queue().Cancel(op)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.CancelAll):
		m.app.Queue().CancelAll()
		m.statusMessage = "Canceled all operations"
		return m, nil

	case key.Matches(msg, m.keys.ToggleOffline):
		dev := m.app.Device()
		if dev.IsOnline() {
			dev.ForceOffline()
		} else if dev.IsForced() {
			dev.Reset()
		} else {
			dev.ForceOnline()
		}
		return m, nil
	}

	return m.updateActiveView(msg)
}

// updateActiveView forwards a message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewOps:
		m.opsView, cmd = m.opsView.Update(msg)
	case ViewInbox:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewJournal:
		m.journalView, cmd = m.journalView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("modest", m.headerStatus())

	var content string
	switch m.currentView {
	case ViewOps:
		content = m.opsView.View()
	case ViewInbox:
		content = m.inboxView.View()
	case ViewDetail:
		content = m.detailView.View()
	case ViewCompose:
		content = m.composeView.View()
	case ViewJournal:
		content = m.journalView.View()
	case ViewHelp:
		content = m.helpView.View()
	}

	return m.layout.Frame(header, content, m.layout.RenderStatusBar(m.statusLine()))
}

func (m Model) headerStatus() ui.QueueSummary {
	dev := m.app.Device()
	return ui.QueueSummary{
		Online:  dev.IsOnline(),
		Forced:  dev.IsForced(),
		Queued:  m.opsView.Len(),
		Running: m.opsView.Running(),
	}
}

func (m Model) statusLine() string {
	switch {
	case m.authError != "":
		return theme.ErrorStyle.Render(m.authError)
	case m.statusMessage != "":
		return m.statusMessage
	}

	bindings := m.keys.ShortHelp()
	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		hints = append(hints, b.Help().Key+" "+b.Help().Desc)
	}
	return strings.Join(hints, " · ")
}
