package sync

import (
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/modest/internal/email"
	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/metrics"
	"github.com/nhle/modest/internal/model"
)

// UpdateState represents the current state of an account's auto-update.
type UpdateState int

const (
	UpdateIdle UpdateState = iota
	UpdateQueued
	UpdateError
)

// UpdateStatus holds the auto-update state for a single account.
type UpdateStatus struct {
	AccountID  string
	State      UpdateState
	LastUpdate time.Time
	Error      error
}

// UpdateResultMsg is a tea.Msg sent when an update scheduled by the
// poller finishes.
type UpdateResultMsg struct {
	AccountID string
	Status    mailop.Status
	Error     error
	AuthError bool
}

// Queue is the part of the operation queue the poller inspects.
type Queue interface {
	GetBySource(src any) []mailop.Operation
}

// Factory builds account update operations.
type Factory interface {
	UpdateAccount(acct model.AccountConfig, source any) *mailop.Op
}

// SubmitFunc queues and starts an operation.
type SubmitFunc func(op *mailop.Op)

// accountEntry holds a registered account.
type accountEntry struct {
	acct model.AccountConfig
}

// Poller schedules periodic account updates into the operation queue.
// Every operation it schedules has the poller as its source.
type Poller struct {
	queue    Queue
	factory  Factory
	submit   SubmitFunc
	log      *zap.SugaredLogger
	accounts []accountEntry
	statuses map[string]*UpdateStatus
	resultCh chan UpdateResultMsg
	stopCh   chan struct{}
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	running  bool

	// schedMu serializes the queued check with the submit that follows it.
	schedMu gosync.Mutex
}

// New creates a new Poller.
func New(q Queue, f Factory, submit SubmitFunc, log *zap.SugaredLogger) *Poller {
	return &Poller{
		queue:    q,
		factory:  f,
		submit:   submit,
		log:      log,
		statuses: make(map[string]*UpdateStatus),
		resultCh: make(chan UpdateResultMsg, 16),
		stopCh:   make(chan struct{}),
	}
}

// RegisterAccount adds an account to the poller. Disabled accounts are
// only updated on request.
func (p *Poller) RegisterAccount(acct model.AccountConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accounts = append(p.accounts, accountEntry{acct: acct})
	p.statuses[acct.ID] = &UpdateStatus{
		AccountID: acct.ID,
		State:     UpdateIdle,
	}
}

// Start launches one polling goroutine per account and returns a tea.Cmd
// delivering UpdateResultMsg messages to the Bubble Tea runtime.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	accounts := make([]accountEntry, len(p.accounts))
	copy(accounts, p.accounts)
	p.mu.Unlock()

	for _, entry := range accounts {
		p.wg.Add(1)
		go p.pollAccount(entry)
	}

	return p.waitForResult()
}

// Stop halts all polling goroutines and waits for them to exit. Updates
// already queued are left to the caller.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

// RefreshAll schedules an immediate update of every registered account.
func (p *Poller) RefreshAll() tea.Cmd {
	p.mu.Lock()
	accounts := make([]accountEntry, len(p.accounts))
	copy(accounts, p.accounts)
	p.mu.Unlock()

	for _, entry := range accounts {
		p.schedule(entry.acct)
	}
	return nil
}

// RefreshAccount schedules an immediate update of a single account.
func (p *Poller) RefreshAccount(accountID string) tea.Cmd {
	p.mu.Lock()
	var (
		acct  model.AccountConfig
		found bool
	)
	for _, entry := range p.accounts {
		if entry.acct.ID == accountID {
			acct, found = entry.acct, true
			break
		}
	}
	p.mu.Unlock()

	if found {
		p.schedule(acct)
	}
	return nil
}

// GetStatuses returns the current update status of all accounts.
func (p *Poller) GetStatuses() []UpdateStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]UpdateStatus, 0, len(p.accounts))
	for _, entry := range p.accounts {
		statuses = append(statuses, *p.statuses[entry.acct.ID])
	}
	return statuses
}

// pollAccount runs the polling loop for a single account.
func (p *Poller) pollAccount(entry accountEntry) {
	defer p.wg.Done()

	if !entry.acct.Enabled {
		return
	}

	ticker := time.NewTicker(entry.acct.UpdateInterval())
	defer ticker.Stop()

	// Do an initial update immediately
	p.schedule(entry.acct)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.schedule(entry.acct)
		}
	}
}

// schedule submits an update for acct unless one from this poller is
// still queued. It reports whether an operation was submitted.
func (p *Poller) schedule(acct model.AccountConfig) bool {
	p.schedMu.Lock()
	defer p.schedMu.Unlock()

	if p.updateQueued(acct.ID) {
		p.log.Debugw("Update already queued", "account", acct.ID)
		return false
	}

	op := p.factory.UpdateAccount(acct, p)
	op.OnFinished(func(o mailop.Operation) { p.finished(acct.ID, o) })

	p.setStatus(acct.ID, UpdateQueued, nil)
	metrics.AccountUpdates.WithLabelValues(acct.ID).Inc()
	p.submit(op)
	return true
}

// updateQueued reports whether the queue holds an update for accountID
// that this poller scheduled.
func (p *Poller) updateQueued(accountID string) bool {
	for _, op := range p.queue.GetBySource(p) {
		if mailop.AccountOf(op) == accountID && op.Type() == mailop.TypeReceive {
			return true
		}
	}
	return false
}

func (p *Poller) finished(accountID string, op mailop.Operation) {
	err := op.Err()
	if op.Status() == mailop.StatusSuccess {
		p.setStatus(accountID, UpdateIdle, nil)
	} else {
		p.setStatus(accountID, UpdateError, err)
	}

	if err != nil {
		p.log.Warnw("Account update failed", "account", accountID, "status", op.Status(), "error", err)
	}

	p.sendResult(UpdateResultMsg{
		AccountID: accountID,
		Status:    op.Status(),
		Error:     err,
		AuthError: email.IsAuthError(err),
	})
}

// setStatus updates the status of an account.
func (p *Poller) setStatus(accountID string, state UpdateState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[accountID]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == UpdateIdle && err == nil {
		status.LastUpdate = time.Now()
	}
}

// sendResult sends an UpdateResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg UpdateResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the finishing operation
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next update
// result. Call it after handling an UpdateResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
