// Package testutil holds fixtures shared by package tests: an in-memory
// store and helpers that seed it with accounts and outbox mail.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/store"
)

// NewTestStore opens an in-memory store with every migration applied and
// closes it when the test ends. Closing twice is harmless, so tests may
// hand the store to an App that closes it first.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Account returns an enabled account whose addresses derive from id.
func Account(id string) model.AccountConfig {
	return model.AccountConfig{
		ID:                id,
		Name:              "Account " + id,
		Email:             id + "@example.com",
		IMAPHost:          "imap.example.com",
		IMAPPort:          "993",
		SMTPHost:          "smtp.example.com",
		SMTPPort:          "465",
		Username:          id + "@example.com",
		TLS:               true,
		Enabled:           true,
		UpdateIntervalSec: 60,
	}
}

// SeedAccounts saves accts to s.
func SeedAccounts(t *testing.T, s store.Store, accts ...model.AccountConfig) {
	t.Helper()
	for _, acct := range accts {
		if err := s.UpsertAccount(context.Background(), acct); err != nil {
			t.Fatalf("seeding account %s: %v", acct.ID, err)
		}
	}
}

// QueueOutbox stores one unsent message per subject for accountID and
// returns their IDs. Creation times increase with the argument order.
func QueueOutbox(t *testing.T, s store.Store, accountID string, subjects ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(subjects))
	base := time.Now()
	for i, subject := range subjects {
		id, err := s.EnqueueOutbox(context.Background(), model.OutboxMessage{
			AccountID: accountID,
			To:        []string{"you@example.com"},
			Subject:   subject,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("queueing %q for %s: %v", subject, accountID, err)
		}
		ids = append(ids, id)
	}
	return ids
}
