package store

import (
	"context"
	"time"

	"github.com/nhle/modest/internal/model"
)

// HeaderFilter controls filtering and pagination for header queries.
type HeaderFilter struct {
	AccountID *string
	Query     *string
	Limit     int
	Offset    int
}

// Store defines the persistence interface for accounts, fetched headers,
// the outbox and the operation journal.
type Store interface {
	// === Accounts ===

	UpsertAccount(ctx context.Context, acct model.AccountConfig) error
	GetAccounts(ctx context.Context) ([]model.AccountConfig, error)
	GetAccount(ctx context.Context, id string) (*model.AccountConfig, error)
	DeleteAccount(ctx context.Context, id string) error

	// === Headers ===

	UpsertHeaders(ctx context.Context, headers []model.Header) error
	GetHeaders(ctx context.Context, filter HeaderFilter) ([]model.Header, error)

	// === Outbox ===

	EnqueueOutbox(ctx context.Context, msg model.OutboxMessage) (string, error)
	PendingOutbox(ctx context.Context, accountID string) ([]model.OutboxMessage, error)
	CountPendingOutbox(ctx context.Context) (int, error)
	ClaimOutbox(ctx context.Context, id string) (bool, error)
	ReleaseOutbox(ctx context.Context, id string) error
	ResetOutboxClaims(ctx context.Context) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkSendFailed(ctx context.Context, id string, reason string) error

	// === Operation journal ===

	RecordOperation(ctx context.Context, rec model.OperationRecord) error
	RecentOperations(ctx context.Context, limit int) ([]model.OperationRecord, error)

	Close() error
}
