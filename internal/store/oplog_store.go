package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/modest/internal/model"
)

// operationRow maps an operation_log row for sqlx.Select.
type operationRow struct {
	ID         string    `db:"id"`
	Type       string    `db:"type"`
	AccountID  string    `db:"account_id"`
	Status     string    `db:"status"`
	Error      string    `db:"error"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
}

// RecordOperation appends a finished operation to the journal.
// Recording the same operation twice keeps the latest result.
func (s *SQLiteStore) RecordOperation(ctx context.Context, rec model.OperationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO operation_log (
			id, type, account_id, status, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Type, rec.AccountID, rec.Status, rec.Error,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording operation %s: %w", rec.ID, err)
	}
	return nil
}

// RecentOperations returns up to limit journal entries, most recent first.
func (s *SQLiteStore) RecentOperations(
	ctx context.Context,
	limit int,
) ([]model.OperationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []operationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, type, account_id, status, error, started_at, finished_at
		FROM operation_log
		ORDER BY finished_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying operation log: %w", err)
	}

	records := make([]model.OperationRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, model.OperationRecord{
			ID:         r.ID,
			Type:       r.Type,
			AccountID:  r.AccountID,
			Status:     r.Status,
			Error:      r.Error,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		})
	}
	return records, nil
}
