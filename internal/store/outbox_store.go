package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/modest/internal/model"
)

// EnqueueOutbox stores a message for later delivery and returns its ID.
func (s *SQLiteStore) EnqueueOutbox(
	ctx context.Context,
	msg model.OutboxMessage,
) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.AccountID == "" {
		return "", errors.New("outbox message has no account")
	}
	if len(msg.To) == 0 {
		return "", errors.New("outbox message has no recipients")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	to, err := json.Marshal(msg.To)
	if err != nil {
		return "", fmt.Errorf("marshaling recipients: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outbox (
			id, account_id, recipients, subject, body, in_reply_to, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.AccountID, string(to), msg.Subject, msg.Body,
		msg.InReplyTo, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("enqueueing outbox message: %w", err)
	}

	return msg.ID, nil
}

// PendingOutbox returns unsent messages oldest first. An empty accountID
// returns pending messages of every account.
func (s *SQLiteStore) PendingOutbox(
	ctx context.Context,
	accountID string,
) ([]model.OutboxMessage, error) {
	query := `SELECT id, account_id, recipients, subject, body, in_reply_to,
		created_at, sent_at, attempts, last_error
		FROM outbox WHERE sent_at IS NULL`
	var args []interface{}
	if accountID != "" {
		query += " AND account_id = ?"
		args = append(args, accountID)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	var msgs []model.OutboxMessage
	for rows.Next() {
		m, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}

// CountPendingOutbox returns the number of unsent messages.
func (s *SQLiteStore) CountPendingOutbox(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM outbox WHERE sent_at IS NULL")
	if err != nil {
		return 0, fmt.Errorf("counting outbox: %w", err)
	}
	return n, nil
}

// ClaimOutbox marks an unsent message as being delivered. It reports false
// when the message is already sent or claimed.
func (s *SQLiteStore) ClaimOutbox(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET claimed = 1
		WHERE id = ? AND sent_at IS NULL AND claimed = 0`, id)
	if err != nil {
		return false, fmt.Errorf("claiming %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming %s: %w", id, err)
	}
	return rows == 1, nil
}

// ReleaseOutbox drops the claim on a message without recording an attempt.
func (s *SQLiteStore) ReleaseOutbox(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE outbox SET claimed = 0 WHERE id = ?", id); err != nil {
		return fmt.Errorf("releasing %s: %w", id, err)
	}
	return nil
}

// ResetOutboxClaims releases every claim. Claims left by a process that
// exited mid-delivery would otherwise block the message forever.
func (s *SQLiteStore) ResetOutboxClaims(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE outbox SET claimed = 0 WHERE claimed = 1"); err != nil {
		return fmt.Errorf("resetting outbox claims: %w", err)
	}
	return nil
}

// MarkSent records a successful delivery and releases the claim.
func (s *SQLiteStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET sent_at = ?, attempts = attempts + 1, last_error = '', claimed = 0
		WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("marking %s sent: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("outbox message %s not found", id)
	}
	return nil
}

// MarkSendFailed records a failed delivery attempt and releases the claim.
// The message stays pending.
func (s *SQLiteStore) MarkSendFailed(ctx context.Context, id string, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET attempts = attempts + 1, last_error = ?, claimed = 0
		WHERE id = ?`, reason, id)
	if err != nil {
		return fmt.Errorf("marking %s failed: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("outbox message %s not found", id)
	}
	return nil
}

func scanOutbox(rows *sqlx.Rows) (model.OutboxMessage, error) {
	var (
		m      model.OutboxMessage
		to     string
		sentAt sql.NullTime
	)

	err := rows.Scan(
		&m.ID, &m.AccountID, &to, &m.Subject, &m.Body, &m.InReplyTo,
		&m.CreatedAt, &sentAt, &m.Attempts, &m.LastError,
	)
	if err != nil {
		return model.OutboxMessage{}, fmt.Errorf("scanning outbox row: %w", err)
	}

	if sentAt.Valid {
		t := sentAt.Time
		m.SentAt = &t
	}
	if err := json.Unmarshal([]byte(to), &m.To); err != nil {
		return model.OutboxMessage{}, fmt.Errorf("unmarshaling recipients: %w", err)
	}

	return m, nil
}
