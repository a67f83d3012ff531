package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/modest/internal/model"
)

// UpsertHeaders inserts or replaces a batch of fetched headers.
func (s *SQLiteStore) UpsertHeaders(ctx context.Context, headers []model.Header) error {
	if len(headers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR REPLACE INTO headers (
			id, account_id, uid, message_id, subject, sender,
			recipients, date, flags, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, h := range headers {
		to, err := json.Marshal(h.To)
		if err != nil {
			return fmt.Errorf("marshaling recipients for header %s: %w", h.ID, err)
		}
		flags, err := json.Marshal(h.Flags)
		if err != nil {
			return fmt.Errorf("marshaling flags for header %s: %w", h.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			h.ID, h.AccountID, h.UID, h.MessageID, h.Subject, h.From,
			string(to), h.Date.UTC(), string(flags), h.FetchedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upserting header %s: %w", h.ID, err)
		}
	}

	return tx.Commit()
}

// GetHeaders retrieves headers matching the filter, newest first.
func (s *SQLiteStore) GetHeaders(
	ctx context.Context,
	filter HeaderFilter,
) ([]model.Header, error) {
	var conditions []string
	var args []interface{}

	if filter.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *filter.AccountID)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(subject LIKE ? OR sender LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := `SELECT id, account_id, uid, message_id, subject, sender,
		recipients, date, flags, fetched_at FROM headers`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying headers: %w", err)
	}
	defer rows.Close()

	var headers []model.Header
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}

	return headers, rows.Err()
}

// scanHeader scans a header row from a sqlx.Rows result set.
func scanHeader(rows *sqlx.Rows) (model.Header, error) {
	var (
		h         model.Header
		to        string
		flags     string
		date      time.Time
		fetchedAt time.Time
	)

	err := rows.Scan(
		&h.ID, &h.AccountID, &h.UID, &h.MessageID, &h.Subject, &h.From,
		&to, &date, &flags, &fetchedAt,
	)
	if err != nil {
		return model.Header{}, fmt.Errorf("scanning header row: %w", err)
	}

	h.Date = date
	h.FetchedAt = fetchedAt

	if to != "" {
		if err := json.Unmarshal([]byte(to), &h.To); err != nil {
			return model.Header{}, fmt.Errorf("unmarshaling recipients: %w", err)
		}
	}
	if flags != "" {
		if err := json.Unmarshal([]byte(flags), &h.Flags); err != nil {
			return model.Header{}, fmt.Errorf("unmarshaling flags: %w", err)
		}
	}

	return h, nil
}
