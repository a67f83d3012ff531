package model

import "time"

// Header is the envelope of a message fetched from an account's INBOX.
type Header struct {
	// ID is "<account>/<uid>".
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	UID       uint32    `json:"uid"`
	MessageID string    `json:"message_id"`
	Subject   string    `json:"subject"`
	From      string    `json:"from"`
	To        []string  `json:"to"`
	Date      time.Time `json:"date"`
	Flags     []string  `json:"flags"`
	FetchedAt time.Time `json:"fetched_at"`
}

// OutboxMessage is a message waiting to be sent.
type OutboxMessage struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	To        []string   `json:"to"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	InReplyTo string     `json:"in_reply_to"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error"`
}

// OperationRecord is the persisted result of a finished mail operation.
type OperationRecord struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	AccountID  string    `json:"account_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
