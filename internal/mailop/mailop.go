package mailop

import (
	"errors"
	"fmt"
)

// Type identifies the kind of work a mail operation performs.
type Type int

const (
	TypeUnknown Type = iota
	TypeOpen
	TypeDelete
	TypeReceive
	TypeSend
	TypeSendAndReceive
	TypeInfo
	TypeRun
	TypeSync
	// TypeShutdown marks the final outbox flush run while the application
	// is shutting down.
	TypeShutdown
)

var typeNames = map[Type]string{
	TypeUnknown:        "unknown",
	TypeOpen:           "open",
	TypeDelete:         "delete",
	TypeReceive:        "receive",
	TypeSend:           "send",
	TypeSendAndReceive: "send-receive",
	TypeInfo:           "info",
	TypeRun:            "run",
	TypeSync:           "sync",
	TypeShutdown:       "shutdown",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Status is the lifecycle state of a mail operation.
type Status int

const (
	StatusInvalid Status = iota
	StatusPending
	StatusInProgress
	StatusSuccess
	StatusFinishedWithErrors
	StatusFailed
	StatusCanceled
)

var statusNames = map[Status]string{
	StatusInvalid:            "invalid",
	StatusPending:            "pending",
	StatusInProgress:         "in-progress",
	StatusSuccess:            "success",
	StatusFinishedWithErrors: "finished-with-errors",
	StatusFailed:             "failed",
	StatusCanceled:           "canceled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFinishedWithErrors, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// ErrFinishedWithErrors is wrapped by work functions that completed but hit
// recoverable failures along the way (e.g. some messages of a batch could not
// be sent).
var ErrFinishedWithErrors = errors.New("finished with errors")

// Handler is called with the operation that emitted a lifecycle signal.
type Handler func(op Operation)

// Operation is an asynchronous unit of mail work as seen by the queue and
// the UI. Implementations must be safe for concurrent use and must emit
// "started" and "finished" at most once each.
type Operation interface {
	// ID is a unique identifier used for logging and persistence.
	ID() string

	// Type returns the kind of work.
	Type() Type

	// Source returns the object that initiated the operation. It is
	// compared with == so it must hold a comparable value, usually a
	// pointer.
	Source() any

	// Status returns the current lifecycle state.
	Status() Status

	// Err returns the error attached to a failed operation, if any.
	Err() error

	// Cancel requests cooperative cancellation.
	Cancel()

	// OnStarted registers h for the "started" signal.
	OnStarted(h Handler) (disconnect func())

	// OnFinished registers h for the "finished" signal.
	OnFinished(h Handler) (disconnect func())

	// String returns a one-line description for diagnostics.
	String() string
}

// AccountOf returns the account an operation works on, or "" when the
// operation is not tied to one.
func AccountOf(op Operation) string {
	if a, ok := op.(interface{ Account() string }); ok {
		return a.Account()
	}
	return ""
}
