package email

import (
	"errors"
	"fmt"
	"time"
)

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string
	From      string
	To        []string
	Date      time.Time
	Flags     []string // \Seen, \Flagged, \Answered, \Deleted
	UID       uint32
}

// ServerConfig holds the address and login of an IMAP or SMTP server.
type ServerConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}

func (c ServerConfig) addr() string {
	return c.Host + ":" + c.Port
}

// AuthError indicates that the server rejected the account's credentials.
type AuthError struct {
	Protocol string
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): authentication failed for %s: %v",
		e.Protocol, e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
