// Package wizard collects the settings of a new mail account with a huh form.
package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/modest/internal/model"
)

// Result holds the values entered in the form.
type Result struct {
	Name     string
	Email    string
	IMAPHost string
	IMAPPort string
	SMTPHost string
	SMTPPort string
	Username string
	Password string
	TLS      bool
}

// NewResult returns a Result with the usual implicit-TLS ports filled in.
func NewResult() *Result {
	return &Result{IMAPPort: "993", SMTPPort: "465", TLS: true}
}

// NewForm builds the account form bound to r.
func NewForm(r *Result) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("A label for this account").
				Placeholder("Work").
				Value(&r.Name).
				Validate(validateRequired("Name")),
			huh.NewInput().
				Title("Email").
				Description("Address used as the sender of outgoing mail").
				Placeholder("me@example.com").
				Value(&r.Email).
				Validate(validateEmail),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Description("IMAP server hostname").
				Placeholder("imap.example.com").
				Value(&r.IMAPHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("IMAP server port (e.g., 993)").
				Value(&r.IMAPPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP Host").
				Description("SMTP server hostname").
				Placeholder("smtp.example.com").
				Value(&r.SMTPHost).
				Validate(validateRequired("SMTP Host")),
			huh.NewInput().
				Title("SMTP Port").
				Description("SMTP server port (e.g., 465 or 587)").
				Value(&r.SMTPPort).
				Validate(validatePort),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Description("Login for IMAP and SMTP; leave empty to use the email address").
				Value(&r.Username),
			huh.NewInput().
				Title("Password").
				Description("Account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&r.Password).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("Use TLS").
				Description("Implicit TLS; choose No for STARTTLS").
				Affirmative("Yes").
				Negative("No").
				Value(&r.TLS),
		),
	)
}

// Run shows the form on the terminal and returns the entered account.
func Run() (*Result, error) {
	r := NewResult()
	if err := NewForm(r).Run(); err != nil {
		return nil, fmt.Errorf("running account form: %w", err)
	}
	return r, nil
}

// Account converts the form values into an account configuration.
func (r *Result) Account() model.AccountConfig {
	username := strings.TrimSpace(r.Username)
	if username == "" {
		username = strings.TrimSpace(r.Email)
	}
	return model.AccountConfig{
		ID:                Slug(r.Name),
		Name:              strings.TrimSpace(r.Name),
		Email:             strings.TrimSpace(r.Email),
		IMAPHost:          strings.TrimSpace(r.IMAPHost),
		IMAPPort:          strings.TrimSpace(r.IMAPPort),
		SMTPHost:          strings.TrimSpace(r.SMTPHost),
		SMTPPort:          strings.TrimSpace(r.SMTPPort),
		Username:          username,
		TLS:               r.TLS,
		Enabled:           true,
		UpdateIntervalSec: 300,
	}
}

// Slug derives an account ID from its name: lower case, with runs of other
// characters collapsed to a single dash.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateEmail(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid email address: %w", err)
	}
	return nil
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return fmt.Errorf("port must be a number")
		}
	}
	return nil
}
