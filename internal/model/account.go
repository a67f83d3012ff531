package model

import "time"

// AccountConfig holds the settings of a single mail account.
type AccountConfig struct {
	// ID is the unique identifier for this account.
	ID string `mapstructure:"id" yaml:"id"`

	// Name is the user-defined label for this account.
	Name string `mapstructure:"name" yaml:"name"`

	// Email is the address used as the sender of outgoing mail.
	Email string `mapstructure:"email" yaml:"email"`

	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`

	// Username is the login for both IMAP and SMTP; defaults to Email.
	Username string `mapstructure:"username" yaml:"username"`

	// TLS selects implicit TLS; otherwise STARTTLS is used.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// Enabled controls whether this account is updated automatically.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// UpdateIntervalSec is how often (in seconds) to fetch new headers.
	UpdateIntervalSec int `mapstructure:"update_interval_sec" yaml:"update_interval_sec"`
}

// UpdateInterval returns the update period, defaulting to five minutes.
func (a AccountConfig) UpdateInterval() time.Duration {
	if a.UpdateIntervalSec <= 0 {
		return defaultUpdateIntervalSec * time.Second
	}
	return time.Duration(a.UpdateIntervalSec) * time.Second
}

// CredentialKey is the keyring key holding this account's password.
func (a AccountConfig) CredentialKey() string {
	return "account-" + a.ID
}
