package ops

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/modest/internal/email"
	"github.com/nhle/modest/internal/model"
)

// PasswordFunc looks up the password of an account.
type PasswordFunc func(acct model.AccountConfig) (string, error)

// EmailConnector builds IMAP and SMTP transports from account settings.
type EmailConnector struct {
	Password PasswordFunc
	Log      *zap.SugaredLogger
}

var _ Connector = EmailConnector{}

func (c EmailConnector) Fetcher(acct model.AccountConfig) (Fetcher, error) {
	cfg, err := c.server(acct, acct.IMAPHost, acct.IMAPPort)
	if err != nil {
		return nil, err
	}
	return email.NewIMAPClient(cfg, c.Log), nil
}

func (c EmailConnector) Sender(acct model.AccountConfig) (Sender, error) {
	cfg, err := c.server(acct, acct.SMTPHost, acct.SMTPPort)
	if err != nil {
		return nil, err
	}
	from := acct.Email
	if acct.Name != "" {
		from = fmt.Sprintf("%q <%s>", acct.Name, acct.Email)
	}
	return email.NewSMTPSender(cfg, from), nil
}

func (c EmailConnector) server(acct model.AccountConfig, host, port string) (email.ServerConfig, error) {
	if host == "" {
		return email.ServerConfig{}, fmt.Errorf("account %s has no server host", acct.ID)
	}
	password, err := c.Password(acct)
	if err != nil {
		return email.ServerConfig{}, fmt.Errorf("loading password for %s: %w", acct.ID, err)
	}
	username := acct.Username
	if username == "" {
		username = acct.Email
	}
	return email.ServerConfig{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		TLS:      acct.TLS,
	}, nil
}
