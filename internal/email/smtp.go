package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/modest/internal/model"
)

const dialTimeout = 30 * time.Second

// SMTPSender delivers outbox messages for one account.
type SMTPSender struct {
	cfg  ServerConfig
	from string
}

// NewSMTPSender creates a sender that submits mail as from.
func NewSMTPSender(cfg ServerConfig, from string) *SMTPSender {
	return &SMTPSender{cfg: cfg, from: from}
}

// Send composes msg and delivers it to every recipient.
func (s *SMTPSender) Send(ctx context.Context, msg model.OutboxMessage) error {
	body, err := Compose(s.from, msg, time.Now())
	if err != nil {
		return err
	}

	rcpts := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		addr, err := mail.ParseAddress(to)
		if err != nil {
			return fmt.Errorf("parsing recipient %q: %w", to, err)
		}
		rcpts = append(rcpts, addr.Address)
	}

	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	return s.deliver(client, rcpts, body)
}

// Compose renders msg as an RFC 5322 text/plain message.
func Compose(from string, msg model.OutboxMessage, date time.Time) ([]byte, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parsing sender %q: %w", from, err)
	}

	to := make([]*mail.Address, 0, len(msg.To))
	for _, rcpt := range msg.To {
		addr, err := mail.ParseAddress(rcpt)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient %q: %w", rcpt, err)
		}
		to = append(to, addr)
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	if id := strings.Trim(msg.InReplyTo, "<>"); id != "" {
		h.SetMsgIDList("In-Reply-To", []string{id})
		h.SetMsgIDList("References", []string{id})
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := w.Write([]byte(msg.Body)); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message body: %w", err)
	}

	return buf.Bytes(), nil
}

// dial connects with implicit TLS or STARTTLS and authenticates.
func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := s.cfg.addr()
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if s.cfg.TLS {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("TLS handshake with %s: %w", addr, err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}

	if !s.cfg.TLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, &AuthError{Protocol: "smtp", Username: s.cfg.Username, Err: err}
	}

	return client, nil
}

// deliver sends a message using an already-authenticated SMTP client.
func (s *SMTPSender) deliver(client *smtp.Client, rcpts []string, body []byte) error {
	from, err := mail.ParseAddress(s.from)
	if err != nil {
		return fmt.Errorf("parsing sender %q: %w", s.from, err)
	}

	if err := client.Mail(from.Address); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
