package email

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"
)

// IMAPClient wraps go-imap v2 for fetching envelopes from an INBOX.
type IMAPClient struct {
	cfg ServerConfig
	log *zap.SugaredLogger
}

// NewIMAPClient creates a new IMAP client configuration. A nil log
// discards output.
func NewIMAPClient(cfg ServerConfig, log *zap.SugaredLogger) *IMAPClient {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &IMAPClient{cfg: cfg, log: log}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client.
func (c *IMAPClient) Connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.cfg.addr()

	var client *imapclient.Client
	var err error

	if c.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{Protocol: "imap", Username: c.cfg.Username, Err: err}
	}

	return client, nil
}

// FetchEnvelopes connects to IMAP, selects INBOX and returns the envelopes
// of messages received since the given time, at most limit of the most
// recent ones when limit > 0. Canceling ctx closes the connection.
func (c *IMAPClient) FetchEnvelopes(
	ctx context.Context, since time.Time, limit int,
) ([]Envelope, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, c.ctxErr(ctx, fmt.Errorf("selecting INBOX: %w", err))
	}

	criteria := &imap.SearchCriteria{Since: since}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, c.ctxErr(ctx, fmt.Errorf("searching messages: %w", err))
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Take the most recent UIDs.
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		Flags:    true,
		UID:      true,
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	envelopes := c.collectEnvelopes(func() (*imapclient.FetchMessageBuffer, bool, error) {
		msg := fetchCmd.Next()
		if msg == nil {
			return nil, false, nil
		}
		buf, err := msg.Collect()
		return buf, true, err
	})

	if err := fetchCmd.Close(); err != nil {
		return envelopes, c.ctxErr(ctx, fmt.Errorf("fetching envelopes: %w", err))
	}

	return envelopes, nil
}

// collectEnvelopes drains next until it reports no more messages. Messages
// that fail to parse are logged and dropped.
func (c *IMAPClient) collectEnvelopes(
	next func() (*imapclient.FetchMessageBuffer, bool, error),
) []Envelope {
	var envelopes []Envelope
	for {
		buf, more, err := next()
		if !more {
			return envelopes
		}
		if err != nil {
			c.log.Debugw("Dropping unreadable IMAP message", "host", c.cfg.Host, "error", err)
			continue
		}
		envelopes = append(envelopes, envelopeFromBuffer(buf))
	}
}

// ctxErr prefers the context error when the connection was closed because
// ctx ended.
func (c *IMAPClient) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				env.From = from.Name + " <" + from.Addr() + ">"
			} else {
				env.From = from.Addr()
			}
		}

		for _, to := range buf.Envelope.To {
			env.To = append(env.To, to.Addr())
		}
	}

	for _, flag := range buf.Flags {
		env.Flags = append(env.Flags, string(flag))
	}

	return env
}
