// Package ops builds the mail operations the application queues: account
// updates and outbox delivery.
package ops

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/modest/internal/email"
	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/metrics"
	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/store"
)

// ErrOffline is attached to operations that could not run because the
// device is offline.
var ErrOffline = errors.New("device is offline")

// errClaimed marks a message that is already sent or owned by another
// delivery.
var errClaimed = errors.New("outbox message already claimed")

const (
	defaultLookback   = 7 * 24 * time.Hour
	defaultFetchLimit = 200
)

// Fetcher retrieves recent envelopes from an account's INBOX.
type Fetcher interface {
	FetchEnvelopes(ctx context.Context, since time.Time, limit int) ([]email.Envelope, error)
}

// Sender delivers a single outbox message.
type Sender interface {
	Send(ctx context.Context, msg model.OutboxMessage) error
}

// Connector builds transports for an account.
type Connector interface {
	Fetcher(acct model.AccountConfig) (Fetcher, error)
	Sender(acct model.AccountConfig) (Sender, error)
}

// Connectivity reports whether the network may be used.
type Connectivity interface {
	IsOnline() bool
}

// Factory creates operations bound to a store, a connector and a device.
type Factory struct {
	store      store.Store
	conn       Connector
	device     Connectivity
	log        *zap.SugaredLogger
	lookback   time.Duration
	fetchLimit int
}

// NewFactory returns a Factory using the default fetch window.
func NewFactory(
	st store.Store,
	conn Connector,
	dev Connectivity,
	log *zap.SugaredLogger,
) *Factory {
	return &Factory{
		store:      st,
		conn:       conn,
		device:     dev,
		log:        log,
		lookback:   defaultLookback,
		fetchLimit: defaultFetchLimit,
	}
}

// UpdateAccount returns a receive operation that fetches the account's
// recent envelopes and stores them as headers.
func (f *Factory) UpdateAccount(acct model.AccountConfig, source any) *mailop.Op {
	return mailop.New(mailop.TypeReceive, source, acct.ID, func(ctx context.Context, op *mailop.Op) error {
		if !f.device.IsOnline() {
			return fmt.Errorf("updating account %s: %w", acct.ID, ErrOffline)
		}

		fetcher, err := f.conn.Fetcher(acct)
		if err != nil {
			return fmt.Errorf("updating account %s: %w", acct.ID, err)
		}

		envs, err := fetcher.FetchEnvelopes(ctx, time.Now().Add(-f.lookback), f.fetchLimit)
		if err != nil {
			return fmt.Errorf("updating account %s: %w", acct.ID, err)
		}
		op.SetProgress(0, len(envs))

		fetchedAt := time.Now()
		headers := make([]model.Header, 0, len(envs))
		for _, env := range envs {
			headers = append(headers, headerFromEnvelope(acct.ID, env, fetchedAt))
		}

		if err := f.store.UpsertHeaders(ctx, headers); err != nil {
			return fmt.Errorf("updating account %s: %w", acct.ID, err)
		}
		op.SetProgress(len(envs), len(envs))

		f.log.Infow("Account updated", "account", acct.ID, "headers", len(headers))
		return nil
	})
}

// SendMessage returns a send operation delivering one outbox message.
func (f *Factory) SendMessage(acct model.AccountConfig, msg model.OutboxMessage, source any) *mailop.Op {
	return mailop.New(mailop.TypeSend, source, acct.ID, func(ctx context.Context, op *mailop.Op) error {
		if !f.device.IsOnline() {
			return fmt.Errorf("sending message %s: %w", msg.ID, ErrOffline)
		}

		sender, err := f.conn.Sender(acct)
		if err != nil {
			return fmt.Errorf("sending message %s: %w", msg.ID, err)
		}

		op.SetProgress(0, 1)
		if err := f.deliver(ctx, sender, acct, msg); err != nil && !errors.Is(err, errClaimed) {
			return err
		}
		op.SetProgress(1, 1)
		return nil
	})
}

// FlushOutbox returns an operation of the given type that sends every
// pending outbox message of the account. When only some messages fail the
// operation finishes with errors.
func (f *Factory) FlushOutbox(acct model.AccountConfig, typ mailop.Type, source any) *mailop.Op {
	return mailop.New(typ, source, acct.ID, func(ctx context.Context, op *mailop.Op) error {
		if !f.device.IsOnline() {
			return fmt.Errorf("flushing outbox of %s: %w", acct.ID, ErrOffline)
		}

		pending, err := f.store.PendingOutbox(ctx, acct.ID)
		if err != nil {
			return fmt.Errorf("flushing outbox of %s: %w", acct.ID, err)
		}
		if len(pending) == 0 {
			return nil
		}

		sender, err := f.conn.Sender(acct)
		if err != nil {
			return fmt.Errorf("flushing outbox of %s: %w", acct.ID, err)
		}

		var errs []error
		attempted := 0
		op.SetProgress(0, len(pending))
		for i, msg := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := f.deliver(ctx, sender, acct, msg)
			switch {
			case errors.Is(err, errClaimed):
			case err != nil:
				attempted++
				errs = append(errs, err)
			default:
				attempted++
			}
			op.SetProgress(i+1, len(pending))
		}

		switch {
		case len(errs) == 0:
			return nil
		case len(errs) == attempted:
			return fmt.Errorf("flushing outbox of %s: %w", acct.ID, errors.Join(errs...))
		default:
			return fmt.Errorf("flushing outbox of %s: %d of %d failed: %w: %w",
				acct.ID, len(errs), attempted, mailop.ErrFinishedWithErrors, errors.Join(errs...))
		}
	})
}

// deliver claims msg, sends it and records the outcome in the outbox. A
// message that is already sent or claimed yields errClaimed.
func (f *Factory) deliver(ctx context.Context, sender Sender, acct model.AccountConfig, msg model.OutboxMessage) error {
	claimed, err := f.store.ClaimOutbox(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("sending message %s: %w", msg.ID, err)
	}
	if !claimed {
		f.log.Debugw("Skipping outbox message delivered elsewhere", "message", msg.ID, "account", acct.ID)
		return errClaimed
	}

	if err := sender.Send(ctx, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if relErr := f.store.ReleaseOutbox(context.WithoutCancel(ctx), msg.ID); relErr != nil {
				f.log.Warnw("Failed to release outbox message", "message", msg.ID, "error", relErr)
			}
			return fmt.Errorf("sending message %s: %w", msg.ID, ctxErr)
		}
		metrics.MessagesSent.WithLabelValues(acct.ID, "failed").Inc()
		if markErr := f.store.MarkSendFailed(ctx, msg.ID, err.Error()); markErr != nil {
			f.log.Warnw("Failed to record send failure", "message", msg.ID, "error", markErr)
		}
		return fmt.Errorf("sending message %s: %w", msg.ID, err)
	}

	metrics.MessagesSent.WithLabelValues(acct.ID, "sent").Inc()
	if err := f.store.MarkSent(ctx, msg.ID, time.Now()); err != nil {
		return fmt.Errorf("marking message %s sent: %w", msg.ID, err)
	}
	return nil
}

func headerFromEnvelope(accountID string, env email.Envelope, fetchedAt time.Time) model.Header {
	return model.Header{
		ID:        accountID + "/" + strconv.FormatUint(uint64(env.UID), 10),
		AccountID: accountID,
		UID:       env.UID,
		MessageID: env.MessageID,
		Subject:   env.Subject,
		From:      env.From,
		To:        env.To,
		Date:      env.Date,
		Flags:     env.Flags,
		FetchedAt: fetchedAt,
	}
}
