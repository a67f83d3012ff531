package cli

import (
	"context"
	"fmt"
	"io"
	gosync "sync"

	"github.com/spf13/cobra"

	"github.com/nhle/modest/internal/mailop"
	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/queue"
)

func newSendCmd() *cobra.Command {
	var (
		msg  model.OutboxMessage
		body string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message and wait for delivery",
		Long: "Send a message through an account. A message that cannot be delivered\n" +
			"stays in the outbox and is retried before exit and on the next start.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if body == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading body: %w", err)
				}
				body = string(data)
			}
			msg.Body = body

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := openApp(cmd, cfg, log)
			if err != nil {
				return err
			}

			var out deliveryOutcome
			unsubscribe := a.Queue().OnChanged(func(c queue.Changed) {
				if c.Notification == queue.Removed && mailop.AccountOf(c.Op) == msg.AccountID {
					out.record(c.Op)
				}
			})
			defer unsubscribe()

			if _, err := a.Send(cmd.Context(), msg); err != nil {
				_ = a.Close()
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), shutdownTimeout(cfg))
			defer cancel()
			if err := a.WaitEmpty(ctx); err != nil {
				log.Warnw("Delivery still running", "error", err)
			}
			// Shutdown retries whatever is left in the outbox.
			if err := a.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutting down: %w", err)
			}

			status, opErr := out.result()
			switch status {
			case mailop.StatusSuccess:
				cmd.Println("Message sent.")
				return nil
			case mailop.StatusInvalid:
				return fmt.Errorf("message was not delivered")
			default:
				if opErr == nil {
					return fmt.Errorf("message kept in outbox (%s)", status)
				}
				return fmt.Errorf("message kept in outbox (%s): %w", status, opErr)
			}
		},
	}

	cmd.Flags().StringVarP(&msg.AccountID, "account", "a", "", "Account ID to send from")
	cmd.Flags().StringSliceVarP(&msg.To, "to", "t", nil, "Recipient address (repeatable)")
	cmd.Flags().StringVarP(&msg.Subject, "subject", "s", "", "Subject line")
	cmd.Flags().StringVarP(&body, "body", "b", "", `Message body, or "-" to read it from stdin`)
	cmd.Flags().StringVar(&msg.InReplyTo, "in-reply-to", "", "Message-ID this message replies to")

	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// deliveryOutcome keeps the status of the last finished operation that
// delivered for the account.
type deliveryOutcome struct {
	mu     gosync.Mutex
	status mailop.Status
	err    error
}

func (d *deliveryOutcome) record(op mailop.Operation) {
	switch op.Type() {
	case mailop.TypeSend, mailop.TypeShutdown:
	default:
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = op.Status()
	d.err = op.Err()
}

func (d *deliveryOutcome) result() (mailop.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, d.err
}
