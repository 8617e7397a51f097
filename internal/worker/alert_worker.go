package worker

import (
	"context"
	"fmt"
	"log/slog"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/core"
	"budgetwatch/internal/notify"
)

// AlertWorker turns queued budget alerts into emails.
type AlertWorker struct {
	sender            notify.EmailSender
	recipientOverride string
}

func NewAlertWorker(sender notify.EmailSender, recipientOverride string) *AlertWorker {
	return &AlertWorker{sender: sender, recipientOverride: recipientOverride}
}

// HandleBudgetAlert sends the email for one alert message. Errors wrapping
// core.ErrTransport ask the consumer to requeue the message, while a
// permanent refusal (core.ErrRejected) drops it. An unconfigured mail relay
// is not an error.
func (w *AlertWorker) HandleBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	alert := msg.Alert()
	recipient := msg.Recipient
	if w.recipientOverride != "" {
		recipient = w.recipientOverride
	}

	slog.InfoContext(ctx, "Processing budget alert",
		"component", "worker",
		"user_id", msg.UserID,
		"category", msg.Category,
		"year", msg.Year,
		"month", msg.Month,
		"queued_at", msg.Timestamp)

	if recipient == "" {
		return fmt.Errorf("%w: alert for user %d has no recipient", core.ErrValidation, msg.UserID)
	}

	sent, err := w.sender.SendEmail(ctx, recipient, alert.EmailSubject(), alert.EmailBody())
	if err != nil {
		return fmt.Errorf("send budget alert: %w", err)
	}
	if !sent {
		slog.WarnContext(ctx, "Mail relay not configured, budget alert acknowledged without email",
			"component", "worker",
			"user_id", msg.UserID,
			"category", msg.Category)
		return nil
	}

	slog.InfoContext(ctx, "Budget alert delivered",
		"component", "worker",
		"user_id", msg.UserID,
		"category", msg.Category,
		"recipient", recipient)
	return nil
}
