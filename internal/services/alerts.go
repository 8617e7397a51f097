package services

import (
	"context"
	"sync"
	"time"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/notify"
)

// AlertDispatcher hands a budget-exceeded alert off for email delivery.
// Dispatch never blocks on the mail relay and never fails the caller.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert core.Alert, recipient string)
}

// AlertPublisher is the queue side of alert delivery.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// inflight tracks background deliveries so shutdown can wait for them.
type inflight struct {
	wg sync.WaitGroup
}

// Wait blocks until every in-flight delivery has finished or ctx is done.
func (f *inflight) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDispatcher publishes alerts for the alert worker to deliver. Publishing
// runs in the background since a broker reconnect can take seconds.
type QueueDispatcher struct {
	inflight
	publisher AlertPublisher
	timeout   time.Duration
	logger    *log.Logger
}

func NewQueueDispatcher(publisher AlertPublisher, timeout time.Duration, logger *log.Logger) *QueueDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QueueDispatcher{publisher: publisher, timeout: timeout, logger: logger.WithComponent(log.ComponentAlert)}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, alert core.Alert, recipient string) {
	ctx = context.WithoutCancel(ctx)
	msg := amqp.NewBudgetAlertMessage(alert, recipient)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := d.publisher.PublishBudgetAlert(ctx, msg); err != nil {
			fields := log.NewFields().
				WithBudgetKey(alert.Key.UserID, alert.Key.Category, alert.Key.Period.Year, alert.Key.Period.Month).
				WithOperation(log.OpPublish).
				WithError(err)
			d.logger.ErrorContext(ctx, "Failed to publish budget alert", fields.ToSlice()...)
		}
	}()
}

// InlineDispatcher sends alert emails from a background goroutine of the
// current process, bounded by a timeout.
type InlineDispatcher struct {
	inflight
	sender  notify.EmailSender
	timeout time.Duration
	logger  *log.Logger
}

func NewInlineDispatcher(sender notify.EmailSender, timeout time.Duration, logger *log.Logger) *InlineDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InlineDispatcher{sender: sender, timeout: timeout, logger: logger.WithComponent(log.ComponentAlert)}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, alert core.Alert, recipient string) {
	// The request context is cancelled as soon as the response is written.
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		fields := log.NewFields().
			WithBudgetKey(alert.Key.UserID, alert.Key.Category, alert.Key.Period.Year, alert.Key.Period.Month).
			WithOperation(log.OpNotify)
		fields[log.FieldRecipient] = recipient

		sent, err := d.sender.SendEmail(ctx, recipient, alert.EmailSubject(), alert.EmailBody())
		switch {
		case err != nil:
			d.logger.ErrorContext(ctx, "Budget alert email failed", fields.WithError(err).ToSlice()...)
		case !sent:
			d.logger.InfoContext(ctx, "Budget alert email skipped, mail relay not configured", fields.ToSlice()...)
		default:
			d.logger.InfoContext(ctx, "Budget alert email sent", fields.ToSlice()...)
		}
	}()
}
