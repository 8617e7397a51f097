package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/textproto"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"budgetwatch/internal/core"
)

// EmailSender delivers one plain-text message. The bool reports whether a
// message was actually handed to the relay.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (bool, error)
}

// Config describes the SMTP relay. An empty Host disables sending.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Mailer sends mail through an SMTP relay that supports STARTTLS.
type Mailer struct {
	cfg    Config
	logger *slog.Logger
}

var _ EmailSender = (*Mailer)(nil)

func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		cfg:    cfg,
		logger: logger.With("component", "notify"),
	}
}

// Enabled reports whether a relay is configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

// SendEmail returns (false, nil) when no relay is configured. Failures the
// relay reports as permanent wrap core.ErrRejected, everything else wraps
// core.ErrTransport.
func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) (bool, error) {
	if !m.Enabled() {
		m.logger.DebugContext(ctx, "Mail relay not configured, skipping email", "recipient", to, "subject", subject)
		return false, nil
	}
	if strings.TrimSpace(to) == "" {
		return false, fmt.Errorf("%w: empty recipient", core.ErrValidation)
	}

	msg, err := m.buildMessage(to, subject, body)
	if err != nil {
		return false, err
	}

	start := time.Now()
	if err := m.send(ctx, msg); err != nil {
		kind := core.ErrTransport
		if isPermanent(err) {
			kind = core.ErrRejected
		}
		m.logger.WarnContext(ctx, "Email delivery failed",
			"recipient", to,
			"subject", subject,
			"permanent", kind == core.ErrRejected,
			"error", err)
		return false, fmt.Errorf("%w: send email to %s: %v", kind, to, err)
	}

	m.logger.InfoContext(ctx, "Email sent",
		"recipient", to,
		"subject", subject,
		"duration_ms", time.Since(start).Milliseconds())
	return true, nil
}

// buildMessage renders a plain-text message with Date and Message-ID set.
// Invalid addresses are validation errors.
func (m *Mailer) buildMessage(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("%w: sender address %q: %v", core.ErrValidation, m.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("%w: recipient address %q: %v", core.ErrValidation, to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (m *Mailer) send(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTLSConfig(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password))
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	return client.DialAndSendWithContext(ctx, msg)
}

// isPermanent reports whether the relay refused with a 5xx reply, such as a
// failed login or an unknown recipient.
func isPermanent(err error) bool {
	var reply *textproto.Error
	if errors.As(err, &reply) {
		return reply.Code >= 500
	}
	var sendErr *mail.SendError
	if !errors.As(err, &sendErr) || sendErr.IsTemp() {
		return false
	}
	switch sendErr.Reason {
	case mail.ErrSMTPMailFrom, mail.ErrSMTPRcptTo, mail.ErrSMTPData, mail.ErrSMTPDataClose:
		return true
	default:
		return false
	}
}
