package mailer

import (
	"context"
	"log/slog"

	gomail "github.com/wneessen/go-mail"

	"github.com/c360/photoflow/errors"
)

// SMTPConfig configures the SMTP mailer
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer delivers messages over SMTP
type SMTPMailer struct {
	client *gomail.Client
	logger *slog.Logger
}

// NewSMTPMailer creates an SMTP mailer. Credentials are optional for
// relays that accept unauthenticated submission.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) (*SMTPMailer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.WrapFatal(err, "SMTPMailer", "NewSMTPMailer", "create client")
	}

	return &SMTPMailer{client: client, logger: logger}, nil
}

// Send delivers one message. Delivery failures are transient: the
// relay may come back.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	mail := gomail.NewMsg()
	if err := mail.From(msg.From); err != nil {
		return errors.WrapInvalid(err, "SMTPMailer", "Send", "set sender")
	}
	if err := mail.To(msg.To); err != nil {
		return errors.WrapInvalid(err, "SMTPMailer", "Send", "set recipient")
	}
	mail.Subject(msg.Subject)
	mail.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)

	if err := m.client.DialAndSendWithContext(ctx, mail); err != nil {
		return errors.WrapTransient(err, "SMTPMailer", "Send", "deliver message")
	}

	m.logger.Debug("email delivered", "to", msg.To, "subject", msg.Subject)
	return nil
}
