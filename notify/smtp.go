package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/accountauth"
	"github.com/caarlos0/env/v11"
	"gopkg.in/gomail.v2"
)

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

// SMTPConfigFromEnv reads SMTPConfig from the environment.
func SMTPConfigFromEnv() (SMTPConfig, error) {
	return env.ParseAs[SMTPConfig]()
}

// Validate checks that the relay can be dialed and a sender is set.
func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return errors.New("missing SMTP_HOST")
	}
	if c.Port <= 0 {
		return errors.New("missing SMTP_PORT")
	}
	if c.From == "" {
		return errors.New("missing SMTP_FROM")
	}
	return nil
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDispatcher implements accountauth.Notifier over SMTP. Bodies are sent
// as text/html.
type SMTPDispatcher struct {
	from   string
	dialer sender
}

// NewSMTPDispatcher validates cfg and builds the dialer once.
func NewSMTPDispatcher(cfg SMTPConfig) (*SMTPDispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SMTPDispatcher{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

func (d *SMTPDispatcher) Send(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("no recipient specified")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", d.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := d.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

var _ accountauth.Notifier = (*SMTPDispatcher)(nil)
