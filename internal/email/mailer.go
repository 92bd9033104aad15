package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	mail "github.com/xhit/go-simple-mail/v2"
	"go.uber.org/zap"
)

// ErrDisabled is returned by New when no provider key is configured.
var ErrDisabled = errors.New("email disabled: no provider API key configured")

type Config struct {
	APIKey      string
	Host        string
	Port        int
	User        string
	From        string
	SendTimeout time.Duration
}

// Mailer sends transactional mail through the provider's SMTP relay.
type Mailer struct {
	cfg Config
	log *zap.Logger

	// connect is swapped in tests.
	connect func() (*mail.SMTPClient, error)
}

func New(cfg Config, l *zap.Logger) (*Mailer, error) {
	if cfg.APIKey == "" {
		return nil, ErrDisabled
	}
	if l == nil {
		l = zap.NewNop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	m := &Mailer{cfg: cfg, log: l.With(zap.String("component", "email.mailer"))}
	m.connect = m.dial
	return m, nil
}

func (m *Mailer) dial() (*mail.SMTPClient, error) {
	server := mail.NewSMTPClient()
	server.Host = m.cfg.Host
	server.Port = m.cfg.Port
	server.Username = m.cfg.User
	server.Password = m.cfg.APIKey
	server.Encryption = mail.EncryptionSTARTTLS
	server.TLSConfig = &tls.Config{ServerName: m.cfg.Host}
	server.ConnectTimeout = m.cfg.SendTimeout
	server.SendTimeout = m.cfg.SendTimeout
	server.KeepAlive = false
	return server.Connect()
}

// Send delivers one HTML message. The SMTP client has no context support, so
// ctx is only checked before dialing.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	log := m.log.With(zap.String("to", to), zap.String("subject", subject))

	msg := mail.NewMSG()
	msg.SetFrom(m.cfg.From).AddTo(to).SetSubject(subject)
	msg.SetBody(mail.TextHTML, html)
	if msg.Error != nil {
		return fmt.Errorf("compose email: %w", msg.Error)
	}

	client, err := m.connect()
	if err != nil {
		log.Error("smtp connect failed", zap.Error(err))
		return fmt.Errorf("smtp connect: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := msg.Send(client); err != nil {
		log.Error("smtp send failed", zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
	return nil
}
