package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/safar/storefront/internal/config"
)

var (
	ErrCredentialsMissing = errors.New("mail credentials missing")
	ErrConnection         = errors.New("mail connection error")
	ErrAuth               = errors.New("mail authentication rejected")
)

const dialTimeout = 30 * time.Second

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New picks the mailer named by MAIL_DRIVER.
func New(cfg config.MailConfig, logger *slog.Logger) Mailer {
	if cfg.Driver == config.MailDriverLog {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}

// SMTPMailer sends one plain-text message per call. It never retries.
type SMTPMailer struct {
	cfg config.MailConfig
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.cfg.Username == "" || m.cfg.Password == "" {
		return ErrCredentialsMissing
	}

	addr := net.JoinHostPort(m.cfg.Server, strconv.Itoa(m.cfg.Port))
	tlsCfg := &tls.Config{ServerName: m.cfg.Server}

	dialer := &net.Dialer{Timeout: dialTimeout}
	var conn net.Conn
	var err error
	if m.cfg.UseSSL {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrConnection, addr, err)
	}

	c, err := smtp.NewClient(conn, m.cfg.Server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: greeting: %v", ErrConnection, err)
	}
	defer c.Close()

	if m.cfg.UseTLS {
		if err := c.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("%w: starttls: %v", ErrConnection, err)
		}
	}

	if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Server)); err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("%w: mail from: %v", ErrConnection, err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("%w: rcpt to: %v", ErrConnection, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("%w: data: %v", ErrConnection, err)
	}
	if _, err := w.Write(buildMessage(from, to, subject, body)); err != nil {
		w.Close()
		return fmt.Errorf("%w: write body: %v", ErrConnection, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: end data: %v", ErrConnection, err)
	}

	return c.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer writes the message to the log instead of a relay.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mailer")}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.InfoContext(ctx, "mail not sent, log driver",
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}
