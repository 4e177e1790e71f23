// Package mail delivers transactional email.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// Message is a plain-text email to a single recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an SMTP relay, upgrading with STARTTLS when the
// server offers it.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
	send sendFunc
}

func NewSMTPMailer(opts Options) (*SMTPMailer, error) {
	if opts.Host == "" {
		return nil, errors.New("platform/mail: smtp host required")
	}
	if opts.From == "" {
		return nil, errors.New("platform/mail: from address required")
	}
	if opts.Port == 0 {
		opts.Port = 587
	}
	var auth smtp.Auth
	if opts.Username != "" {
		auth = smtp.PlainAuth("", opts.Username, opts.Password, opts.Host)
	}
	return &SMTPMailer{
		addr: net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		auth: auth,
		from: opts.From,
		send: smtp.SendMail,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return errors.New("platform/mail: header values must be single line")
	}
	if err := m.send(m.addr, m.auth, m.from, []string{msg.To}, m.compose(msg)); err != nil {
		return fmt.Errorf("platform/mail: send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer only logs messages. It backs development setups without a relay.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail not delivered, no smtp relay configured",
		slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}
