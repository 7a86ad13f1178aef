// Package notify renders and delivers outbound email.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/laala/laala-api/internal/reliability/circuitbreaker"
)

// Message is one email ready to send.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a mailer for host:port. Credentials are optional.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	m := &SMTPMailer{
		addr:     fmt.Sprintf("%s:%d", host, port),
		host:     host,
		from:     from,
		sendMail: smtp.SendMail,
	}
	if username != "" && password != "" {
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

// Send implements Mailer. net/smtp has no context support, so ctx is only
// checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.sendMail(m.addr, m.auth, envelopeAddress(m.from), []string{msg.To}, m.build(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// envelopeAddress extracts addr from "Name <addr>".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return from
}

// LogMailer writes messages to the log instead of sending them. Used when
// SMTP_HOST is empty.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a log-only mailer
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email not sent: smtp disabled",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// BreakerMailer stops calling a failing relay until the breaker half-opens.
type BreakerMailer struct {
	next    Mailer
	breaker *circuitbreaker.CircuitBreaker
}

// NewBreakerMailer wraps next with breaker.
func NewBreakerMailer(next Mailer, breaker *circuitbreaker.CircuitBreaker) *BreakerMailer {
	return &BreakerMailer{next: next, breaker: breaker}
}

// Send implements Mailer. It returns circuitbreaker.ErrOpen while open.
func (m *BreakerMailer) Send(ctx context.Context, msg Message) error {
	return m.breaker.Execute(func() error {
		return m.next.Send(ctx, msg)
	})
}
