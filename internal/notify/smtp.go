package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"comment_notifier/internal/domain"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Address  string // host:port
	User     string
	Password string
}

// SMTPSender delivers notifications as plain-text email.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		host, _, err := net.SplitHostPort(s.cfg.Address)
		if err != nil {
			return fmt.Errorf("parse smtp address: %w", err)
		}
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, host)
	}

	if err := s.sendMail(s.cfg.Address, auth, n.From, []string{n.To}, FormatEmail(n, time.Now())); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

// FormatEmail renders n as an RFC 5322 message. Header values are folded
// onto one line and the subject is RFC 2047 encoded when it is not plain ASCII.
func FormatEmail(n domain.Notification, date time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(n.From))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(n.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(n.Subject)))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(n.Body, "\n", "\r\n"))
	return []byte(b.String())
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue keeps a value from starting a new header line.
func headerValue(v string) string {
	return headerBreaks.Replace(v)
}
