package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 465
	smtpTimeout     = 30 * time.Second
)

// SMTPSender sends mail over implicit TLS with PLAIN authentication.
// Every Send dials a new session.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
}

// NewSMTPSender creates a new SMTP sender. Host, port and credentials are required.
func NewSMTPSender(host string, port int, username, password string) (*SMTPSender, error) {
	if host == "" || port <= 0 {
		return nil, fmt.Errorf("SMTP host and port are required")
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("SMTP username and password are required")
	}
	return &SMTPSender{host: host, port: port, username: username, password: password}, nil
}

// Send builds the message and delivers it in its own SMTP session
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.host,
		mail.WithPort(s.port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.username),
		mail.WithPassword(s.password),
		mail.WithTimeout(smtpTimeout),
	)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending via %s:%d: %w", s.host, s.port, err)
	}
	return nil
}

// buildMsg converts a Message into a go-mail message with high priority set
func buildMsg(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("message has no recipients")
	}

	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetImportance(mail.ImportanceHigh)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	for _, a := range msg.Attachments {
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Data),
			mail.WithFileContentType(mail.ContentType(a.ContentType))); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", a.Filename, err)
		}
	}

	return m, nil
}
