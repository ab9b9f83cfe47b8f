package services

import (
	"log"

	"gopkg.in/gomail.v2"
)

// Mailer delivers a single HTML email.
type Mailer interface {
	Send(to, subject, html string) error
}

// SMTPMailer sends email through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates an SMTPMailer. The SMTP user doubles as the sender address.
func NewSMTPMailer(host string, port int, user, pass, fromName string) *SMTPMailer {
	m := gomail.NewMessage()
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   m.FormatAddress(user, fromName),
	}
}

// Send delivers one message.
func (m *SMTPMailer) Send(to, subject, html string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	if err := m.dialer.DialAndSend(msg); err != nil {
		log.Printf("[Mail] Failed to send %q to %s: %v", subject, to, err)
		return err
	}
	return nil
}

// LogMailer only logs outgoing mail. Used when SMTP is not configured.
type LogMailer struct{}

// Send logs the subject and recipient.
func (LogMailer) Send(to, subject, _ string) error {
	log.Printf("[Mail] SMTP not configured, skipping %q to %s", subject, to)
	return nil
}
