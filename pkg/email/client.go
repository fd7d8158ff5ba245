// Package email is the SMTP adapter client spec.md §4.5 names for the email
// channel, adapted from the teacher's plain gopkg.in/mail.v2 dialer to carry
// the {to, subject, html, text} message shape the spec requires instead of
// a single plain-text body.
package email

import (
	"gopkg.in/mail.v2"
)

// Client dials an SMTP relay directly, the same way the teacher's email
// client does.
type Client struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
}

// NewClient builds a Client bound to the given SMTP relay and From address.
func NewClient(smtpHost string, smtpPort int, username, password, from string) *Client {
	return &Client{
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		username: username,
		password: password,
		from:     from,
	}
}

const fallbackSubject = "Notification"

// Message is the shape the worker's email adapter builds before sending.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Send dials the configured relay and sends msg. Subject defaults to
// fallbackSubject when unset.
func (c *Client) Send(msg Message) error {
	subject := msg.Subject
	if subject == "" {
		subject = fallbackSubject
	}

	message := mail.NewMessage()
	message.SetHeader("From", c.from)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", subject)

	if msg.Text != "" {
		message.SetBody("text/plain", msg.Text)
	}
	if msg.HTML != "" {
		message.AddAlternative("text/html", msg.HTML)
	}

	dialer := mail.NewDialer(c.smtpHost, c.smtpPort, c.username, c.password)

	return dialer.DialAndSend(message)
}
