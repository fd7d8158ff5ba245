// Package email implements the pipeline.Adapter for the email channel:
// non-empty metadata.email validation, SMTP send through a circuit breaker,
// per spec.md §4.5.
package email

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aliskhannn/notifyhub/internal/breaker"
	"github.com/aliskhannn/notifyhub/internal/model"
	"github.com/aliskhannn/notifyhub/pkg/email"
)

// sender is the subset of pkg/email.Client this adapter depends on.
type sender interface {
	Send(msg email.Message) error
}

// Adapter is the email channel's validator + breaker-wrapped sender.
type Adapter struct {
	client  sender
	breaker *breaker.Breaker
}

// New builds an email Adapter over an SMTP client and its circuit breaker.
func New(client sender, b *breaker.Breaker) *Adapter {
	return &Adapter{client: client, breaker: b}
}

// Validate requires a non-empty metadata.email, per spec.md §4.5.
func (a *Adapter) Validate(msg model.EnqueuedMessage) error {
	to, _ := msg.Metadata["email"].(string)
	if to == "" {
		return fmt.Errorf("email_missing")
	}
	return nil
}

var tagStripper = regexp.MustCompile(`<[^>]*>`)

// Send renders body as the HTML part, deriving the text part by stripping
// tags, and sends through the breaker, per spec.md §4.5.
func (a *Adapter) Send(ctx context.Context, msg model.EnqueuedMessage, body string) error {
	to, _ := msg.Metadata["email"].(string)
	subject, _ := msg.Metadata["subject"].(string)

	text := tagStripper.ReplaceAllString(body, "")

	return a.breaker.Fire(ctx, func(ctx context.Context) error {
		return a.client.Send(email.Message{
			To:      to,
			Subject: subject,
			HTML:    body,
			Text:    text,
		})
	})
}
